package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

type logsStub struct {
	in  *cloudwatchlogs.DescribeLogStreamsInput
	out *cloudwatchlogs.DescribeLogStreamsOutput
	err error
}

func (s *logsStub) DescribeLogStreams(ctx context.Context, in *cloudwatchlogs.DescribeLogStreamsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	s.in = in
	return s.out, s.err
}

func TestLogStreamRepositoryRecentStreams(t *testing.T) {
	stub := &logsStub{out: &cloudwatchlogs.DescribeLogStreamsOutput{
		LogStreams: []types.LogStream{
			{LogStreamName: aws.String("2024/01/01/[$LATEST]a"), FirstEventTimestamp: aws.Int64(1704114000000)},
		},
	}}
	repo := NewLogStreamRepository(stub, 500)

	streams, err := repo.RecentStreams(context.Background(), "/aws/lambda/INSIGHT_Part3_standard_message1")
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, int64(1704114000000), *streams[0].FirstEventTimestamp)

	assert.Equal(t, types.OrderByLastEventTime, stub.in.OrderBy)
	assert.True(t, aws.ToBool(stub.in.Descending))
	assert.Equal(t, int32(50), aws.ToInt32(stub.in.Limit))
}

func TestLogStreamRepositoryClassifiesErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want *appErrors.Error
	}{
		{"missing group", &types.ResourceNotFoundException{Message: aws.String("nope")}, appErrors.ErrLogQuery},
		{"throttled", &smithy.GenericAPIError{Code: "ThrottlingException"}, appErrors.ErrLogQuery},
		{"denied", &smithy.GenericAPIError{Code: "AccessDeniedException"}, appErrors.ErrLogServiceUnavailable},
		{"expired creds", &smithy.GenericAPIError{Code: "ExpiredTokenException"}, appErrors.ErrLogServiceUnavailable},
		{"network", errors.New("dial tcp: connection refused"), appErrors.ErrLogServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := NewLogStreamRepository(&logsStub{err: tc.err}, 50)
			_, err := repo.RecentStreams(context.Background(), "/aws/lambda/x")
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorContains(t, err, "/aws/lambda/x")
		})
	}
}
