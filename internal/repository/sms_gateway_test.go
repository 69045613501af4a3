package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

type snsStub struct {
	in  *sns.PublishInput
	err error
}

func (s *snsStub) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	s.in = in
	if s.err != nil {
		return nil, s.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSMSGatewaySend(t *testing.T) {
	stub := &snsStub{}
	id, err := NewSMSGateway(stub).Send(context.Background(), "+15555550100", "hello")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "+15555550100", aws.ToString(stub.in.PhoneNumber))
	assert.Equal(t, "hello", aws.ToString(stub.in.Message))
}

func TestSMSGatewaySendFailure(t *testing.T) {
	_, err := NewSMSGateway(&snsStub{err: errors.New("opted out")}).Send(context.Background(), "+15555550100", "hi")
	assert.ErrorIs(t, err, appErrors.ErrMessagingGateway)
}
