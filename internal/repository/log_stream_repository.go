package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

// maxDescribeLimit is the service-side cap for DescribeLogStreams.
const maxDescribeLimit = 50

// serviceWideCodes abort a whole reconstruction: they mean no log group can be read.
var serviceWideCodes = map[string]struct{}{
	"AccessDeniedException":       {},
	"UnrecognizedClientException": {},
	"ExpiredTokenException":       {},
	"InvalidClientTokenId":        {},
	"InvalidSignatureException":   {},
	"SignatureDoesNotMatch":       {},
	"IncompleteSignature":         {},
	"MissingAuthenticationToken":  {},
	"ServiceUnavailableException": {},
}

// CloudWatchLogsAPI is the subset of the CloudWatch Logs client used here.
type CloudWatchLogsAPI interface {
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
}

// LogStreamRepository lists dispatch function log streams.
type LogStreamRepository struct {
	client CloudWatchLogsAPI
	limit  int32
}

// NewLogStreamRepository constructs the repository. limit is clamped to 1..50.
func NewLogStreamRepository(client CloudWatchLogsAPI, limit int) *LogStreamRepository {
	if limit <= 0 || limit > maxDescribeLimit {
		limit = maxDescribeLimit
	}
	return &LogStreamRepository{client: client, limit: int32(limit)}
}

// RecentStreams returns up to limit streams of logGroup ordered by last event
// time, most recent first. Errors are classified as ErrLogServiceUnavailable
// (abort) or ErrLogQuery (this source only).
func (r *LogStreamRepository) RecentStreams(ctx context.Context, logGroup string) ([]models.LogStream, error) {
	out, err := r.client.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(logGroup),
		OrderBy:      types.OrderByLastEventTime,
		Descending:   aws.Bool(true),
		Limit:        aws.Int32(r.limit),
	})
	if err != nil {
		return nil, classifyLogError(logGroup, err)
	}

	streams := make([]models.LogStream, 0, len(out.LogStreams))
	for _, s := range out.LogStreams {
		streams = append(streams, models.LogStream{
			Name:                aws.ToString(s.LogStreamName),
			FirstEventTimestamp: s.FirstEventTimestamp,
			LastEventTimestamp:  s.LastEventTimestamp,
		})
	}
	return streams, nil
}

func classifyLogError(logGroup string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, fatal := serviceWideCodes[apiErr.ErrorCode()]; fatal {
			return appErrors.WrapAs(appErrors.ErrLogServiceUnavailable, err,
				fmt.Sprintf("log service rejected request for %s: %s", logGroup, apiErr.ErrorCode()))
		}
		return appErrors.WrapAs(appErrors.ErrLogQuery, err,
			fmt.Sprintf("describe log streams %s: %s", logGroup, apiErr.ErrorCode()))
	}
	// Transport failures, credential resolution and cancellation never reach the API.
	return appErrors.WrapAs(appErrors.ErrLogServiceUnavailable, err, fmt.Sprintf("log service unreachable for %s", logGroup))
}
