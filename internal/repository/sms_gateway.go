package repository

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

// SNSAPI is the subset of the SNS client used for direct SMS publishing.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSGateway publishes SMS messages directly to phone numbers through SNS.
type SMSGateway struct {
	client SNSAPI
}

// NewSMSGateway constructs the gateway.
func NewSMSGateway(client SNSAPI) *SMSGateway {
	return &SMSGateway{client: client}
}

// Send publishes message to an E.164 phone number and returns the SNS message id.
func (g *SMSGateway) Send(ctx context.Context, phoneNumber, message string) (string, error) {
	out, err := g.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phoneNumber),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	if err != nil {
		return "", appErrors.WrapAs(appErrors.ErrMessagingGateway, err, "publish sms")
	}
	return aws.ToString(out.MessageId), nil
}
