package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/dto"
	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

// DefaultTestMessage is sent when no custom text is given.
const DefaultTestMessage = "Hello from the Project INSIGHT Team! This is a test message."

// SMSSender publishes an SMS to a phone number and returns the gateway message id.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, message string) (string, error)
}

type participantGetter interface {
	Get(ctx context.Context, id int64) (*models.ParticipantSchedule, error)
}

// MessagingService sends test messages to registered participants.
type MessagingService struct {
	participants participantGetter
	sender       SMSSender
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewMessagingService constructs the service.
func NewMessagingService(participants participantGetter, sender SMSSender, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MessagingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessagingService{participants: participants, sender: sender, metrics: metrics, validator: validate, logger: logger}
}

// SendTest looks up the participant's phone number and publishes the message.
func (s *MessagingService) SendTest(ctx context.Context, participantID int64, req dto.SendSMSRequest) (*dto.SendSMSResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sms payload")
	}
	participant, err := s.participants.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if participant.PhoneNumber == "" {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "participant %d has no phone number", participantID)
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = DefaultTestMessage
	}
	messageID, err := s.sender.Send(ctx, participant.PhoneNumber, message)
	s.metrics.RecordSMS(err == nil)
	if err != nil {
		s.logger.Warn("test sms failed", zap.Int64("participant_id", participantID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("test sms sent", zap.Int64("participant_id", participantID), zap.String("message_id", messageID))
	return &dto.SendSMSResponse{ParticipantID: participantID, PhoneNumber: participant.PhoneNumber, MessageID: messageID}, nil
}
