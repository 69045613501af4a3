package dto

import "github.com/noah-isme/insight-compliance-api/internal/models"

// RegisterParticipantRequest captures POST /participants payload.
type RegisterParticipantRequest struct {
	ParticipantID   int64  `json:"participantId" validate:"required,gt=0"`
	StartDate       string `json:"startDate" validate:"required,datetime=2006-01-02"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,min=10,max=16"`
	LeaderboardLink string `json:"leaderboardLink" validate:"omitempty,url"`
	ScheduleType    string `json:"scheduleType" validate:"required,oneof='Early Bird Schedule' 'Standard Schedule' 'Night Owl Schedule'"`
	// MessageRandomizer is generated when omitted.
	MessageRandomizer *models.Randomizer `json:"messageRandomizer,omitempty"`
}

// UpdateParticipantRequest captures PATCH /participants/:id payload. Only
// provided fields are written.
type UpdateParticipantRequest struct {
	StartDate         *string            `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PhoneNumber       *string            `json:"phoneNumber,omitempty" validate:"omitempty,min=10,max=16"`
	LeaderboardLink   *string            `json:"leaderboardLink,omitempty" validate:"omitempty,url"`
	ScheduleType      *string            `json:"scheduleType,omitempty" validate:"omitempty,oneof='Early Bird Schedule' 'Standard Schedule' 'Night Owl Schedule'"`
	MessageRandomizer *models.Randomizer `json:"messageRandomizer,omitempty"`
}

// Empty reports whether the request carries no changes.
func (r UpdateParticipantRequest) Empty() bool {
	return r.StartDate == nil && r.PhoneNumber == nil && r.LeaderboardLink == nil &&
		r.ScheduleType == nil && r.MessageRandomizer == nil
}

// ParticipantFilter narrows GET /participants.
type ParticipantFilter struct {
	Status   models.ParticipantStatus `form:"status"`
	AsOf     string                   `form:"asOf"`
	Page     int                      `form:"page"`
	PageSize int                      `form:"pageSize"`
}

// ParticipantResponse decorates the stored record with derived study state.
type ParticipantResponse struct {
	models.ParticipantSchedule
	Status   models.ParticipantStatus `json:"status"`
	StudyDay int                      `json:"study_day,omitempty"`
	Phase    int                      `json:"phase,omitempty"`
	Phases   []models.PhaseRange      `json:"phases"`
}

// SendSMSRequest captures POST /participants/:id/sms payload.
type SendSMSRequest struct {
	Message string `json:"message" validate:"omitempty,max=1600"`
}

// SendSMSResponse reports the gateway message id.
type SendSMSResponse struct {
	ParticipantID int64  `json:"participantId"`
	PhoneNumber   string `json:"phoneNumber"`
	MessageID     string `json:"messageId"`
}
