package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/insight-compliance-api/internal/dto"
	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
	"github.com/noah-isme/insight-compliance-api/pkg/response"
)

type participantService interface {
	Register(ctx context.Context, req dto.RegisterParticipantRequest) (*dto.ParticipantResponse, error)
	Get(ctx context.Context, id int64) (*dto.ParticipantResponse, error)
	List(ctx context.Context, filter dto.ParticipantFilter) ([]dto.ParticipantResponse, *models.Pagination, error)
	Update(ctx context.Context, id int64, req dto.UpdateParticipantRequest) (*dto.ParticipantResponse, error)
	Delete(ctx context.Context, id int64) error
}

type messagingService interface {
	SendTest(ctx context.Context, participantID int64, req dto.SendSMSRequest) (*dto.SendSMSResponse, error)
}

// ParticipantHandler manages participant records.
type ParticipantHandler struct {
	participants participantService
	messaging    messagingService
}

// NewParticipantHandler constructs the handler.
func NewParticipantHandler(participants participantService, messaging messagingService) *ParticipantHandler {
	return &ParticipantHandler{participants: participants, messaging: messaging}
}

// Register godoc
// @Summary Register participant
// @Tags Participants
// @Accept json
// @Produce json
// @Param payload body dto.RegisterParticipantRequest true "Participant payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /participants [post]
func (h *ParticipantHandler) Register(c *gin.Context) {
	var req dto.RegisterParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid participant payload"))
		return
	}
	participant, err := h.participants.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, participant)
}

// List godoc
// @Summary List participants
// @Tags Participants
// @Produce json
// @Param status query string false "not_started | in_study | completed"
// @Param asOf query string false "Date (YYYY-MM-DD) the status is computed for. Defaults to today"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /participants [get]
func (h *ParticipantHandler) List(c *gin.Context) {
	var filter dto.ParticipantFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.participants.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get participant
// @Tags Participants
// @Produce json
// @Param id path int true "Participant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /participants/{id} [get]
func (h *ParticipantHandler) Get(c *gin.Context) {
	id, err := participantIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	participant, err := h.participants.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participant, nil)
}

// Update godoc
// @Summary Update participant attributes
// @Description Changing startDate recomputes the end date.
// @Tags Participants
// @Accept json
// @Produce json
// @Param id path int true "Participant ID"
// @Param payload body dto.UpdateParticipantRequest true "Attributes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /participants/{id} [patch]
func (h *ParticipantHandler) Update(c *gin.Context) {
	id, err := participantIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid participant payload"))
		return
	}
	participant, err := h.participants.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participant, nil)
}

// Delete godoc
// @Summary Remove participant
// @Tags Participants
// @Param id path int true "Participant ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /participants/{id} [delete]
func (h *ParticipantHandler) Delete(c *gin.Context) {
	id, err := participantIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.participants.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SendSMS godoc
// @Summary Send a test SMS to a participant
// @Tags Participants
// @Accept json
// @Produce json
// @Param id path int true "Participant ID"
// @Param payload body dto.SendSMSRequest false "Message (defaults to the standard test text)"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /participants/{id}/sms [post]
func (h *ParticipantHandler) SendSMS(c *gin.Context) {
	id, err := participantIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SendSMSRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sms payload"))
			return
		}
	}
	res, err := h.messaging.SendTest(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
