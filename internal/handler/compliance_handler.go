package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/insight-compliance-api/internal/middleware"
	"github.com/noah-isme/insight-compliance-api/internal/models"
	"github.com/noah-isme/insight-compliance-api/pkg/response"
)

type complianceService interface {
	EvaluateParticipant(ctx context.Context, participantID int64) (*models.ComplianceReport, error)
	SendTimes(ctx context.Context, participantID int64) (*models.SendTimeTable, error)
}

type dailyReportService interface {
	Generate(ctx context.Context, date string) (*models.DailyReport, error)
}

// ComplianceHandler serves compliance grids and send-time tables.
type ComplianceHandler struct {
	compliance complianceService
	daily      dailyReportService
}

// NewComplianceHandler constructs the handler.
func NewComplianceHandler(compliance complianceService, daily dailyReportService) *ComplianceHandler {
	return &ComplianceHandler{compliance: compliance, daily: daily}
}

// Participant godoc
// @Summary Participant compliance report
// @Description Evaluates the 14 x 4 compliance grid with daily, rolling, current and total percentages.
// @Tags Compliance
// @Produce json
// @Param id path int true "Participant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Security BearerAuth
// @Router /compliance/participants/{id} [get]
func (h *ComplianceHandler) Participant(c *gin.Context) {
	id, err := participantIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.compliance.EvaluateParticipant(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if n := len(report.SendTimes.FailedSlots); n > 0 {
		middleware.SetMeta(c, "failed_slots", n)
	}
	response.JSON(c, http.StatusOK, report, nil, middleware.ResponseMeta(c))
}

// SendTimes godoc
// @Summary Reconstructed send times for a participant's study window
// @Tags Compliance
// @Produce json
// @Param id path int true "Participant ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /compliance/participants/{id}/send-times [get]
func (h *ComplianceHandler) SendTimes(c *gin.Context) {
	id, err := participantIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	table, err := h.compliance.SendTimes(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, table, nil)
}

// Daily godoc
// @Summary Daily compliance across participants
// @Tags Compliance
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /compliance/daily [get]
func (h *ComplianceHandler) Daily(c *gin.Context) {
	report, err := h.daily.Generate(c.Request.Context(), strings.TrimSpace(c.Query("date")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, middleware.ResponseMeta(c))
}
