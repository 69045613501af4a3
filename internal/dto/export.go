package dto

import "github.com/noah-isme/insight-compliance-api/internal/models"

// ExportRequest captures POST /compliance/exports payload.
type ExportRequest struct {
	Type          models.ExportType   `json:"type" validate:"required,oneof=participant_compliance daily_compliance"`
	ParticipantID int64               `json:"participantId" validate:"required_if=Type participant_compliance"`
	Date          string              `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Format        models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ExportType   `json:"type"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
