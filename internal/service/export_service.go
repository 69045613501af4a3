package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	"github.com/noah-isme/insight-compliance-api/pkg/export"
	"github.com/noah-isme/insight-compliance-api/pkg/storage"
)

type participantEvaluator interface {
	EvaluateParticipant(ctx context.Context, participantID int64) (*models.ComplianceReport, error)
}

type dailyReporter interface {
	Generate(ctx context.Context, date string) (*models.DailyReport, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders compliance reports to files and signs download links.
type ExportService struct {
	participants participantEvaluator
	daily        dailyReporter
	storage      fileStorage
	renderers    map[models.ExportFormat]export.Renderer
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
	cfg          ExportConfig
	now          func() time.Time
}

// NewExportService constructs an ExportService. A nil renderer map selects the
// CSV and PDF exporters.
func NewExportService(participants participantEvaluator, daily dailyReporter, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, renderers map[models.ExportFormat]export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderers == nil {
		renderers = map[models.ExportFormat]export.Renderer{
			models.ExportFormatCSV: export.NewCSVExporter(),
			models.ExportFormatPDF: export.NewPDFExporter(),
		}
	}
	return &ExportService{
		participants: participants,
		daily:        daily,
		storage:      store,
		renderers:    renderers,
		signer:       signer,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Generate builds the dataset for job, renders it and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", job.Params.Format, err)
	}

	relPath, err := s.storage.Save(s.buildFilename(job, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Debug("export rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ContentType returns the MIME type for a format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	if r, ok := s.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	subject := job.Params.Date
	if job.Type == models.ExportTypeParticipantCompliance {
		subject = "p" + strconv.FormatInt(job.Params.ParticipantID, 10)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), sanitizeFilename(subject), timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ExportTypeParticipantCompliance:
		report, err := s.participants.EvaluateParticipant(ctx, job.Params.ParticipantID)
		if err != nil {
			return export.Dataset{}, err
		}
		return participantDataset(report), nil
	case models.ExportTypeDailyCompliance:
		report, err := s.daily.Generate(ctx, job.Params.Date)
		if err != nil {
			return export.Dataset{}, err
		}
		return dailyDataset(report), nil
	default:
		return export.Dataset{}, fmt.Errorf("unsupported export type %s", job.Type)
	}
}

var slotHeaders = []string{"Message 1", "Message 2", "Message 3", "Message 4"}

func participantDataset(report *models.ComplianceReport) export.Dataset {
	headers := append([]string{"Date", "Day"}, slotHeaders...)
	headers = append(headers, "Daily %", "Rolling %")
	rows := make([]map[string]string, 0, len(report.Grid.Rows))
	for _, row := range report.Grid.Rows {
		record := map[string]string{
			"Date":      row.Date,
			"Day":       strconv.Itoa(row.StudyDay),
			"Daily %":   formatPercent(row.DailyPercentage),
			"Rolling %": formatPercent(row.RollingAverage),
		}
		for i, cell := range row.Cells {
			record[slotHeaders[i]] = formatCell(cell)
		}
		rows = append(rows, record)
	}
	notes := []string{
		fmt.Sprintf("Schedule: %s (%s to %s)", report.Participant.ScheduleType, report.Participant.StartDate, report.Participant.EndDate),
		fmt.Sprintf("Current compliance: %s", formatPercent(report.CurrentCompliance)),
		fmt.Sprintf("Total compliance: %.1f%% (%d of %d)", report.TotalCompliance, report.CompletedCells, totalCells),
	}
	for _, f := range report.SendTimes.FailedSlots {
		notes = append(notes, fmt.Sprintf("Message %d send times unavailable: %s", f.Slot, f.Source))
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Compliance Report - Participant %d (as of %s)", report.Participant.ParticipantID, report.AsOf),
		Headers: headers,
		Rows:    rows,
		Notes:   notes,
	}
}

func dailyDataset(report *models.DailyReport) export.Dataset {
	headers := append([]string{"Participant", "Schedule", "Day"}, slotHeaders...)
	headers = append(headers, "Daily %", "Error")
	rows := make([]map[string]string, 0, len(report.Entries))
	for _, entry := range report.Entries {
		record := map[string]string{
			"Participant": strconv.FormatInt(entry.ParticipantID, 10),
			"Schedule":    entry.ScheduleType,
			"Day":         strconv.Itoa(entry.StudyDay),
			"Daily %":     formatPercent(entry.DailyPercentage),
			"Error":       entry.Error,
		}
		for i, cell := range entry.Cells {
			record[slotHeaders[i]] = formatCell(cell)
		}
		rows = append(rows, record)
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Daily Compliance - %s", report.Date),
		Headers: headers,
		Rows:    rows,
		Notes: []string{
			fmt.Sprintf("Not started: %d, in study: %d, completed: %d",
				len(report.Buckets.NotStarted), len(report.Buckets.InStudy), len(report.Buckets.Completed)),
		},
	}
}

func formatCell(cell models.ComplianceCell) string {
	label := cell.Label
	if label == "" {
		label = cell.Verdict.Label()
	}
	if ts := cell.ResponseTimestamp; len(ts) > len(models.DateLayout)+1 {
		return fmt.Sprintf("%s @ %s", label, ts[len(models.DateLayout)+1:])
	}
	return label
}

func formatPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}
