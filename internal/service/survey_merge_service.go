package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	"github.com/noah-isme/insight-compliance-api/internal/repository"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
	"github.com/noah-isme/insight-compliance-api/pkg/tracing"
)

// SurveyExportSource yields the raw rows of one survey export.
type SurveyExportSource interface {
	Load(ctx context.Context, variant models.SurveyVariant) ([]repository.RawSurveyRow, error)
}

// SurveyMergeConfig sets the timezone the exports are written in and the one
// responses are compared in.
type SurveyMergeConfig struct {
	SourceLocation    *time.Location
	ReferenceLocation *time.Location
}

// SurveyMergeService builds the canonical response table from all six exports.
type SurveyMergeService struct {
	source  SurveyExportSource
	metrics *MetricsService
	logger  *zap.Logger
	src     *time.Location
	ref     *time.Location
}

// NewSurveyMergeService constructs the merger.
func NewSurveyMergeService(source SurveyExportSource, metrics *MetricsService, logger *zap.Logger, cfg SurveyMergeConfig) *SurveyMergeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SourceLocation == nil {
		cfg.SourceLocation = time.UTC
	}
	if cfg.ReferenceLocation == nil {
		cfg.ReferenceLocation = time.UTC
	}
	return &SurveyMergeService{source: source, metrics: metrics, logger: logger, src: cfg.SourceLocation, ref: cfg.ReferenceLocation}
}

// Merge loads every export and returns the rows sorted by timestamp, most
// recent first. Rows with equal timestamps keep load order. Any export that
// cannot be loaded fails the merge.
func (s *SurveyMergeService) Merge(ctx context.Context) (rows []models.SurveyResponseRow, err error) {
	ctx, span := tracing.Start(ctx, "surveys.merge")
	defer func() { tracing.End(span, err) }()

	dropped := 0
	for _, variant := range models.SurveyVariants() {
		raw, lerr := s.source.Load(ctx, variant)
		if lerr != nil {
			var appErr *appErrors.Error
			if errors.As(lerr, &appErr) {
				return nil, lerr
			}
			return nil, appErrors.WrapAs(appErrors.ErrSurveyLoad, lerr, fmt.Sprintf("load %s", variant.Label()))
		}
		for _, r := range raw {
			row, perr := s.parseRow(variant, r)
			if perr != nil {
				dropped++
				s.logger.Debug("dropping survey row",
					zap.String("source", variant.Label()),
					zap.Int("line", r.Line),
					zap.Error(perr),
				)
				continue
			}
			rows = append(rows, row)
		}
	}
	s.metrics.RecordDroppedSurveyRows(dropped)
	span.SetAttributes(attribute.Int("rows", len(rows)), attribute.Int("dropped", dropped))

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.After(rows[j].Timestamp)
	})
	return rows, nil
}

func (s *SurveyMergeService) parseRow(variant models.SurveyVariant, r repository.RawSurveyRow) (models.SurveyResponseRow, error) {
	ts, err := time.ParseInLocation(models.TimestampLayout, strings.TrimSpace(r.DateTime), s.src)
	if err != nil {
		return models.SurveyResponseRow{}, fmt.Errorf("parse Date/Time %q: %w", r.DateTime, err)
	}
	identity := models.NormalizeInitials(r.Name)
	if identity == "" {
		return models.SurveyResponseRow{}, errors.New("empty Name")
	}
	return models.SurveyResponseRow{
		Timestamp: ts.In(s.ref),
		Identity:  identity,
		Source:    variant,
		Age:       models.ParseAge(r.Age),
	}, nil
}
