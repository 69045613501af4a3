package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
	"github.com/noah-isme/insight-compliance-api/pkg/tracing"
)

const dailyReportCachePrefix = "compliance:daily:"

// DailyReportConfig tunes the fleet-wide report.
type DailyReportConfig struct {
	MaxParallel int
	CacheTTL    time.Duration
	Timeout     time.Duration
}

// DailyReportService builds the compliance view of every participant for one date.
type DailyReportService struct {
	participants ParticipantReader
	identities   IdentityLoader
	surveys      SurveyMerger
	sendTimes    SendTimeReconstructor
	compliance   *ComplianceService
	cache        *CacheService
	logger       *zap.Logger
	cfg          DailyReportConfig
}

// NewDailyReportService constructs the service.
func NewDailyReportService(
	participants ParticipantReader,
	identities IdentityLoader,
	surveys SurveyMerger,
	sendTimes SendTimeReconstructor,
	compliance *ComplianceService,
	cache *CacheService,
	logger *zap.Logger,
	cfg DailyReportConfig,
) *DailyReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &DailyReportService{
		participants: participants,
		identities:   identities,
		surveys:      surveys,
		sendTimes:    sendTimes,
		compliance:   compliance,
		cache:        cache,
		logger:       logger,
		cfg:          cfg,
	}
}

// Buckets groups every participant by study status on date.
func (s *DailyReportService) Buckets(ctx context.Context, date string) (*models.ParticipantBuckets, error) {
	participants, err := s.participants.List(ctx)
	if err != nil {
		return nil, err
	}
	buckets := bucketParticipants(participants, date)
	return &buckets, nil
}

func bucketParticipants(participants []models.ParticipantSchedule, date string) models.ParticipantBuckets {
	buckets := models.ParticipantBuckets{
		NotStarted: []models.ParticipantSchedule{},
		InStudy:    []models.ParticipantSchedule{},
		Completed:  []models.ParticipantSchedule{},
	}
	for _, p := range participants {
		switch p.Status(date) {
		case models.StatusNotStarted:
			buckets.NotStarted = append(buckets.NotStarted, p)
		case models.StatusCompleted:
			buckets.Completed = append(buckets.Completed, p)
		default:
			buckets.InStudy = append(buckets.InStudy, p)
		}
	}
	return buckets
}

// Generate returns the daily report for date (YYYY-MM-DD; empty means today).
// Past dates are served from cache when available.
func (s *DailyReportService) Generate(ctx context.Context, date string) (*models.DailyReport, error) {
	today := s.compliance.Today()
	if date == "" {
		date = today
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid date %q, want YYYY-MM-DD", date)
	}

	cacheKey := dailyReportCachePrefix + date
	if date < today {
		var cached models.DailyReport
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	report, err := s.build(ctx, date, today)
	if err != nil {
		return nil, err
	}
	if date < today {
		_ = s.cache.Set(ctx, cacheKey, report, s.cfg.CacheTTL)
	}
	return report, nil
}

func (s *DailyReportService) build(ctx context.Context, date, today string) (report *models.DailyReport, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	ctx, span := tracing.Start(ctx, "compliance.daily_report", attribute.String("date", date))
	defer func() { tracing.End(span, err) }()

	participants, err := s.participants.List(ctx)
	if err != nil {
		return nil, err
	}
	buckets := bucketParticipants(participants, date)
	tables, err := s.sendTimes.ReconstructForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	report = &models.DailyReport{
		Date:        date,
		Buckets:     buckets,
		SendTimes:   tables,
		Entries:     make([]models.DailyEntry, len(buckets.InStudy)),
		GeneratedAt: time.Now().UTC(),
	}
	if len(buckets.InStudy) == 0 {
		return report, nil
	}

	index, err := s.identities.Load(ctx)
	if err != nil {
		return nil, err
	}
	responses, err := s.surveys.Merge(ctx)
	if err != nil {
		return nil, err
	}
	byType := make(map[models.ScheduleType]models.SendTimeTable, len(tables))
	for _, t := range tables {
		st, err := models.ParseScheduleType(t.ScheduleType)
		if err != nil {
			return nil, err
		}
		byType[st] = t
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for i, p := range buckets.InStudy {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Entries[i] = s.entry(p, index, responses, byType, date, today)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *DailyReportService) entry(p models.ParticipantSchedule, index *IdentityIndex, responses []models.SurveyResponseRow, tables map[models.ScheduleType]models.SendTimeTable, date, today string) models.DailyEntry {
	entry := models.DailyEntry{ParticipantID: p.ParticipantID, ScheduleType: p.ScheduleType}
	fail := func(err error) models.DailyEntry {
		entry.Error = err.Error()
		s.logger.Warn("daily report entry failed",
			zap.Int64("participant_id", p.ParticipantID),
			zap.String("date", date),
			zap.Error(err),
		)
		return entry
	}

	st, err := models.ParseScheduleType(p.ScheduleType)
	if err != nil {
		return fail(err)
	}
	table, ok := tables[st]
	if !ok {
		return fail(appErrors.Clonef(appErrors.ErrUnknownScheduleType, "no send times for schedule %q", st))
	}
	identity, err := index.Resolve(p.ParticipantID)
	if err != nil {
		return fail(err)
	}
	row, err := EvaluateRow(EvaluationInput{
		Participant: p,
		Identity:    *identity,
		Responses:   responses,
		SendTimes:   table,
		Today:       today,
		Location:    s.compliance.loc,
	}, date)
	if err != nil {
		return fail(fmt.Errorf("evaluate %s: %w", date, err))
	}
	entry.StudyDay = row.StudyDay
	entry.Cells = row.Cells
	entry.DailyPercentage = DailyPercentage(row.Cells)
	return entry
}
