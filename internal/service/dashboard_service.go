package service

import (
	"context"
	"time"

	"github.com/jinzhu/now"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

const dashboardCachePrefix = "dash:summary:"

type participantLister interface {
	List(ctx context.Context) ([]models.ParticipantSchedule, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL          time.Duration
	RecruitmentTarget int
	Location          *time.Location
}

// DashboardService composes the staff dashboard summary.
type DashboardService struct {
	participants participantLister
	cache        *CacheService
	logger       *zap.Logger
	now          func() time.Time
	cfg          DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Participants participantLister
	Cache        *CacheService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecruitmentTarget <= 0 {
		cfg.RecruitmentTarget = 65
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		participants: params.Participants,
		cache:        params.Cache,
		logger:       logger,
		now:          time.Now,
		cfg:          cfg,
	}
}

// Summary returns the dashboard for today and indicates cache utilisation.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	today := s.now().In(s.cfg.Location)
	asOf := today.Format(models.DateLayout)
	cacheKey := dashboardCachePrefix + asOf

	var cached models.DashboardSummary
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	participants, err := s.participants.List(ctx)
	if err != nil {
		return nil, false, err
	}
	summary := &models.DashboardSummary{
		AsOf:        asOf,
		Recruitment: recruitment(participants, asOf, s.cfg.RecruitmentTarget),
		Phases:      phaseCounts(participants, asOf),
		GeneratedAt: s.now().UTC(),
	}
	summary.Enrollment, err = weeklyEnrollment(participants, today)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute weekly enrollment")
	}
	if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Debug("dashboard cache write skipped", zap.Error(err))
	}
	return summary, false, nil
}

func recruitment(participants []models.ParticipantSchedule, asOf string, target int) models.RecruitmentProgress {
	progress := models.RecruitmentProgress{Target: target}
	for _, p := range participants {
		switch p.Status(asOf) {
		case models.StatusNotStarted:
			progress.PendingStart++
		case models.StatusCompleted:
			progress.Completed++
		default:
			progress.InProgress++
		}
	}
	progress.LeftToRecruit = target - (progress.PendingStart + progress.InProgress + progress.Completed)
	return progress
}

func phaseCounts(participants []models.ParticipantSchedule, asOf string) models.PhaseCounts {
	var counts models.PhaseCounts
	for _, p := range participants {
		if p.Status(asOf) != models.StatusInStudy {
			continue
		}
		day, err := p.StudyDay(asOf)
		if err != nil {
			continue
		}
		switch models.Phase(day) {
		case 1:
			counts.Phase1++
		case 2:
			counts.Phase2++
		case 3:
			counts.Phase3++
		}
	}
	return counts
}

// weeklyEnrollment counts study starts per Monday-based week, from the week of
// the earliest start through the week containing today.
func weeklyEnrollment(participants []models.ParticipantSchedule, today time.Time) ([]models.WeeklyEnrollment, error) {
	weekCfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: today.Location()}
	starts := make([]time.Time, 0, len(participants))
	for _, p := range participants {
		start, err := time.ParseInLocation(models.DateLayout, p.StartDate, today.Location())
		if err != nil {
			return nil, err
		}
		starts = append(starts, start)
	}
	if len(starts) == 0 {
		return []models.WeeklyEnrollment{}, nil
	}
	first := starts[0]
	for _, st := range starts[1:] {
		if st.Before(first) {
			first = st
		}
	}

	out := make([]models.WeeklyEnrollment, 0)
	last := weekCfg.With(today).BeginningOfWeek()
	for week := weekCfg.With(first).BeginningOfWeek(); !week.After(last); week = week.AddDate(0, 0, 7) {
		next := week.AddDate(0, 0, 7)
		entry := models.WeeklyEnrollment{WeekStart: week.Format(models.DateLayout)}
		for _, st := range starts {
			if !st.Before(week) && st.Before(next) {
				entry.Count++
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
