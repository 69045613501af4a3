package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
	"github.com/noah-isme/insight-compliance-api/pkg/tracing"
)

// ParticipantReader fetches participant schedules from the participant store.
type ParticipantReader interface {
	Get(ctx context.Context, id int64) (*models.ParticipantSchedule, error)
	List(ctx context.Context) ([]models.ParticipantSchedule, error)
}

// SurveyMerger produces the canonical response table.
type SurveyMerger interface {
	Merge(ctx context.Context) ([]models.SurveyResponseRow, error)
}

// IdentityLoader resolves participants to survey identities.
type IdentityLoader interface {
	Load(ctx context.Context) (*IdentityIndex, error)
}

// SendTimeReconstructor recovers send times from dispatch logs.
type SendTimeReconstructor interface {
	ReconstructForParticipant(ctx context.Context, scheduleType, start, end string) (*models.SendTimeTable, error)
	ReconstructForDate(ctx context.Context, date string) ([]models.SendTimeTable, error)
}

// ComplianceConfig tunes evaluation.
type ComplianceConfig struct {
	Timeout  time.Duration
	Location *time.Location
}

// ComplianceService grades participants against their messaging schedule.
type ComplianceService struct {
	participants ParticipantReader
	catalog      *ScheduleCatalog
	identities   IdentityLoader
	surveys      SurveyMerger
	sendTimes    SendTimeReconstructor
	aggregator   *Aggregator
	metrics      *MetricsService
	logger       *zap.Logger
	timeout      time.Duration
	loc          *time.Location
	now          func() time.Time
}

// NewComplianceService wires the evaluator.
func NewComplianceService(
	participants ParticipantReader,
	catalog *ScheduleCatalog,
	identities IdentityLoader,
	surveys SurveyMerger,
	sendTimes SendTimeReconstructor,
	aggregator *Aggregator,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ComplianceConfig,
) *ComplianceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if aggregator == nil {
		aggregator = NewAggregator(RollingModeSkip)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ComplianceService{
		participants: participants,
		catalog:      catalog,
		identities:   identities,
		surveys:      surveys,
		sendTimes:    sendTimes,
		aggregator:   aggregator,
		metrics:      metrics,
		logger:       logger,
		timeout:      cfg.Timeout,
		loc:          cfg.Location,
		now:          time.Now,
	}
}

// Today returns the current calendar date in the reference timezone.
func (s *ComplianceService) Today() string {
	return s.now().In(s.loc).Format(models.DateLayout)
}

// EvaluateParticipant produces the full compliance report for one participant.
func (s *ComplianceService) EvaluateParticipant(ctx context.Context, participantID int64) (report *models.ComplianceReport, err error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, span := tracing.Start(ctx, "compliance.evaluate_participant", attribute.Int64("participant_id", participantID))
	defer func() {
		err = s.timeoutError(ctx, err, fmt.Sprintf("evaluation of participant %d", participantID))
		tracing.End(span, err)
		result := "ok"
		var grid *models.ComplianceGrid
		if err != nil {
			result = appErrors.FromError(err).Code
		} else {
			grid = &report.Grid
		}
		s.metrics.ObserveEvaluation(result, time.Since(started), grid)
	}()

	participant, err := s.participants.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if _, err = s.catalog.Lookup(participant.ScheduleType); err != nil {
		return nil, err
	}
	index, err := s.identities.Load(ctx)
	if err != nil {
		return nil, err
	}
	identity, err := index.Resolve(participantID)
	if err != nil {
		return nil, err
	}
	responses, err := s.surveys.Merge(ctx)
	if err != nil {
		return nil, err
	}
	sendTimes, err := s.sendTimes.ReconstructForParticipant(ctx, participant.ScheduleType, participant.StartDate, participant.EndDate)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	grid, err := EvaluateGrid(EvaluationInput{
		Participant: *participant,
		Identity:    *identity,
		Responses:   responses,
		SendTimes:   *sendTimes,
		Today:       today,
		Location:    s.loc,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("evaluate participant %d", participantID))
	}
	grid = s.aggregator.Apply(grid)
	summary := s.aggregator.Summarize(grid)

	s.logger.Debug("participant evaluated",
		zap.Int64("participant_id", participantID),
		zap.Int("completed", summary.CompletedCells),
		zap.Int("counted", summary.CountedCells),
		zap.Int("failed_slots", len(sendTimes.FailedSlots)),
	)

	return &models.ComplianceReport{
		Participant:       *participant,
		Identity:          *identity,
		AsOf:              today,
		Grid:              grid,
		SendTimes:         *sendTimes,
		CompletedCells:    summary.CompletedCells,
		CountedCells:      summary.CountedCells,
		CurrentCompliance: summary.Current,
		TotalCompliance:   summary.Total,
		GeneratedAt:       s.now().UTC(),
	}, nil
}

// SendTimes returns the reconstructed send times for a participant's study window.
func (s *ComplianceService) SendTimes(ctx context.Context, participantID int64) (table *models.SendTimeTable, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		err = s.timeoutError(ctx, err, fmt.Sprintf("send times of participant %d", participantID))
	}()

	participant, err := s.participants.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	return s.sendTimes.ReconstructForParticipant(ctx, participant.ScheduleType, participant.StartDate, participant.EndDate)
}

func (s *ComplianceService) timeoutError(ctx context.Context, err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return appErrors.WrapAs(appErrors.ErrEvaluationTimedOut, err, fmt.Sprintf("%s exceeded %s", what, s.timeout))
	}
	return err
}
