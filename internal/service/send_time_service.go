package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
	"github.com/noah-isme/insight-compliance-api/pkg/tracing"
)

const (
	// SendTimeOrderFetch keeps the first matching stream in fetch order (most recent stream first).
	SendTimeOrderFetch = "fetch"
	// SendTimeOrderEarliest keeps the earliest first-event timestamp of the day.
	SendTimeOrderEarliest = "earliest"
)

// LogStreamSource lists recent log streams of one dispatch log group.
type LogStreamSource interface {
	RecentStreams(ctx context.Context, logGroup string) ([]models.LogStream, error)
}

// SendTimeConfig tunes reconstruction.
type SendTimeConfig struct {
	Location *time.Location
	Order    string
}

// SendTimeService reconstructs actual message send times from dispatch logs.
type SendTimeService struct {
	logs    LogStreamSource
	catalog *ScheduleCatalog
	metrics *MetricsService
	logger  *zap.Logger
	loc     *time.Location
	order   string
}

// NewSendTimeService constructs the reconstructor.
func NewSendTimeService(logs LogStreamSource, catalog *ScheduleCatalog, metrics *MetricsService, logger *zap.Logger, cfg SendTimeConfig) *SendTimeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Order != SendTimeOrderEarliest {
		cfg.Order = SendTimeOrderFetch
	}
	return &SendTimeService{logs: logs, catalog: catalog, metrics: metrics, logger: logger, loc: cfg.Location, order: cfg.Order}
}

// ReconstructForParticipant builds one row per date in [start, end] for the
// participant's schedule.
func (s *SendTimeService) ReconstructForParticipant(ctx context.Context, scheduleType, start, end string) (*models.SendTimeTable, error) {
	timetable, err := s.catalog.Lookup(scheduleType)
	if err != nil {
		return nil, err
	}
	from, err := time.ParseInLocation(models.DateLayout, start, s.loc)
	if err != nil {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid start date %q", start)
	}
	to, err := time.ParseInLocation(models.DateLayout, end, s.loc)
	if err != nil {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid end date %q", end)
	}
	if to.Before(from) {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "end date %s before start date %s", end, start)
	}
	return s.reconstruct(ctx, timetable.ScheduleType, calendarDays(from, to))
}

// ReconstructForDate builds a table per schedule type with rows for date-1 and date.
func (s *SendTimeService) ReconstructForDate(ctx context.Context, date string) ([]models.SendTimeTable, error) {
	day, err := time.ParseInLocation(models.DateLayout, date, s.loc)
	if err != nil {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "invalid date %q", date)
	}
	days := calendarDays(day.AddDate(0, 0, -1), day)
	tables := make([]models.SendTimeTable, 0, len(models.ScheduleTypes()))
	for _, st := range models.ScheduleTypes() {
		table, err := s.reconstruct(ctx, st, days)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *table)
	}
	return tables, nil
}

func (s *SendTimeService) reconstruct(ctx context.Context, st models.ScheduleType, days []string) (table *models.SendTimeTable, err error) {
	ctx, span := tracing.Start(ctx, "sendtimes.reconstruct",
		attribute.String("schedule", st.Key()),
		attribute.String("from", days[0]),
		attribute.String("to", days[len(days)-1]),
	)
	defer func() { tracing.End(span, err) }()

	groups := s.catalog.LogGroups(st)
	var (
		streams  [models.SlotsPerDay][]models.LogStream
		failures [models.SlotsPerDay]error
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			out, ferr := s.logs.RecentStreams(gctx, group)
			if ferr != nil {
				if errors.Is(ferr, appErrors.ErrLogServiceUnavailable) {
					return ferr
				}
				failures[i] = ferr
				return nil
			}
			streams[i] = out
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	table = &models.SendTimeTable{ScheduleType: st.String(), Rows: make([]models.SendTimeRow, len(days))}
	for i := range days {
		table.Rows[i].Date = days[i]
	}
	for i := range groups {
		slot := i + 1
		if failures[i] != nil {
			table.FailedSlots = append(table.FailedSlots, models.FailedSlot{Slot: slot, Source: groups[i], Reason: failures[i].Error()})
			s.metrics.RecordLogSourceFailure(st, slot)
			s.logger.Warn("log source unavailable for slot",
				zap.String("schedule", st.String()),
				zap.Int("slot", slot),
				zap.String("source", groups[i]),
				zap.Error(failures[i]),
			)
			continue
		}
		picked := s.pick(streams[i], days)
		for r := range table.Rows {
			if t, ok := picked[table.Rows[r].Date]; ok {
				table.Rows[r].Slots[i] = t.Format(models.ClockLayout)
				continue
			}
			s.logger.Debug("no send observed",
				zap.String("schedule", st.String()),
				zap.String("date", table.Rows[r].Date),
				zap.Int("slot", slot),
			)
		}
	}
	return table, nil
}

// pick maps each date to the chosen send instant among streams whose first
// event falls inside [days[0], last day + 1).
func (s *SendTimeService) pick(streams []models.LogStream, days []string) map[string]time.Time {
	windowStart, _ := time.ParseInLocation(models.DateLayout, days[0], s.loc)
	last, _ := time.ParseInLocation(models.DateLayout, days[len(days)-1], s.loc)
	windowEnd := last.AddDate(0, 0, 1)

	picked := make(map[string]time.Time, len(days))
	for _, stream := range streams {
		if stream.FirstEventTimestamp == nil {
			continue
		}
		at := time.UnixMilli(*stream.FirstEventTimestamp).In(s.loc)
		if at.Before(windowStart) || !at.Before(windowEnd) {
			continue
		}
		date := at.Format(models.DateLayout)
		existing, ok := picked[date]
		if !ok || (s.order == SendTimeOrderEarliest && at.Before(existing)) {
			picked[date] = at
		}
	}
	return picked
}
