package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	"github.com/noah-isme/insight-compliance-api/internal/repository"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

func loadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func epochMillis(t *testing.T, loc *time.Location, value string) *int64 {
	t.Helper()
	ts, err := time.ParseInLocation(models.TimestampLayout, value, loc)
	require.NoError(t, err)
	ms := ts.UnixMilli()
	return &ms
}

type logSourceStub struct {
	mu      sync.Mutex
	streams map[string][]models.LogStream
	errs    map[string]error
	calls   []string
}

func (l *logSourceStub) RecentStreams(ctx context.Context, logGroup string) ([]models.LogStream, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logGroup)
	if err, ok := l.errs[logGroup]; ok {
		return nil, err
	}
	return l.streams[logGroup], nil
}

type surveySourceStub struct {
	rows map[models.SurveyVariant][]repository.RawSurveyRow
	errs map[models.SurveyVariant]error
}

func (s surveySourceStub) Load(ctx context.Context, variant models.SurveyVariant) ([]repository.RawSurveyRow, error) {
	if err, ok := s.errs[variant]; ok {
		return nil, err
	}
	return s.rows[variant], nil
}

type referenceSourceStub struct {
	refs []models.ParticipantReference
	err  error
}

func (r referenceSourceStub) Load(ctx context.Context) ([]models.ParticipantReference, error) {
	return r.refs, r.err
}

type participantStoreStub struct {
	mu           sync.Mutex
	participants map[int64]models.ParticipantSchedule
	updates      []map[string]interface{}
	createErr    error
}

func newParticipantStoreStub(ps ...models.ParticipantSchedule) *participantStoreStub {
	store := &participantStoreStub{participants: map[int64]models.ParticipantSchedule{}}
	for _, p := range ps {
		store.participants[p.ParticipantID] = p
	}
	return store
}

func (s *participantStoreStub) Get(ctx context.Context, id int64) (*models.ParticipantSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrParticipantNotFound, "participant %d not found", id)
	}
	return &p, nil
}

func (s *participantStoreStub) List(ctx context.Context) ([]models.ParticipantSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ParticipantSchedule, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

func (s *participantStoreStub) Create(ctx context.Context, p models.ParticipantSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.participants[p.ParticipantID]; ok {
		return appErrors.Clonef(appErrors.ErrParticipantIDConflicts, "participant %d already registered", p.ParticipantID)
	}
	s.participants[p.ParticipantID] = p
	return nil
}

func (s *participantStoreStub) UpdateAttributes(ctx context.Context, id int64, attrs map[string]interface{}) (*models.ParticipantSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrParticipantNotFound, "participant %d not found", id)
	}
	s.updates = append(s.updates, attrs)
	for name, value := range attrs {
		switch name {
		case "start_date":
			p.StartDate = value.(string)
		case "end_date":
			p.EndDate = value.(string)
		case "phone_number":
			p.PhoneNumber = value.(string)
		case "leaderboard_link":
			p.LeaderboardLink = value.(string)
		case "schedule_type":
			p.ScheduleType = value.(string)
		case "message_randomizer":
			copy(p.MessageRandomizer[:], value.([]int))
		}
	}
	s.participants[id] = p
	return &p, nil
}

func (s *participantStoreStub) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[id]; !ok {
		return appErrors.Clonef(appErrors.ErrParticipantNotFound, "participant %d not found", id)
	}
	delete(s.participants, id)
	return nil
}

type cacheRepoStub struct {
	mu          sync.Mutex
	data        map[string]interface{}
	invalidated []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{data: map[string]interface{}{}}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *models.DashboardSummary:
		*d = *(value.(*models.DashboardSummary))
	case *models.DailyReport:
		*d = *(value.(*models.DailyReport))
	}
	return nil
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	c.data = map[string]interface{}{}
	return nil
}

func standardParticipant(id int64, start string) models.ParticipantSchedule {
	end, _ := models.EndDateFor(start)
	return models.ParticipantSchedule{
		ParticipantID:     id,
		StartDate:         start,
		EndDate:           end,
		PhoneNumber:       "+15555550100",
		ScheduleType:      models.ScheduleStandard.String(),
		MessageRandomizer: models.Randomizer{1, 1, 1, 1, 0, 0, 0, 0},
	}
}
