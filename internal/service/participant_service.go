package service

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/dto"
	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

type participantStore interface {
	Get(ctx context.Context, id int64) (*models.ParticipantSchedule, error)
	List(ctx context.Context) ([]models.ParticipantSchedule, error)
	Create(ctx context.Context, p models.ParticipantSchedule) error
	UpdateAttributes(ctx context.Context, id int64, attrs map[string]interface{}) (*models.ParticipantSchedule, error)
	Delete(ctx context.Context, id int64) error
}

// ParticipantService manages participant registration and study state.
type ParticipantService struct {
	store     participantStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewParticipantService constructs the participant service.
func NewParticipantService(store participantStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *ParticipantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ParticipantService{
		store:     store,
		cache:     cache,
		validator: validate,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NormalizePhoneNumber strips formatting and prefixes +1 when no country code is given.
func NormalizePhoneNumber(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if (r >= '0' && r <= '9') || (r == '+' && b.Len() == 0) {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+1" + phone
	}
	return phone
}

func (s *ParticipantService) today() string {
	return s.now().In(s.loc).Format(models.DateLayout)
}

func (s *ParticipantService) randomizer() models.Randomizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.NewRandomizer(s.rng)
}

// Register stores a new participant.
func (s *ParticipantService) Register(ctx context.Context, req dto.RegisterParticipantRequest) (*dto.ParticipantResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}
	end, err := models.EndDateFor(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	participant := models.ParticipantSchedule{
		ParticipantID:   req.ParticipantID,
		StartDate:       req.StartDate,
		EndDate:         end,
		PhoneNumber:     NormalizePhoneNumber(req.PhoneNumber),
		LeaderboardLink: strings.TrimSpace(req.LeaderboardLink),
		ScheduleType:    req.ScheduleType,
	}
	if req.MessageRandomizer != nil {
		participant.MessageRandomizer = *req.MessageRandomizer
	} else {
		participant.MessageRandomizer = s.randomizer()
	}
	if err := participant.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, participant); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.logger.Info("participant registered",
		zap.Int64("participant_id", participant.ParticipantID),
		zap.String("start_date", participant.StartDate),
		zap.String("schedule_type", participant.ScheduleType),
	)
	resp := s.decorate(participant, s.today())
	return &resp, nil
}

// Get returns a participant with derived study state.
func (s *ParticipantService) Get(ctx context.Context, id int64) (*dto.ParticipantResponse, error) {
	participant, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := s.decorate(*participant, s.today())
	return &resp, nil
}

// List returns participants, optionally filtered by status on AsOf (default today).
func (s *ParticipantService) List(ctx context.Context, filter dto.ParticipantFilter) ([]dto.ParticipantResponse, *models.Pagination, error) {
	asOf := filter.AsOf
	if asOf == "" {
		asOf = s.today()
	} else if _, err := time.Parse(models.DateLayout, asOf); err != nil {
		return nil, nil, appErrors.Clonef(appErrors.ErrValidation, "invalid asOf %q", asOf)
	}
	switch filter.Status {
	case "", models.StatusNotStarted, models.StatusInStudy, models.StatusCompleted:
	default:
		return nil, nil, appErrors.Clonef(appErrors.ErrValidation, "invalid status %q", filter.Status)
	}

	participants, err := s.store.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	items := make([]dto.ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		resp := s.decorate(p, asOf)
		if filter.Status != "" && resp.Status != filter.Status {
			continue
		}
		items = append(items, resp)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ParticipantID < items[j].ParticipantID })

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: len(items)}
	start := (page - 1) * size
	if start >= len(items) {
		return []dto.ParticipantResponse{}, pagination, nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], pagination, nil
}

// Update writes the provided attributes. Changing start_date recomputes end_date.
func (s *ParticipantService) Update(ctx context.Context, id int64, req dto.UpdateParticipantRequest) (*dto.ParticipantResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no attributes to update")
	}
	attrs := make(map[string]interface{})
	if req.StartDate != nil {
		end, err := models.EndDateFor(*req.StartDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		attrs["start_date"] = *req.StartDate
		attrs["end_date"] = end
	}
	if req.PhoneNumber != nil {
		phone := NormalizePhoneNumber(*req.PhoneNumber)
		if !models.ValidPhoneNumber(phone) {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "phone_number %q is not E.164", phone)
		}
		attrs["phone_number"] = phone
	}
	if req.LeaderboardLink != nil {
		attrs["leaderboard_link"] = strings.TrimSpace(*req.LeaderboardLink)
	}
	if req.ScheduleType != nil {
		if _, err := models.ParseScheduleType(*req.ScheduleType); err != nil {
			return nil, err
		}
		attrs["schedule_type"] = *req.ScheduleType
	}
	if req.MessageRandomizer != nil {
		if !req.MessageRandomizer.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "message_randomizer flags must be 0 or 1")
		}
		attrs["message_randomizer"] = req.MessageRandomizer[:]
	}

	participant, err := s.store.UpdateAttributes(ctx, id, attrs)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	resp := s.decorate(*participant, s.today())
	return &resp, nil
}

// Delete removes a participant.
func (s *ParticipantService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger.Info("participant removed", zap.Int64("participant_id", id))
	return nil
}

func (s *ParticipantService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, dashboardCachePrefix+"*")
	_ = s.cache.Invalidate(ctx, dailyReportCachePrefix+"*")
}

func (s *ParticipantService) decorate(p models.ParticipantSchedule, asOf string) dto.ParticipantResponse {
	resp := dto.ParticipantResponse{ParticipantSchedule: p, Status: p.Status(asOf)}
	if resp.Status == models.StatusInStudy {
		if day, err := p.StudyDay(asOf); err == nil {
			resp.StudyDay = day
			resp.Phase = models.Phase(day)
		}
	}
	if phases, err := p.PhaseRanges(); err == nil {
		resp.Phases = phases
	}
	return resp
}
