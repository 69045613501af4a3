package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
)

func newDashboardForTest(store *participantStoreStub, cacheRepo *cacheRepoStub) *DashboardService {
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(DashboardServiceParams{
		Participants: store,
		Cache:        cache,
		Config:       DashboardServiceConfig{RecruitmentTarget: 65},
	})
	svc.now = func() time.Time { return time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC) }
	return svc
}

func TestDashboardSummary(t *testing.T) {
	store := newParticipantStoreStub(
		standardParticipant(1, "2023-12-01"),
		standardParticipant(2, "2024-01-01"),
		standardParticipant(3, "2024-01-03"),
		standardParticipant(4, "2024-02-01"),
	)
	svc := newDashboardForTest(store, newCacheRepoStub())

	summary, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "2024-01-06", summary.AsOf)
	assert.Equal(t, models.RecruitmentProgress{
		Target:        65,
		PendingStart:  1,
		InProgress:    2,
		Completed:     1,
		LeftToRecruit: 61,
	}, summary.Recruitment)
	assert.Equal(t, models.PhaseCounts{Phase1: 1, Phase2: 1}, summary.Phases)

	require.Len(t, summary.Enrollment, 6)
	assert.Equal(t, models.WeeklyEnrollment{WeekStart: "2023-11-27", Count: 1}, summary.Enrollment[0])
	assert.Equal(t, models.WeeklyEnrollment{WeekStart: "2023-12-04", Count: 0}, summary.Enrollment[1])
	assert.Equal(t, models.WeeklyEnrollment{WeekStart: "2024-01-01", Count: 2}, summary.Enrollment[5])
}

func TestDashboardSummaryServedFromCache(t *testing.T) {
	store := newParticipantStoreStub(standardParticipant(2, "2024-01-01"))
	cacheRepo := newCacheRepoStub()
	svc := newDashboardForTest(store, cacheRepo)

	first, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)

	delete(store.participants, 2)
	second, hit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Recruitment, second.Recruitment)
}

func TestDashboardSummaryEmpty(t *testing.T) {
	svc := newDashboardForTest(newParticipantStoreStub(), newCacheRepoStub())
	summary, _, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 65, summary.Recruitment.LeftToRecruit)
	assert.Empty(t, summary.Enrollment)
}
