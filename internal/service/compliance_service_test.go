package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	"github.com/noah-isme/insight-compliance-api/internal/repository"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

type complianceFixture struct {
	service *ComplianceService
	store   *participantStoreStub
	logs    *logSourceStub
	metrics *MetricsService
	ny      *time.Location
}

func newComplianceFixture(t *testing.T) *complianceFixture {
	t.Helper()
	ny := loadLocation(t, "America/New_York")
	denver := loadLocation(t, "America/Denver")

	store := newParticipantStoreStub(standardParticipant(42, "2024-01-01"))
	logs := &logSourceStub{streams: map[string][]models.LogStream{
		standardGroup1: {{Name: "2024/01/01/[$LATEST]a", FirstEventTimestamp: epochMillis(t, ny, "2024-01-01 08:00:00")}},
	}}
	surveys := surveySourceStub{rows: map[models.SurveyVariant][]repository.RawSurveyRow{
		models.Survey1B: {{Line: 2, DateTime: "2024-01-01 06:32:00", Name: "AB"}},
	}}
	refs := referenceSourceStub{refs: []models.ParticipantReference{{ParticipantID: 42, Initials: "AB"}}}

	metrics := NewMetricsService()
	catalog := NewScheduleCatalog("")
	svc := NewComplianceService(
		store,
		catalog,
		NewIdentityService(refs, nil),
		NewSurveyMergeService(surveys, metrics, nil, SurveyMergeConfig{SourceLocation: denver, ReferenceLocation: ny}),
		NewSendTimeService(logs, catalog, metrics, nil, SendTimeConfig{Location: ny}),
		NewAggregator(RollingModeSkip),
		metrics,
		zap.NewNop(),
		ComplianceConfig{Timeout: 5 * time.Second, Location: ny},
	)
	svc.now = func() time.Time { return time.Date(2024, 1, 20, 12, 0, 0, 0, ny) }
	return &complianceFixture{service: svc, store: store, logs: logs, metrics: metrics, ny: ny}
}

func TestEvaluateParticipantEndToEnd(t *testing.T) {
	fx := newComplianceFixture(t)

	report, err := fx.service.EvaluateParticipant(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, report.Grid.Rows, models.StudyDays)
	assert.Equal(t, "2024-01-20", report.AsOf)
	assert.Equal(t, "AB", report.Identity.Initials)

	first := report.Grid.Rows[0].Cells[0]
	assert.Equal(t, models.VerdictOnTimeSingle, first.Verdict)
	assert.Equal(t, "2024-01-01 08:32:00", first.ResponseTimestamp)
	assert.Equal(t, "08:00:00", first.SendTime)
	assert.Equal(t, models.Survey1B, first.Variant)

	for i, row := range report.Grid.Rows {
		for slot, cell := range row.Cells {
			if i == 0 && slot == 0 {
				continue
			}
			assert.Equal(t, models.VerdictNoResponse, cell.Verdict, "%s slot %d", row.Date, slot+1)
		}
	}

	assert.Equal(t, 1, report.CompletedCells)
	assert.Equal(t, 56, report.CountedCells)
	assert.InDelta(t, 100.0/56, report.TotalCompliance, 0.0001)
	require.NotNil(t, report.CurrentCompliance)
	assert.InDelta(t, 100.0/56, *report.CurrentCompliance, 0.0001)
	require.NotNil(t, report.Grid.Rows[0].DailyPercentage)
	assert.InDelta(t, 25, *report.Grid.Rows[0].DailyPercentage, 0.0001)

	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.evaluations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.verdicts.WithLabelValues(string(models.VerdictOnTimeSingle))))
}

func TestEvaluateParticipantMidStudy(t *testing.T) {
	fx := newComplianceFixture(t)
	fx.service.now = func() time.Time { return time.Date(2024, 1, 2, 9, 0, 0, 0, fx.ny) }

	report, err := fx.service.EvaluateParticipant(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 8, report.CountedCells)
	assert.Equal(t, models.VerdictNotYetDue, report.Grid.Rows[2].Cells[0].Verdict)
	assert.InDelta(t, 12.5, *report.CurrentCompliance, 0.0001)
}

func TestEvaluateParticipantFailedSourceBecomesIssue(t *testing.T) {
	fx := newComplianceFixture(t)
	fx.logs.errs = map[string]error{standardGroup1: appErrors.Clone(appErrors.ErrLogQuery, "throttled")}

	report, err := fx.service.EvaluateParticipant(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictIssue, report.Grid.Rows[0].Cells[0].Verdict)
	assert.Equal(t, models.VerdictNoResponse, report.Grid.Rows[1].Cells[0].Verdict)
	require.Len(t, report.SendTimes.FailedSlots, 1)
	assert.Equal(t, 1, report.SendTimes.FailedSlots[0].Slot)
}

func TestEvaluateParticipantOutageAborts(t *testing.T) {
	fx := newComplianceFixture(t)
	fx.logs.errs = map[string]error{
		"/aws/lambda/INSIGHT_Part3_standard_message4": appErrors.Clone(appErrors.ErrLogServiceUnavailable, "expired credentials"),
	}

	report, err := fx.service.EvaluateParticipant(context.Background(), 42)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, appErrors.ErrLogServiceUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.evaluations.WithLabelValues(appErrors.ErrLogServiceUnavailable.Code)))
}

func TestEvaluateParticipantUnknownParticipant(t *testing.T) {
	fx := newComplianceFixture(t)
	_, err := fx.service.EvaluateParticipant(context.Background(), 7)
	assert.ErrorIs(t, err, appErrors.ErrParticipantNotFound)
}

func TestEvaluateParticipantUnknownSchedule(t *testing.T) {
	fx := newComplianceFixture(t)
	p := standardParticipant(42, "2024-01-01")
	p.ScheduleType = "Siesta Schedule"
	fx.store.participants[42] = p

	_, err := fx.service.EvaluateParticipant(context.Background(), 42)
	assert.ErrorIs(t, err, appErrors.ErrUnknownScheduleType)
	assert.Empty(t, fx.logs.calls)
}

func TestComplianceSendTimes(t *testing.T) {
	fx := newComplianceFixture(t)
	table, err := fx.service.SendTimes(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, table.Rows, 14)
	sent, ok := table.Lookup("2024-01-01", 1)
	require.True(t, ok)
	assert.Equal(t, "08:00:00", sent)
}
