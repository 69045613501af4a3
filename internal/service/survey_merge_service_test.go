package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	"github.com/noah-isme/insight-compliance-api/internal/repository"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

func newSurveyMergeServiceForTest(t *testing.T, source SurveyExportSource) (*SurveyMergeService, *MetricsService) {
	t.Helper()
	metrics := NewMetricsService()
	return NewSurveyMergeService(source, metrics, zap.NewNop(), SurveyMergeConfig{
		SourceLocation:    loadLocation(t, "America/Denver"),
		ReferenceLocation: loadLocation(t, "America/New_York"),
	}), metrics
}

func TestSurveyMergeConvertsAndSorts(t *testing.T) {
	source := surveySourceStub{rows: map[models.SurveyVariant][]repository.RawSurveyRow{
		models.Survey1B: {
			{Line: 2, DateTime: "2024-01-01 06:32:00", Name: " a b ", Age: "24"},
			{Line: 3, DateTime: "2024-01-01 07:00:00", Name: "cd", Age: "31.0"},
		},
		models.Survey3: {
			{Line: 2, DateTime: "2024-01-01 06:32:00", Name: "ab"},
			{Line: 3, DateTime: "not a date", Name: "ab"},
			{Line: 4, DateTime: "2024-01-01 09:00:00", Name: "   "},
		},
	}}
	svc, metrics := newSurveyMergeServiceForTest(t, source)

	rows, err := svc.Merge(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "CD", rows[0].Identity)
	assert.Equal(t, "2024-01-01 09:00:00", rows[0].Timestamp.Format(models.TimestampLayout))
	require.NotNil(t, rows[0].Age)
	assert.Equal(t, 31, *rows[0].Age)

	// Equal timestamps keep load order: 1B before 3.
	assert.Equal(t, models.Survey1B, rows[1].Source)
	assert.Equal(t, "AB", rows[1].Identity)
	assert.Equal(t, "2024-01-01 08:32:00", rows[1].Timestamp.Format(models.TimestampLayout))
	assert.Equal(t, "America/New_York", rows[1].Timestamp.Location().String())
	assert.Equal(t, models.Survey3, rows[2].Source)
	assert.Nil(t, rows[2].Age)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.surveyRowsDropped))
}

func TestSurveyMergeFailsWhenAnExportIsMissing(t *testing.T) {
	source := surveySourceStub{
		rows: map[models.SurveyVariant][]repository.RawSurveyRow{
			models.Survey1A: {{Line: 2, DateTime: "2024-01-01 06:32:00", Name: "AB"}},
		},
		errs: map[models.SurveyVariant]error{
			models.Survey2B: errors.New("open survey_2b.csv: no such file"),
		},
	}
	svc, _ := newSurveyMergeServiceForTest(t, source)

	rows, err := svc.Merge(context.Background())
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.ErrorIs(t, err, appErrors.ErrSurveyLoad)
	assert.Contains(t, err.Error(), "Survey 2B")
}
