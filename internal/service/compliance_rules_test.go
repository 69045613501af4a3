package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/insight-compliance-api/internal/models"
)

func TestRequiredVariantSlotOne(t *testing.T) {
	var r models.Randomizer
	for day := 1; day <= models.StudyDays; day++ {
		v, ok := RequiredVariant(day, 1, r)
		require.True(t, ok)
		if day >= 5 && day <= 12 {
			assert.Equal(t, models.Survey1A, v, "day %d", day)
		} else {
			assert.Equal(t, models.Survey1B, v, "day %d", day)
		}
	}
}

func TestRequiredVariantFollowsRandomizer(t *testing.T) {
	r := models.Randomizer{0, 1, 1, 0, 1, 0, 0, 1}
	for day := 1; day <= models.StudyDays; day++ {
		v, ok := RequiredVariant(day, 2, r)
		require.True(t, ok)
		want := models.Survey2B
		if day >= 5 && day <= 12 && r[day-5] == 1 {
			want = models.Survey2A
		}
		assert.Equal(t, want, v, "day %d", day)
	}

	v, _ := RequiredVariant(7, 2, models.Randomizer{0, 0, 1, 0, 0, 0, 0, 0})
	assert.Equal(t, models.Survey2A, v)
	v, _ = RequiredVariant(7, 2, models.Randomizer{1, 1, 0, 1, 1, 1, 1, 1})
	assert.Equal(t, models.Survey2B, v)
}

func TestRequiredVariantOutsideStudy(t *testing.T) {
	for _, day := range []int{0, -1, 15} {
		_, ok := RequiredVariant(day, 1, models.Randomizer{})
		assert.False(t, ok, "day %d", day)
	}
	v, _ := RequiredVariant(3, 3, models.Randomizer{})
	assert.Equal(t, models.Survey3, v)
	v, _ = RequiredVariant(13, 4, models.Randomizer{})
	assert.Equal(t, models.Survey4, v)
}

type cellCase struct {
	name      string
	responses []string
	sendTime  string
	want      models.Verdict
	wantStamp string
}

func evaluateFirstSlot(t *testing.T, loc *time.Location, responses []string, sendTime string) models.ComplianceCell {
	t.Helper()
	participant := standardParticipant(42, "2024-01-01")
	rows := make([]models.SurveyResponseRow, 0, len(responses))
	for _, r := range responses {
		ts, err := time.ParseInLocation(models.TimestampLayout, r, loc)
		require.NoError(t, err)
		rows = append(rows, models.SurveyResponseRow{Timestamp: ts, Identity: "AB", Source: models.Survey1B})
	}
	table := models.SendTimeTable{Rows: []models.SendTimeRow{{Date: "2024-01-01"}}}
	table.Rows[0].Slots[0] = sendTime
	row, err := EvaluateRow(EvaluationInput{
		Participant: participant,
		Identity:    models.Identity{ParticipantID: 42, Initials: "AB"},
		Responses:   rows,
		SendTimes:   table,
		Today:       "2024-01-31",
		Location:    loc,
	}, "2024-01-01")
	require.NoError(t, err)
	return row.Cells[0]
}

func TestSlotVerdicts(t *testing.T) {
	ny := loadLocation(t, "America/New_York")
	cases := []cellCase{
		{name: "no response", sendTime: "08:00:00", want: models.VerdictNoResponse},
		{name: "no response without send time", want: models.VerdictNoResponse},
		{name: "single on time", responses: []string{"2024-01-01 08:32:00"}, sendTime: "08:00:00", want: models.VerdictOnTimeSingle, wantStamp: "2024-01-01 08:32:00"},
		{name: "single at send time", responses: []string{"2024-01-01 08:00:00"}, sendTime: "08:00:00", want: models.VerdictOnTimeSingle, wantStamp: "2024-01-01 08:00:00"},
		{name: "single slightly early", responses: []string{"2024-01-01 07:55:00"}, sendTime: "08:00:00", want: models.VerdictOnTimeSingle, wantStamp: "2024-01-01 07:55:00"},
		{name: "single ten minutes early", responses: []string{"2024-01-01 07:50:00"}, sendTime: "08:00:00", want: models.VerdictLateSingle, wantStamp: "2024-01-01 07:50:00"},
		{name: "single at window close", responses: []string{"2024-01-01 09:00:00"}, sendTime: "08:00:00", want: models.VerdictOnTimeSingle, wantStamp: "2024-01-01 09:00:00"},
		{name: "single late", responses: []string{"2024-01-01 09:00:01"}, sendTime: "08:00:00", want: models.VerdictLateSingle, wantStamp: "2024-01-01 09:00:01"},
		{name: "single without send time", responses: []string{"2024-01-01 08:32:00"}, want: models.VerdictIssue},
		{name: "multiple one on time", responses: []string{"2024-01-01 10:00:00", "2024-01-01 08:20:00", "2024-01-01 08:10:00"}, sendTime: "08:00:00", want: models.VerdictOnTimeMultiple, wantStamp: "2024-01-01 08:20:00"},
		{name: "multiple at send time is not on time", responses: []string{"2024-01-01 09:30:00", "2024-01-01 08:00:00"}, sendTime: "08:00:00", want: models.VerdictNoneOnTimeMultiple},
		{name: "multiple early", responses: []string{"2024-01-01 07:58:00", "2024-01-01 07:59:00"}, sendTime: "08:00:00", want: models.VerdictNoneOnTimeMultiple},
		{name: "multiple without send time", responses: []string{"2024-01-01 08:10:00", "2024-01-01 08:20:00"}, want: models.VerdictIssue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cell := evaluateFirstSlot(t, ny, tc.responses, tc.sendTime)
			assert.Equal(t, tc.want, cell.Verdict)
			assert.Equal(t, tc.want.Label(), cell.Label)
			assert.Equal(t, models.Survey1B, cell.Variant)
			assert.Equal(t, tc.wantStamp, cell.ResponseTimestamp)
		})
	}
}

func TestEvaluateGridShapeAndHorizon(t *testing.T) {
	participant := standardParticipant(42, "2024-01-01")
	grid, err := EvaluateGrid(EvaluationInput{
		Participant: participant,
		Identity:    models.Identity{ParticipantID: 42, Initials: "AB"},
		Today:       "2024-01-03",
		Location:    time.UTC,
	})
	require.NoError(t, err)
	require.Len(t, grid.Rows, models.StudyDays)
	for i, row := range grid.Rows {
		assert.Equal(t, i+1, row.StudyDay)
		for _, cell := range row.Cells {
			if row.Date <= "2024-01-03" {
				assert.Equal(t, models.VerdictNoResponse, cell.Verdict, row.Date)
			} else {
				assert.Equal(t, models.VerdictNotYetDue, cell.Verdict, row.Date)
			}
		}
	}
}

func TestEvaluateRowOutsideStudyIsNotApplicable(t *testing.T) {
	participant := standardParticipant(42, "2024-01-01")
	row, err := EvaluateRow(EvaluationInput{Participant: participant, Today: "2024-02-01"}, "2024-01-20")
	require.NoError(t, err)
	assert.Equal(t, 20, row.StudyDay)
	for _, cell := range row.Cells {
		assert.Equal(t, models.VerdictNotApplicable, cell.Verdict)
		assert.Equal(t, "N/A", cell.Label)
	}
}

func TestSlotEvaluatorDoesNotMutateInput(t *testing.T) {
	participant := standardParticipant(42, "2024-01-01")
	grid := models.ComplianceGrid{Rows: []models.ComplianceRow{{Date: "2024-01-01", StudyDay: 1}}}
	out := slotEvaluator(1)(grid, EvaluationInput{Participant: participant, Today: "2024-01-10"})
	assert.Equal(t, models.Verdict(""), grid.Rows[0].Cells[0].Verdict)
	assert.Equal(t, models.VerdictNoResponse, out.Rows[0].Cells[0].Verdict)
}

func TestEvaluateRowKeepsCollidingIdentitiesApart(t *testing.T) {
	ny := loadLocation(t, "America/New_York")
	ts, err := time.ParseInLocation(models.TimestampLayout, "2024-01-01 08:32:00", ny)
	require.NoError(t, err)
	rows := []models.SurveyResponseRow{
		{Timestamp: ts, Identity: "JS", Age: intPtr(21), Source: models.Survey1B},
		{Timestamp: ts, Identity: "JS", Age: intPtr(34), Source: models.Survey1B},
	}
	table := models.SendTimeTable{Rows: []models.SendTimeRow{{Date: "2024-01-01"}}}
	table.Rows[0].Slots[0] = "08:00:00"

	evaluate := func(id int64, age int) models.ComplianceCell {
		row, err := EvaluateRow(EvaluationInput{
			Participant: standardParticipant(id, "2024-01-01"),
			Identity:    models.Identity{ParticipantID: id, Initials: "JS", Age: intPtr(age), AgeDiscriminated: true},
			Responses:   rows,
			SendTimes:   table,
			Today:       "2024-01-31",
			Location:    ny,
		}, "2024-01-01")
		require.NoError(t, err)
		return row.Cells[0]
	}

	for _, tc := range []struct {
		id  int64
		age int
	}{{1, 21}, {2, 34}} {
		cell := evaluate(tc.id, tc.age)
		assert.Equal(t, models.VerdictOnTimeSingle, cell.Verdict, "participant %d sees only its own row", tc.id)
		assert.Equal(t, "2024-01-01 08:32:00", cell.ResponseTimestamp)
	}

	stranger := evaluate(3, 50)
	assert.Equal(t, models.VerdictNoResponse, stranger.Verdict)
}
