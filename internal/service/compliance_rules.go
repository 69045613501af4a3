package service

import (
	"time"

	"github.com/noah-isme/insight-compliance-api/internal/models"
)

// Response windows, in minutes relative to the send time.
const (
	singleWindowOpen   = -10.0
	multipleWindowOpen = 0.0
	windowClose        = 60.0
)

// EvaluationInput is everything needed to grade one participant.
type EvaluationInput struct {
	Participant models.ParticipantSchedule
	Identity    models.Identity
	// Responses are in merged order: timestamp descending.
	Responses []models.SurveyResponseRow
	SendTimes models.SendTimeTable
	// Today is the evaluation horizon, YYYY-MM-DD. Later days are not yet due.
	Today    string
	Location *time.Location
}

// SlotEvaluator grades one slot across every row of the grid. It returns a new
// grid and leaves its argument untouched.
type SlotEvaluator func(grid models.ComplianceGrid, in EvaluationInput) models.ComplianceGrid

// RequiredVariant returns the survey expected for a study day and 1-based slot.
// ok is false outside the 14 study days.
func RequiredVariant(studyDay, slot int, randomizer models.Randomizer) (variant models.SurveyVariant, ok bool) {
	if studyDay < 1 || studyDay > models.StudyDays {
		return "", false
	}
	inRandomized := models.Phase(studyDay) == 2
	switch slot {
	case 1:
		if inRandomized {
			return models.Survey1A, true
		}
		return models.Survey1B, true
	case 2:
		if flag, ok := randomizer.Flag(studyDay); inRandomized && ok && flag == 1 {
			return models.Survey2A, true
		}
		return models.Survey2B, true
	case 3:
		return models.Survey3, true
	case 4:
		return models.Survey4, true
	}
	return "", false
}

// EvaluateGrid builds the 14-row grid for the participant and grades every slot.
func EvaluateGrid(in EvaluationInput) (models.ComplianceGrid, error) {
	dates, err := in.Participant.StudyDates()
	if err != nil {
		return models.ComplianceGrid{}, err
	}
	grid := models.ComplianceGrid{Rows: make([]models.ComplianceRow, len(dates))}
	for i, date := range dates {
		grid.Rows[i] = models.ComplianceRow{Date: date, StudyDay: i + 1}
	}
	for _, evaluate := range SlotEvaluators() {
		grid = evaluate(grid, in)
	}
	return grid, nil
}

// EvaluateRow grades the four slots of a single calendar date.
func EvaluateRow(in EvaluationInput, date string) (models.ComplianceRow, error) {
	day, err := in.Participant.StudyDay(date)
	if err != nil {
		return models.ComplianceRow{}, err
	}
	grid := models.ComplianceGrid{Rows: []models.ComplianceRow{{Date: date, StudyDay: day}}}
	for _, evaluate := range SlotEvaluators() {
		grid = evaluate(grid, in)
	}
	return grid.Rows[0], nil
}

// SlotEvaluators returns one evaluator per slot, in slot order.
func SlotEvaluators() []SlotEvaluator {
	evaluators := make([]SlotEvaluator, models.SlotsPerDay)
	for i := range evaluators {
		evaluators[i] = slotEvaluator(i + 1)
	}
	return evaluators
}

func slotEvaluator(slot int) SlotEvaluator {
	return func(grid models.ComplianceGrid, in EvaluationInput) models.ComplianceGrid {
		out := models.ComplianceGrid{Rows: make([]models.ComplianceRow, len(grid.Rows))}
		copy(out.Rows, grid.Rows)
		for i := range out.Rows {
			out.Rows[i].Cells[slot-1] = evaluateCell(out.Rows[i].Date, out.Rows[i].StudyDay, slot, in)
		}
		return out
	}
}

func evaluateCell(date string, studyDay, slot int, in EvaluationInput) models.ComplianceCell {
	variant, ok := RequiredVariant(studyDay, slot, in.Participant.MessageRandomizer)
	if !ok {
		return newCell(models.VerdictNotApplicable, "", "")
	}
	sendTime, hasSend := in.SendTimes.Lookup(date, slot)
	cell := newCell(models.VerdictNotYetDue, variant, sendTime)
	if date > in.Today {
		return cell
	}

	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	matches := matchResponses(in.Responses, in.Identity, variant, date, loc)
	if len(matches) == 0 {
		return withVerdict(cell, models.VerdictNoResponse)
	}
	if !hasSend {
		return withVerdict(cell, models.VerdictIssue)
	}
	sentAt, err := time.ParseInLocation(models.TimestampLayout, date+" "+sendTime, loc)
	if err != nil {
		return withVerdict(cell, models.VerdictIssue)
	}

	if len(matches) == 1 {
		diff := matches[0].Timestamp.Sub(sentAt).Minutes()
		cell.ResponseTimestamp = matches[0].Timestamp.In(loc).Format(models.TimestampLayout)
		if diff > singleWindowOpen && diff <= windowClose {
			return withVerdict(cell, models.VerdictOnTimeSingle)
		}
		return withVerdict(cell, models.VerdictLateSingle)
	}

	for _, m := range matches {
		diff := m.Timestamp.Sub(sentAt).Minutes()
		if diff > multipleWindowOpen && diff <= windowClose {
			cell.ResponseTimestamp = m.Timestamp.In(loc).Format(models.TimestampLayout)
			return withVerdict(cell, models.VerdictOnTimeMultiple)
		}
	}
	return withVerdict(cell, models.VerdictNoneOnTimeMultiple)
}

func matchResponses(rows []models.SurveyResponseRow, identity models.Identity, variant models.SurveyVariant, date string, loc *time.Location) []models.SurveyResponseRow {
	var out []models.SurveyResponseRow
	for _, row := range rows {
		if row.Source != variant || !identity.Matches(row) {
			continue
		}
		if row.Timestamp.In(loc).Format(models.DateLayout) != date {
			continue
		}
		out = append(out, row)
	}
	return out
}

func newCell(v models.Verdict, variant models.SurveyVariant, sendTime string) models.ComplianceCell {
	return models.ComplianceCell{Verdict: v, Label: v.Label(), Variant: variant, SendTime: sendTime}
}

func withVerdict(cell models.ComplianceCell, v models.Verdict) models.ComplianceCell {
	cell.Verdict = v
	cell.Label = v.Label()
	return cell
}
