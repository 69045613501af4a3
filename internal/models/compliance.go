package models

import "time"

// Verdict is the compliance outcome of one (day, slot) cell.
type Verdict string

const (
	VerdictNoResponse         Verdict = "no_response"
	VerdictOnTimeSingle       Verdict = "on_time_single"
	VerdictLateSingle         Verdict = "late_single"
	VerdictOnTimeMultiple     Verdict = "on_time_multiple"
	VerdictNoneOnTimeMultiple Verdict = "none_on_time_multiple"
	VerdictNotYetDue          Verdict = "not_yet_due"
	VerdictNotApplicable      Verdict = "not_applicable"
	VerdictIssue              Verdict = "issue"
)

var verdictLabels = map[Verdict]string{
	VerdictNoResponse:         "✗ No Response",
	VerdictOnTimeSingle:       "✓ Single Response (On Time)",
	VerdictLateSingle:         "✗ Single Response (Late)",
	VerdictOnTimeMultiple:     "✓ Multiple Responses (One On Time)",
	VerdictNoneOnTimeMultiple: "✗ Multiple Responses (None On Time)",
	VerdictNotYetDue:          "Not Yet Due",
	VerdictNotApplicable:      "N/A",
	VerdictIssue:              "⚠ Issue",
}

// Verdicts lists every verdict.
func Verdicts() []Verdict {
	return []Verdict{
		VerdictNoResponse, VerdictOnTimeSingle, VerdictLateSingle, VerdictOnTimeMultiple,
		VerdictNoneOnTimeMultiple, VerdictNotYetDue, VerdictNotApplicable, VerdictIssue,
	}
}

// Label renders the verdict for reports.
func (v Verdict) Label() string {
	if l, ok := verdictLabels[v]; ok {
		return l
	}
	return string(v)
}

// Counted reports whether the cell contributes to the denominator.
func (v Verdict) Counted() bool {
	return v != VerdictNotYetDue && v != VerdictNotApplicable && v != ""
}

// Completed reports whether the cell counts as an on-time completion.
func (v Verdict) Completed() bool {
	return v == VerdictOnTimeSingle || v == VerdictOnTimeMultiple
}

// ComplianceCell is the evaluated outcome for one slot of one day.
type ComplianceCell struct {
	Verdict  Verdict       `json:"verdict"`
	Label    string        `json:"label"`
	Variant  SurveyVariant `json:"variant,omitempty"`
	SendTime string        `json:"send_time,omitempty"`
	// ResponseTimestamp is YYYY-MM-DD HH:MM:SS in the reference timezone.
	ResponseTimestamp string `json:"response_timestamp,omitempty"`
}

// ComplianceRow is one study date of the grid.
type ComplianceRow struct {
	Date            string                      `json:"date"`
	StudyDay        int                         `json:"study_day"`
	Cells           [SlotsPerDay]ComplianceCell `json:"cells"`
	DailyPercentage *float64                    `json:"daily_percentage,omitempty"`
	RollingAverage  *float64                    `json:"rolling_average,omitempty"`
}

// ComplianceGrid is ordered by date ascending.
type ComplianceGrid struct {
	Rows []ComplianceRow `json:"rows"`
}

// Cells iterates all cells in row-major order.
func (g ComplianceGrid) Cells() []ComplianceCell {
	out := make([]ComplianceCell, 0, len(g.Rows)*SlotsPerDay)
	for _, row := range g.Rows {
		out = append(out, row.Cells[:]...)
	}
	return out
}

// ComplianceReport is the full evaluation result for a participant.
type ComplianceReport struct {
	Participant       ParticipantSchedule `json:"participant"`
	Identity          Identity            `json:"identity"`
	AsOf              string              `json:"as_of"`
	Grid              ComplianceGrid      `json:"grid"`
	SendTimes         SendTimeTable       `json:"send_times"`
	CompletedCells    int                 `json:"completed_cells"`
	CountedCells      int                 `json:"counted_cells"`
	CurrentCompliance *float64            `json:"current_compliance,omitempty"`
	TotalCompliance   float64             `json:"total_compliance"`
	GeneratedAt       time.Time           `json:"generated_at"`
}

// ParticipantBuckets groups participants by study status for a date.
type ParticipantBuckets struct {
	NotStarted []ParticipantSchedule `json:"not_started"`
	InStudy    []ParticipantSchedule `json:"in_study"`
	Completed  []ParticipantSchedule `json:"completed"`
}

// DailyEntry is one in-study participant's outcome for the report date.
type DailyEntry struct {
	ParticipantID   int64                       `json:"participant_id"`
	ScheduleType    string                      `json:"schedule_type"`
	StudyDay        int                         `json:"study_day"`
	Cells           [SlotsPerDay]ComplianceCell `json:"cells"`
	DailyPercentage *float64                    `json:"daily_percentage,omitempty"`
	Error           string                      `json:"error,omitempty"`
}

// DailyReport is the fleet-wide compliance view for one calendar date.
type DailyReport struct {
	Date        string             `json:"date"`
	Buckets     ParticipantBuckets `json:"buckets"`
	SendTimes   []SendTimeTable    `json:"send_times"`
	Entries     []DailyEntry       `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
}
