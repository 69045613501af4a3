package service

import "github.com/noah-isme/insight-compliance-api/internal/models"

const (
	// RollingModeSkip excludes days without a percentage from the running mean.
	RollingModeSkip = "skip"
	// RollingModeZero counts days without a percentage as 0%.
	RollingModeZero = "zero"

	totalCells = models.StudyDays * models.SlotsPerDay
)

// ComplianceSummary is the participant-level reduction of a grid.
type ComplianceSummary struct {
	CompletedCells int
	CountedCells   int
	Current        *float64
	Total          float64
}

// Aggregator reduces a graded grid to daily, rolling and overall percentages.
type Aggregator struct {
	mode string
}

// NewAggregator returns an aggregator; unknown modes fall back to skip.
func NewAggregator(mode string) *Aggregator {
	if mode != RollingModeZero {
		mode = RollingModeSkip
	}
	return &Aggregator{mode: mode}
}

// Mode reports the rolling-average convention in use.
func (a *Aggregator) Mode() string { return a.mode }

// DailyPercentage returns completed/counted*100, or nil when nothing is counted.
func DailyPercentage(cells [models.SlotsPerDay]models.ComplianceCell) *float64 {
	completed, counted := 0, 0
	for _, c := range cells {
		if c.Verdict.Counted() {
			counted++
		}
		if c.Verdict.Completed() {
			completed++
		}
	}
	if counted == 0 {
		return nil
	}
	return percent(completed, counted)
}

// Apply fills DailyPercentage and RollingAverage on a copy of grid.
func (a *Aggregator) Apply(grid models.ComplianceGrid) models.ComplianceGrid {
	out := models.ComplianceGrid{Rows: make([]models.ComplianceRow, len(grid.Rows))}
	copy(out.Rows, grid.Rows)

	var sum float64
	var count int
	var running *float64
	for i := range out.Rows {
		daily := DailyPercentage(out.Rows[i].Cells)
		out.Rows[i].DailyPercentage = daily
		switch {
		case daily != nil:
			sum += *daily
			count++
		case a.mode == RollingModeZero:
			count++
		}
		if count > 0 && (daily != nil || a.mode == RollingModeZero) {
			mean := sum / float64(count)
			running = &mean
		}
		if running != nil {
			v := *running
			out.Rows[i].RollingAverage = &v
		}
	}
	return out
}

// Summarize counts completed and due cells. Total is measured against all 56
// cells of the study; Current only against cells already due.
func (a *Aggregator) Summarize(grid models.ComplianceGrid) ComplianceSummary {
	var s ComplianceSummary
	for _, c := range grid.Cells() {
		if c.Verdict.Counted() {
			s.CountedCells++
		}
		if c.Verdict.Completed() {
			s.CompletedCells++
		}
	}
	s.Total = float64(s.CompletedCells) / float64(totalCells) * 100
	if s.CountedCells > 0 {
		s.Current = percent(s.CompletedCells, s.CountedCells)
	}
	return s
}

func percent(part, whole int) *float64 {
	v := float64(part) / float64(whole) * 100
	return &v
}
