package models

import "time"

// RecruitmentProgress summarises enrollment against the recruitment target.
type RecruitmentProgress struct {
	Target        int `json:"target"`
	PendingStart  int `json:"pending_start"`
	InProgress    int `json:"in_progress"`
	Completed     int `json:"completed"`
	LeftToRecruit int `json:"left_to_recruit"`
}

// PhaseCounts counts in-study participants per phase.
type PhaseCounts struct {
	Phase1 int `json:"phase_1"`
	Phase2 int `json:"phase_2"`
	Phase3 int `json:"phase_3"`
}

// WeeklyEnrollment counts participants whose study starts in a Monday-based week.
type WeeklyEnrollment struct {
	WeekStart string `json:"week_start"`
	Count     int    `json:"count"`
}

// DashboardSummary is the aggregate payload for the staff dashboard.
type DashboardSummary struct {
	AsOf        string              `json:"as_of"`
	Recruitment RecruitmentProgress `json:"recruitment"`
	Phases      PhaseCounts         `json:"phases"`
	Enrollment  []WeeklyEnrollment  `json:"enrollment"`
	GeneratedAt time.Time           `json:"generated_at"`
}
