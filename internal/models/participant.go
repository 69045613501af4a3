package models

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"

	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

const (
	// DateLayout is the calendar date format used throughout the study data.
	DateLayout = "2006-01-02"
	// TimestampLayout formats survey response timestamps.
	TimestampLayout = "2006-01-02 15:04:05"
	// ClockLayout formats message send times.
	ClockLayout = "15:04:05"

	StudyDays     = 14
	SlotsPerDay   = 4
	RandomizedDay = 5
)

var e164 = regexp.MustCompile(`^\+\d{10,15}$`)

// Randomizer holds the message flags for study days 5 through 12. A 1 on a
// given day means the participant receives survey 2A instead of 2B.
type Randomizer [8]int

// NewRandomizer returns a shuffled balanced randomizer (four 1s, four 0s).
func NewRandomizer(r *rand.Rand) Randomizer {
	out := Randomizer{1, 1, 1, 1, 0, 0, 0, 0}
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Valid reports whether every flag is binary.
func (r Randomizer) Valid() bool {
	for _, v := range r {
		if v != 0 && v != 1 {
			return false
		}
	}
	return true
}

// Flag returns the flag for a study day in the randomized window.
func (r Randomizer) Flag(studyDay int) (int, bool) {
	idx := studyDay - RandomizedDay
	if idx < 0 || idx >= len(r) {
		return 0, false
	}
	return r[idx], true
}

// ParticipantStatus buckets a participant relative to a calendar date.
type ParticipantStatus string

const (
	StatusNotStarted ParticipantStatus = "not_started"
	StatusInStudy    ParticipantStatus = "in_study"
	StatusCompleted  ParticipantStatus = "completed"
)

// ParticipantSchedule is the per-participant record held in the participant store.
type ParticipantSchedule struct {
	ParticipantID     int64      `json:"participant_id"`
	StartDate         string     `json:"start_date"`
	EndDate           string     `json:"end_date"`
	PhoneNumber       string     `json:"phone_number"`
	LeaderboardLink   string     `json:"leaderboard_link"`
	ScheduleType      string     `json:"schedule_type"`
	MessageRandomizer Randomizer `json:"message_randomizer"`
}

// EndDateFor returns start + 13 days.
func EndDateFor(start string) (string, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return "", fmt.Errorf("parse start date %q: %w", start, err)
	}
	return s.AddDate(0, 0, StudyDays-1).Format(DateLayout), nil
}

// ValidPhoneNumber reports whether p is in E.164 form.
func ValidPhoneNumber(p string) bool {
	return e164.MatchString(p)
}

// Validate checks the record invariants.
func (p ParticipantSchedule) Validate() error {
	if p.ParticipantID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "participant_id must be positive")
	}
	end, err := EndDateFor(p.StartDate)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if p.EndDate != end {
		return appErrors.Clonef(appErrors.ErrValidation, "end_date must be %s for start_date %s", end, p.StartDate)
	}
	if _, err := ParseScheduleType(p.ScheduleType); err != nil {
		return err
	}
	if !p.MessageRandomizer.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "message_randomizer flags must be 0 or 1")
	}
	if p.PhoneNumber != "" && !ValidPhoneNumber(p.PhoneNumber) {
		return appErrors.Clonef(appErrors.ErrValidation, "phone_number %q is not E.164", p.PhoneNumber)
	}
	return nil
}

// Start parses StartDate in loc.
func (p ParticipantSchedule) Start(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, p.StartDate, loc)
}

// StudyDay returns the 1-based study day for date; values outside 1..14
// mean the date is outside the study window.
func (p ParticipantSchedule) StudyDay(date string) (int, error) {
	start, err := time.Parse(DateLayout, p.StartDate)
	if err != nil {
		return 0, fmt.Errorf("parse start date %q: %w", p.StartDate, err)
	}
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", date, err)
	}
	return int(d.Sub(start).Hours()/24) + 1, nil
}

// StudyDates lists the 14 calendar dates of the study, ascending.
func (p ParticipantSchedule) StudyDates() ([]string, error) {
	start, err := time.Parse(DateLayout, p.StartDate)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", p.StartDate, err)
	}
	dates := make([]string, StudyDays)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i).Format(DateLayout)
	}
	return dates, nil
}

// Status buckets the participant relative to date.
func (p ParticipantSchedule) Status(date string) ParticipantStatus {
	switch {
	case date < p.StartDate:
		return StatusNotStarted
	case date > p.EndDate:
		return StatusCompleted
	default:
		return StatusInStudy
	}
}

// Phase returns the study phase (1, 2 or 3) for a study day, or 0 outside the study.
func Phase(studyDay int) int {
	switch {
	case studyDay >= 1 && studyDay <= 4:
		return 1
	case studyDay >= 5 && studyDay <= 12:
		return 2
	case studyDay >= 13 && studyDay <= StudyDays:
		return 3
	default:
		return 0
	}
}

// PhaseRange is the calendar span covered by one study phase.
type PhaseRange struct {
	Phase int    `json:"phase"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// PhaseRanges returns the three phase windows for the participant.
func (p ParticipantSchedule) PhaseRanges() ([]PhaseRange, error) {
	dates, err := p.StudyDates()
	if err != nil {
		return nil, err
	}
	return []PhaseRange{
		{Phase: 1, From: dates[0], To: dates[3]},
		{Phase: 2, From: dates[4], To: dates[11]},
		{Phase: 3, From: dates[12], To: dates[13]},
	}, nil
}
