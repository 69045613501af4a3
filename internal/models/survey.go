package models

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// SurveyVariant identifies one of the six survey instruments.
type SurveyVariant string

const (
	Survey1A SurveyVariant = "1A"
	Survey1B SurveyVariant = "1B"
	Survey2A SurveyVariant = "2A"
	Survey2B SurveyVariant = "2B"
	Survey3  SurveyVariant = "3"
	Survey4  SurveyVariant = "4"
)

// SurveyVariants lists the variants in export load order.
func SurveyVariants() []SurveyVariant {
	return []SurveyVariant{Survey1A, Survey1B, Survey2A, Survey2B, Survey3, Survey4}
}

// Label renders the variant as it appears in reports, e.g. "Survey 1A".
func (v SurveyVariant) Label() string {
	if v == "" {
		return ""
	}
	return "Survey " + string(v)
}

// SurveyResponseRow is one merged survey submission.
type SurveyResponseRow struct {
	// Timestamp is expressed in the reference timezone.
	Timestamp time.Time     `json:"timestamp"`
	Identity  string        `json:"identity"`
	Source    SurveyVariant `json:"source"`
	Age       *int          `json:"age,omitempty"`
}

// Date returns the calendar date of the response in its own location.
func (r SurveyResponseRow) Date() string {
	return r.Timestamp.Format(DateLayout)
}

// ParticipantReference is one row of the participant reference table.
type ParticipantReference struct {
	ParticipantID int64  `json:"participant_id"`
	Initials      string `json:"initials"`
	Age           *int   `json:"age,omitempty"`
}

// Identity is how a participant is recognised in survey exports.
type Identity struct {
	ParticipantID    int64  `json:"participant_id"`
	Initials         string `json:"initials"`
	Age              *int   `json:"age,omitempty"`
	AgeDiscriminated bool   `json:"age_discriminated"`
}

// Matches reports whether a survey row belongs to this identity. The age
// predicate only applies when the identity is age-discriminated.
func (id Identity) Matches(row SurveyResponseRow) bool {
	if row.Identity != id.Initials {
		return false
	}
	if !id.AgeDiscriminated {
		return true
	}
	return id.Age != nil && row.Age != nil && *row.Age == *id.Age
}

// NormalizeInitials uppercases s and strips all whitespace.
func NormalizeInitials(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// ParseAge accepts whole numbers, including exports that write them as "24.0".
// Both sides of the age join key go through it.
func ParseAge(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return nil
	}
	n := int(f)
	return &n
}
