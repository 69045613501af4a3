package models

import (
	"encoding/json"
	"strings"

	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

// ScheduleType identifies one of the three daily messaging timetables.
type ScheduleType int

const (
	ScheduleEarlyBird ScheduleType = iota + 1
	ScheduleStandard
	ScheduleNightOwl
)

var scheduleNames = map[ScheduleType]string{
	ScheduleEarlyBird: "Early Bird Schedule",
	ScheduleStandard:  "Standard Schedule",
	ScheduleNightOwl:  "Night Owl Schedule",
}

var scheduleKeys = map[ScheduleType]string{
	ScheduleEarlyBird: "earlybird",
	ScheduleStandard:  "standard",
	ScheduleNightOwl:  "nightowl",
}

// ScheduleTypes lists every schedule in catalog order.
func ScheduleTypes() []ScheduleType {
	return []ScheduleType{ScheduleEarlyBird, ScheduleStandard, ScheduleNightOwl}
}

// ParseScheduleType maps the stored name (e.g. "Standard Schedule") to a
// ScheduleType. Unknown names are never defaulted.
func ParseScheduleType(raw string) (ScheduleType, error) {
	trimmed := strings.TrimSpace(raw)
	for st, name := range scheduleNames {
		if name == trimmed {
			return st, nil
		}
	}
	return 0, appErrors.Clonef(appErrors.ErrUnknownScheduleType, "unknown schedule type %q", raw)
}

// String returns the stored schedule name.
func (s ScheduleType) String() string {
	if name, ok := scheduleNames[s]; ok {
		return name
	}
	return "Unknown Schedule"
}

// Key returns the short identifier used in dispatch log group names.
func (s ScheduleType) Key() string {
	return scheduleKeys[s]
}

func (s ScheduleType) Valid() bool {
	_, ok := scheduleNames[s]
	return ok
}

func (s ScheduleType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ScheduleType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseScheduleType(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
