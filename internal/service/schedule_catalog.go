package service

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

// DefaultLogGroupPrefix prefixes every dispatch function log group.
const DefaultLogGroupPrefix = "/aws/lambda/INSIGHT_Part3_"

// ScheduleTimetable lists the expected local send time of every slot for the 14 study days.
type ScheduleTimetable struct {
	ScheduleType models.ScheduleType                          `json:"schedule_type"`
	Days         [models.StudyDays][models.SlotsPerDay]string `json:"days"`
}

// Slot returns the expected HH:MM time for a 1-based study day and slot.
func (t *ScheduleTimetable) Slot(studyDay, slot int) (string, bool) {
	if studyDay < 1 || studyDay > models.StudyDays || slot < 1 || slot > models.SlotsPerDay {
		return "", false
	}
	return t.Days[studyDay-1][slot-1], true
}

var builtinSlotTimes = map[models.ScheduleType][models.SlotsPerDay]string{
	models.ScheduleEarlyBird: {"06:00", "10:00", "14:00", "18:00"},
	models.ScheduleStandard:  {"08:00", "12:00", "16:00", "20:00"},
	models.ScheduleNightOwl:  {"10:00", "14:00", "18:00", "22:00"},
}

// ScheduleCatalog is the read-only registry of messaging timetables.
type ScheduleCatalog struct {
	prefix string
	tables map[models.ScheduleType]*ScheduleTimetable
}

// NewScheduleCatalog builds the built-in catalog.
func NewScheduleCatalog(logGroupPrefix string) *ScheduleCatalog {
	catalog, _ := newCatalog(logGroupPrefix, builtinSlotTimes)
	return catalog
}

type catalogFile struct {
	Schedules map[string][]string `yaml:"schedules"`
}

// LoadScheduleCatalog reads a YAML catalog keyed by stored schedule name:
//
//	schedules:
//	  Standard Schedule: ["08:00", "12:00", "16:00", "20:00"]
//
// An empty path yields the built-in catalog.
func LoadScheduleCatalog(path, logGroupPrefix string) (*ScheduleCatalog, error) {
	if path == "" {
		return NewScheduleCatalog(logGroupPrefix), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule catalog %s: %w", path, err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse schedule catalog %s: %w", path, err)
	}
	times := make(map[models.ScheduleType][models.SlotsPerDay]string, len(file.Schedules))
	for name, slots := range file.Schedules {
		st, err := models.ParseScheduleType(name)
		if err != nil {
			return nil, fmt.Errorf("schedule catalog %s: %w", path, err)
		}
		if len(slots) != models.SlotsPerDay {
			return nil, fmt.Errorf("schedule catalog %s: %s defines %d times, want %d", path, name, len(slots), models.SlotsPerDay)
		}
		var row [models.SlotsPerDay]string
		for i, clock := range slots {
			if _, err := time.Parse("15:04", clock); err != nil {
				return nil, fmt.Errorf("schedule catalog %s: %s slot %d: %w", path, name, i+1, err)
			}
			row[i] = clock
		}
		times[st] = row
	}
	return newCatalog(logGroupPrefix, times)
}

func newCatalog(prefix string, times map[models.ScheduleType][models.SlotsPerDay]string) (*ScheduleCatalog, error) {
	if prefix == "" {
		prefix = DefaultLogGroupPrefix
	}
	catalog := &ScheduleCatalog{prefix: prefix, tables: make(map[models.ScheduleType]*ScheduleTimetable, 3)}
	for _, st := range models.ScheduleTypes() {
		row, ok := times[st]
		if !ok {
			return nil, fmt.Errorf("schedule catalog: missing %s", st)
		}
		table := &ScheduleTimetable{ScheduleType: st}
		for day := range table.Days {
			table.Days[day] = row
		}
		catalog.tables[st] = table
	}
	return catalog, nil
}

// Lookup returns the timetable for a stored schedule name.
func (c *ScheduleCatalog) Lookup(scheduleType string) (*ScheduleTimetable, error) {
	st, err := models.ParseScheduleType(scheduleType)
	if err != nil {
		return nil, err
	}
	table, ok := c.tables[st]
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrUnknownScheduleType, "unknown schedule type %q", scheduleType)
	}
	return table, nil
}

// LogGroups returns the dispatch log group of each slot, e.g.
// /aws/lambda/INSIGHT_Part3_standard_message1.
func (c *ScheduleCatalog) LogGroups(st models.ScheduleType) [models.SlotsPerDay]string {
	var groups [models.SlotsPerDay]string
	for i := range groups {
		groups[i] = fmt.Sprintf("%s%s_message%d", c.prefix, st.Key(), i+1)
	}
	return groups
}
