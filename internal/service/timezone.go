package service

import (
	"fmt"
	"time"

	// Embedded zone database so America/* zones resolve in minimal containers.
	_ "time/tzdata"
)

// LoadLocation resolves an IANA zone name, defaulting to UTC when empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// calendarDays lists every date from..to inclusive, formatted YYYY-MM-DD.
func calendarDays(from, to time.Time) []string {
	days := make([]string, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}
