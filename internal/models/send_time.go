package models

// LogStream is the subset of dispatch log stream metadata used to recover
// send times. Timestamps are UTC epoch milliseconds.
type LogStream struct {
	Name                string `json:"name"`
	FirstEventTimestamp *int64 `json:"first_event_timestamp,omitempty"`
	LastEventTimestamp  *int64 `json:"last_event_timestamp,omitempty"`
}

// SendTimeRow holds the reconstructed HH:MM:SS send time for each slot of a
// date. An empty string means no send was observed.
type SendTimeRow struct {
	Date  string              `json:"date"`
	Slots [SlotsPerDay]string `json:"slots"`
}

// FailedSlot records a slot whose log source could not be queried.
type FailedSlot struct {
	Slot   int    `json:"slot"`
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// SendTimeTable is the per-date, per-slot send time table for one schedule.
type SendTimeTable struct {
	ScheduleType string        `json:"schedule_type"`
	Rows         []SendTimeRow `json:"rows"`
	FailedSlots  []FailedSlot  `json:"failed_slots,omitempty"`
}

// Lookup returns the send time for a date and 1-based slot.
func (t SendTimeTable) Lookup(date string, slot int) (string, bool) {
	if slot < 1 || slot > SlotsPerDay {
		return "", false
	}
	for _, row := range t.Rows {
		if row.Date == date {
			v := row.Slots[slot-1]
			return v, v != ""
		}
	}
	return "", false
}

// SlotFailed reports whether the log source for a 1-based slot failed.
func (t SendTimeTable) SlotFailed(slot int) bool {
	for _, f := range t.FailedSlots {
		if f.Slot == slot {
			return true
		}
	}
	return false
}
