package timetable

import "fmt"

// InputError reports malformed feed data found while building a timetable.
type InputError struct {
	Entity string // stop, route, trip, stop_time, transfer
	ID     string
	Reason string
}

func (e *InputError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Entity, e.ID, e.Reason)
}
