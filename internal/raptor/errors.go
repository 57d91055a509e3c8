package raptor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStopNotOnRoute      = errors.New("stop not on route")
	ErrStopNotOnTrip       = errors.New("stop not on trip")
	ErrUnrelatedQueueItems = errors.New("queue items do not share a route")
	ErrUnknownRoute        = errors.New("route not in timetable")

	// ErrRoundLimit is returned by Run when the configured round bound stops the
	// search before the worklist drained. Arrivals found so far stay readable.
	ErrRoundLimit = errors.New("round limit reached")
)

// ConsistencyError is an invariant violation found while searching. It means the
// timetable handed to the search is corrupt, so the search aborts.
type ConsistencyError struct {
	Kind    error
	StopID  string
	RouteID string
	TripID  string
}

func (e *ConsistencyError) Error() string {
	var parts []string
	if e.StopID != "" {
		parts = append(parts, "stop="+e.StopID)
	}
	if e.RouteID != "" {
		parts = append(parts, "route="+e.RouteID)
	}
	if e.TripID != "" {
		parts = append(parts, "trip="+e.TripID)
	}
	return fmt.Sprintf("raptor: %v (%s)", e.Kind, strings.Join(parts, " "))
}

func (e *ConsistencyError) Unwrap() error { return e.Kind }
