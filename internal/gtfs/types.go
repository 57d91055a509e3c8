package gtfs

// Feed is the raw record set a timetable is built from, as read from a GTFS
// source before any grouping or validation.
type Feed struct {
	Stops     []Stop
	Routes    []Route
	Trips     []Trip
	StopTimes []StopTime
	Transfers []Transfer
}

type Stop struct {
	StopID   string
	StopName string
}

type Route struct {
	RouteID        string
	RouteShortName string
}

type Trip struct {
	TripID        string
	RouteID       string
	TripShortName string
	ServiceID     string
}

type StopTime struct {
	TripID       string
	StopID       string
	StopSequence int
	ArrivalSec   int // seconds since midnight (can exceed 24h)
	DepartureSec int // seconds since midnight (can exceed 24h)
}

type Transfer struct {
	FromStopID      string
	ToStopID        string
	MinTransferTime int // seconds
}
