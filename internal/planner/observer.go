package planner

import (
	"errors"

	"gtfs-raptor/internal/metrics"
	"gtfs-raptor/internal/raptor"
)

// searchObserver feeds per-round search progress into the collector.
type searchObserver struct{ c *metrics.Collector }

func (o searchObserver) RoundCompleted(_, marked int) {
	o.c.Rounds.Inc()
	o.c.MarkedStops.Observe(float64(marked))
}

func (o searchObserver) RouteScanned() { o.c.RouteScans.Inc() }

func (o searchObserver) ConsistencyFailure(err *raptor.ConsistencyError) {
	o.c.ConsistencyFailures.WithLabelValues(failureKind(err)).Inc()
}

func failureKind(err *raptor.ConsistencyError) string {
	switch {
	case errors.Is(err, raptor.ErrStopNotOnRoute):
		return "stop_not_on_route"
	case errors.Is(err, raptor.ErrStopNotOnTrip):
		return "stop_not_on_trip"
	case errors.Is(err, raptor.ErrUnrelatedQueueItems):
		return "unrelated_queue_items"
	case errors.Is(err, raptor.ErrUnknownRoute):
		return "unknown_route"
	default:
		return "unknown"
	}
}
