package raptor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gtfs-raptor/internal/gtfs"
	"gtfs-raptor/internal/model"
	"gtfs-raptor/internal/timetable"
)

type call struct {
	stop     string
	arr, dep int
}

func at(stop string, arr, dep int) call { return call{stop: stop, arr: arr, dep: dep} }

// feedBuilder assembles small feeds; stops and routes are declared on first use.
type feedBuilder struct {
	feed   gtfs.Feed
	stops  map[string]bool
	routes map[string]bool
}

func newFeed() *feedBuilder {
	return &feedBuilder{stops: map[string]bool{}, routes: map[string]bool{}}
}

func (b *feedBuilder) stop(ids ...string) *feedBuilder {
	for _, id := range ids {
		if !b.stops[id] {
			b.stops[id] = true
			b.feed.Stops = append(b.feed.Stops, gtfs.Stop{StopID: id, StopName: "Stop " + id})
		}
	}
	return b
}

func (b *feedBuilder) trip(routeID, tripID string, calls ...call) *feedBuilder {
	if !b.routes[routeID] {
		b.routes[routeID] = true
		b.feed.Routes = append(b.feed.Routes, gtfs.Route{RouteID: routeID})
	}
	b.feed.Trips = append(b.feed.Trips, gtfs.Trip{TripID: tripID, RouteID: routeID})
	for i, c := range calls {
		b.stop(c.stop)
		b.feed.StopTimes = append(b.feed.StopTimes, gtfs.StopTime{
			TripID:       tripID,
			StopID:       c.stop,
			StopSequence: i + 1,
			ArrivalSec:   c.arr,
			DepartureSec: c.dep,
		})
	}
	return b
}

func (b *feedBuilder) transfer(from, to string, d int) *feedBuilder {
	b.stop(from, to)
	b.feed.Transfers = append(b.feed.Transfers, gtfs.Transfer{FromStopID: from, ToStopID: to, MinTransferTime: d})
	return b
}

func (b *feedBuilder) build(t *testing.T) *timetable.Timetable {
	t.Helper()
	tt, err := timetable.Build(&b.feed)
	require.NoError(t, err)
	return tt
}

func stop(t *testing.T, tt *timetable.Timetable, id string) *model.Stop {
	t.Helper()
	s, ok := tt.Stop(id)
	require.True(t, ok, "stop %s", id)
	return s
}

// lineABC is route A->B->C with a single trip.
func lineABC() *feedBuilder {
	return newFeed().trip("R1", "T1", at("A", 0, 0), at("B", 10, 15), at("C", 30, 30))
}

type recordingObserver struct {
	rounds   []int
	marked   []int
	scans    int
	failures []*ConsistencyError
}

func (o *recordingObserver) RoundCompleted(round, marked int) {
	o.rounds = append(o.rounds, round)
	o.marked = append(o.marked, marked)
}

func (o *recordingObserver) RouteScanned() { o.scans++ }

func (o *recordingObserver) ConsistencyFailure(err *ConsistencyError) {
	o.failures = append(o.failures, err)
}
