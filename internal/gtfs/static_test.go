package gtfs

import (
	"testing"
	"time"

	jgtfs "github.com/jamespfennell/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticFixture() *jgtfs.Static {
	static := &jgtfs.Static{
		Routes:   []jgtfs.Route{{Id: "R1", ShortName: "1"}},
		Stops:    []jgtfs.Stop{{Id: "A", Name: "Alpha"}, {Id: "B", Name: "Bravo"}},
		Services: []jgtfs.Service{{Id: "WD", Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true}, {Id: "SUN", Sunday: true}},
	}
	two := int32(120)
	static.Transfers = []jgtfs.Transfer{{From: &static.Stops[0], To: &static.Stops[1], MinTransferTime: &two}}
	static.Trips = []jgtfs.ScheduledTrip{
		{ID: "T1", Route: &static.Routes[0], Service: &static.Services[0]},
		{ID: "T2", Route: &static.Routes[0], Service: &static.Services[1]},
	}
	for i := range static.Trips {
		static.Trips[i].StopTimes = []jgtfs.ScheduledStopTime{
			{Stop: &static.Stops[0], StopSequence: 1, ArrivalTime: 8 * time.Hour, DepartureTime: 8 * time.Hour},
			{Stop: &static.Stops[1], StopSequence: 2, ArrivalTime: 8*time.Hour + 10*time.Minute, DepartureTime: 8*time.Hour + 11*time.Minute},
		}
	}
	return static
}

func TestFromStatic(t *testing.T) {
	feed := FromStatic(staticFixture(), time.Time{})

	assert.Equal(t, []Stop{{StopID: "A", StopName: "Alpha"}, {StopID: "B", StopName: "Bravo"}}, feed.Stops)
	assert.Equal(t, []Route{{RouteID: "R1", RouteShortName: "1"}}, feed.Routes)
	require.Len(t, feed.Trips, 2)
	require.Len(t, feed.StopTimes, 4)
	assert.Equal(t, StopTime{TripID: "T1", StopID: "B", StopSequence: 2, ArrivalSec: 8*3600 + 600, DepartureSec: 8*3600 + 660}, feed.StopTimes[1])
	assert.Equal(t, []Transfer{{FromStopID: "A", ToStopID: "B", MinTransferTime: 120}}, feed.Transfers)
}

func TestFromStaticFiltersServiceDay(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	feed := FromStatic(staticFixture(), monday)
	require.Len(t, feed.Trips, 1)
	assert.Equal(t, "T1", feed.Trips[0].TripID)
	assert.Len(t, feed.StopTimes, 2)

	feed = FromStatic(staticFixture(), sunday)
	require.Len(t, feed.Trips, 1)
	assert.Equal(t, "T2", feed.Trips[0].TripID)
}

func TestServiceActive(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday
	svc := &jgtfs.Service{
		Monday:    true,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, serviceActive(svc, day))

	removed := *svc
	removed.RemovedDates = []time.Time{day}
	assert.False(t, serviceActive(&removed, day))

	added := jgtfs.Service{AddedDates: []time.Time{day}}
	assert.True(t, serviceActive(&added, day))

	expired := *svc
	expired.EndDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, serviceActive(&expired, day))

	notYet := *svc
	notYet.StartDate = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.False(t, serviceActive(&notYet, day))
}

func TestFromStaticSkipsForbiddenTransfers(t *testing.T) {
	static := staticFixture()
	static.Transfers = append(static.Transfers,
		jgtfs.Transfer{From: &static.Stops[1], To: &static.Stops[0], Type: jgtfs.TransferType_NotPossible},
		jgtfs.Transfer{From: &static.Stops[1], To: &static.Stops[0], Type: jgtfs.TransferType_Timed},
	)

	feed := FromStatic(static, time.Time{})
	assert.Equal(t, []Transfer{
		{FromStopID: "A", ToStopID: "B", MinTransferTime: 120},
		{FromStopID: "B", ToStopID: "A", MinTransferTime: 0},
	}, feed.Transfers)
}
