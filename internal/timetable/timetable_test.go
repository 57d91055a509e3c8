package timetable

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-raptor/internal/gtfs"
	"gtfs-raptor/internal/model"
)

func loadFixture(t *testing.T, name string) *Timetable {
	t.Helper()
	feed, err := gtfs.LoadFixtureFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	tt, err := Build(feed)
	require.NoError(t, err)
	return tt
}

func routeIDs(routes []*model.Route) []string {
	ids := make([]string, len(routes))
	for i, r := range routes {
		ids[i] = r.ID()
	}
	return ids
}

func TestBuildSplitsBranches(t *testing.T) {
	tt := loadFixture(t, "branches.yml")

	assert.Equal(t, []string{"R1__A_B_C", "R1__A_B_D", "R2__D_C"}, routeIDs(tt.Routes()))
	assert.Len(t, tt.Trips(), 4, "trip without stop times is dropped")

	main := tt.Routes()[0]
	require.Len(t, main.Trips(), 2)
	assert.Equal(t, "T1", main.Trips()[0].ID(), "trips ordered by first departure")
	assert.Equal(t, "T2", main.Trips()[1].ID())
}

func TestRoutesServing(t *testing.T) {
	tt := loadFixture(t, "branches.yml")

	assert.Equal(t, []string{"R1__A_B_C", "R1__A_B_D"}, routeIDs(tt.RoutesServing("A")))
	assert.Equal(t, []string{"R1__A_B_C", "R2__D_C"}, routeIDs(tt.RoutesServing("C")))
	assert.Empty(t, tt.RoutesServing("nowhere"))

	idx, ok := tt.RouteIndex(tt.Routes()[2])
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestTransfersFrom(t *testing.T) {
	tt := loadFixture(t, "line.yml")

	trs := tt.TransfersFrom("B")
	require.Len(t, trs, 1)
	assert.Equal(t, "D", trs[0].To.ID)
	assert.Equal(t, model.Time(5), trs[0].Duration)
	assert.Empty(t, tt.TransfersFrom("A"))

	s, ok := tt.Stop("D")
	require.True(t, ok)
	assert.Equal(t, "Delta", s.Name)
}

func TestBuildRejectsMalformedInput(t *testing.T) {
	base := func() *gtfs.Feed {
		return &gtfs.Feed{
			Stops:  []gtfs.Stop{{StopID: "A"}, {StopID: "B"}},
			Routes: []gtfs.Route{{RouteID: "R1"}},
			Trips:  []gtfs.Trip{{TripID: "T1", RouteID: "R1"}},
			StopTimes: []gtfs.StopTime{
				{TripID: "T1", StopID: "A", StopSequence: 1, ArrivalSec: 0, DepartureSec: 0},
				{TripID: "T1", StopID: "B", StopSequence: 2, ArrivalSec: 60, DepartureSec: 60},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(f *gtfs.Feed)
		entity string
	}{
		{"duplicate stop", func(f *gtfs.Feed) { f.Stops = append(f.Stops, gtfs.Stop{StopID: "A"}) }, "stop"},
		{"trip on unknown route", func(f *gtfs.Feed) { f.Trips[0].RouteID = "R9" }, "trip"},
		{"stop time on unknown trip", func(f *gtfs.Feed) { f.StopTimes[0].TripID = "T9" }, "stop_time"},
		{"stop time at unknown stop", func(f *gtfs.Feed) { f.StopTimes[1].StopID = "Z" }, "stop_time"},
		{"times decrease", func(f *gtfs.Feed) { f.StopTimes[1].ArrivalSec = -10; f.StopTimes[1].DepartureSec = -10 }, "trip"},
		{"arrival after departure", func(f *gtfs.Feed) { f.StopTimes[1].ArrivalSec = 90 }, "trip"},
		{"transfer to unknown stop", func(f *gtfs.Feed) {
			f.Transfers = []gtfs.Transfer{{FromStopID: "A", ToStopID: "Z"}}
		}, "transfer"},
		{"negative transfer", func(f *gtfs.Feed) {
			f.Transfers = []gtfs.Transfer{{FromStopID: "A", ToStopID: "B", MinTransferTime: -1}}
		}, "transfer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := base()
			tt.mutate(feed)
			_, err := Build(feed)
			require.Error(t, err)
			var inErr *InputError
			require.True(t, errors.As(err, &inErr), "got %T", err)
			assert.Equal(t, tt.entity, inErr.Entity)
		})
	}

	_, err := Build(base())
	assert.NoError(t, err)
}

func TestBuildOrdersStopTimesBySequence(t *testing.T) {
	feed := &gtfs.Feed{
		Stops:  []gtfs.Stop{{StopID: "A"}, {StopID: "B"}, {StopID: "C"}},
		Routes: []gtfs.Route{{RouteID: "R1"}},
		Trips:  []gtfs.Trip{{TripID: "T1", RouteID: "R1"}},
		StopTimes: []gtfs.StopTime{
			{TripID: "T1", StopID: "C", StopSequence: 30, ArrivalSec: 120, DepartureSec: 120},
			{TripID: "T1", StopID: "A", StopSequence: 10, ArrivalSec: 0, DepartureSec: 0},
			{TripID: "T1", StopID: "B", StopSequence: 20, ArrivalSec: 60, DepartureSec: 60},
		},
	}
	tt, err := Build(feed)
	require.NoError(t, err)
	require.Len(t, tt.Routes(), 1)
	assert.Equal(t, "_A_B_C", tt.Routes()[0].GroupID())
}

func TestNewRejectsMixedPatternRoute(t *testing.T) {
	a, b := &model.Stop{ID: "A"}, &model.Stop{ID: "B"}
	t1 := model.NewTrip("T1", "", []model.StopTime{{Stop: a}, {Stop: b}})
	t2 := model.NewTrip("T2", "", []model.StopTime{{Stop: b}, {Stop: a}})
	r := model.NewRoute("R1", "", t1.GroupID(), []*model.Trip{t1, t2})

	_, err := New([]*model.Stop{a, b}, []*model.Route{r}, nil)
	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, "T2", inErr.ID)
}
