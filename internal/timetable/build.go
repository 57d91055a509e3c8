package timetable

import (
	"fmt"
	"sort"

	"gtfs-raptor/internal/gtfs"
	"gtfs-raptor/internal/model"
)

// Build converts raw feed records into a Timetable: stop times are ordered by
// stop_sequence, trips are attached to their raw route and every raw route is
// split into stop-pattern routes. Trips without stop times are dropped.
func Build(feed *gtfs.Feed) (*Timetable, error) {
	stops := make([]*model.Stop, 0, len(feed.Stops))
	stopsByID := make(map[string]*model.Stop, len(feed.Stops))
	for _, s := range feed.Stops {
		if _, dup := stopsByID[s.StopID]; dup {
			return nil, &InputError{Entity: "stop", ID: s.StopID, Reason: "duplicate stop id"}
		}
		stop := &model.Stop{ID: s.StopID, Name: s.StopName}
		stops = append(stops, stop)
		stopsByID[s.StopID] = stop
	}

	raw := make(map[string]*model.RawRoute, len(feed.Routes))
	for _, r := range feed.Routes {
		if _, dup := raw[r.RouteID]; dup {
			return nil, &InputError{Entity: "route", ID: r.RouteID, Reason: "duplicate route id"}
		}
		raw[r.RouteID] = &model.RawRoute{ID: r.RouteID, Name: r.RouteShortName}
	}

	tripRows := make(map[string]gtfs.Trip, len(feed.Trips))
	for _, t := range feed.Trips {
		if _, dup := tripRows[t.TripID]; dup {
			return nil, &InputError{Entity: "trip", ID: t.TripID, Reason: "duplicate trip id"}
		}
		if _, ok := raw[t.RouteID]; !ok {
			return nil, &InputError{Entity: "trip", ID: t.TripID, Reason: fmt.Sprintf("unknown route %s", t.RouteID)}
		}
		tripRows[t.TripID] = t
	}

	byTrip := make(map[string][]gtfs.StopTime)
	for _, st := range feed.StopTimes {
		if _, ok := tripRows[st.TripID]; !ok {
			return nil, &InputError{Entity: "stop_time", ID: st.TripID, Reason: "unknown trip"}
		}
		if _, ok := stopsByID[st.StopID]; !ok {
			return nil, &InputError{Entity: "stop_time", ID: st.TripID, Reason: fmt.Sprintf("unknown stop %s", st.StopID)}
		}
		byTrip[st.TripID] = append(byTrip[st.TripID], st)
	}

	for _, t := range feed.Trips {
		rows := byTrip[t.TripID]
		if len(rows) == 0 {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].StopSequence < rows[j].StopSequence })
		sts := make([]model.StopTime, len(rows))
		for i, row := range rows {
			sts[i] = model.StopTime{
				Stop:      stopsByID[row.StopID],
				Arrival:   model.Time(row.ArrivalSec),
				Departure: model.Time(row.DepartureSec),
			}
		}
		r := raw[t.RouteID]
		r.Trips = append(r.Trips, model.NewTrip(t.TripID, t.TripShortName, sts))
	}

	routeIDs := make([]string, 0, len(raw))
	for id, r := range raw {
		if len(r.Trips) > 0 {
			routeIDs = append(routeIDs, id)
		}
	}
	sort.Strings(routeIDs)
	rawRoutes := make([]*model.RawRoute, 0, len(routeIDs))
	for _, id := range routeIDs {
		r := raw[id]
		sort.SliceStable(r.Trips, func(i, j int) bool {
			a, _ := r.Trips[i].StopTimeAt(0)
			b, _ := r.Trips[j].StopTimeAt(0)
			if a.Departure != b.Departure {
				return a.Departure < b.Departure
			}
			return r.Trips[i].ID() < r.Trips[j].ID()
		})
		rawRoutes = append(rawRoutes, r)
	}

	transfers := make([]model.Transfer, 0, len(feed.Transfers))
	for _, tr := range feed.Transfers {
		from, ok := stopsByID[tr.FromStopID]
		if !ok {
			return nil, &InputError{Entity: "transfer", ID: tr.FromStopID + "->" + tr.ToStopID, Reason: fmt.Sprintf("unknown stop %s", tr.FromStopID)}
		}
		to, ok := stopsByID[tr.ToStopID]
		if !ok {
			return nil, &InputError{Entity: "transfer", ID: tr.FromStopID + "->" + tr.ToStopID, Reason: fmt.Sprintf("unknown stop %s", tr.ToStopID)}
		}
		transfers = append(transfers, model.Transfer{From: from, To: to, Duration: model.Time(tr.MinTransferTime)})
	}

	return New(stops, model.GroupRoutes(rawRoutes), transfers)
}
