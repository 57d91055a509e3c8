// Package timetable owns the immutable transit graph a search runs against.
//
// A Timetable is read-only after New returns and may be shared by any number of
// concurrent searches without locking.
package timetable

import (
	"fmt"

	"gtfs-raptor/internal/model"
)

type Timetable struct {
	stops     []*model.Stop
	routes    []*model.Route
	trips     []*model.Trip
	transfers []model.Transfer

	stopsByID     map[string]*model.Stop
	routeIndex    map[string]int
	routesByStop  map[string][]int
	transfersFrom map[string][]model.Transfer
}

// New indexes the given entities after checking that they reference each other
// consistently. Any violation is returned as an *InputError.
func New(stops []*model.Stop, routes []*model.Route, transfers []model.Transfer) (*Timetable, error) {
	tt := &Timetable{
		stops:         stops,
		routes:        routes,
		transfers:     transfers,
		stopsByID:     make(map[string]*model.Stop, len(stops)),
		routeIndex:    make(map[string]int, len(routes)),
		routesByStop:  make(map[string][]int),
		transfersFrom: make(map[string][]model.Transfer),
	}
	for _, s := range stops {
		if _, dup := tt.stopsByID[s.ID]; dup {
			return nil, &InputError{Entity: "stop", ID: s.ID, Reason: "duplicate stop id"}
		}
		tt.stopsByID[s.ID] = s
	}
	for i, r := range routes {
		if _, dup := tt.routeIndex[r.ID()]; dup {
			return nil, &InputError{Entity: "route", ID: r.ID(), Reason: "duplicate route"}
		}
		tt.routeIndex[r.ID()] = i
		if err := tt.checkRoute(r); err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, s := range r.Stops() {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			tt.routesByStop[s.ID] = append(tt.routesByStop[s.ID], i)
		}
		tt.trips = append(tt.trips, r.Trips()...)
	}
	for _, tr := range transfers {
		if tr.From == nil || tr.To == nil {
			return nil, &InputError{Entity: "transfer", Reason: "missing stop"}
		}
		if err := tt.knownStop(tr.From.ID, "transfer", tr.From.ID+"->"+tr.To.ID); err != nil {
			return nil, err
		}
		if err := tt.knownStop(tr.To.ID, "transfer", tr.From.ID+"->"+tr.To.ID); err != nil {
			return nil, err
		}
		if tr.Duration < 0 {
			return nil, &InputError{Entity: "transfer", ID: tr.From.ID + "->" + tr.To.ID, Reason: fmt.Sprintf("negative duration %d", tr.Duration)}
		}
		tt.transfersFrom[tr.From.ID] = append(tt.transfersFrom[tr.From.ID], tr)
	}
	return tt, nil
}

func (tt *Timetable) checkRoute(r *model.Route) error {
	if len(r.Trips()) == 0 {
		return &InputError{Entity: "route", ID: r.ID(), Reason: "route has no trips"}
	}
	for _, trip := range r.Trips() {
		if trip.GroupID() != r.GroupID() || !r.SameStops(trip) {
			return &InputError{Entity: "trip", ID: trip.ID(), Reason: fmt.Sprintf("stop pattern differs from route %s", r.ID())}
		}
		var prev model.Time
		for i := 0; i < trip.Len(); i++ {
			st, _ := trip.StopTimeAt(i)
			if err := tt.knownStop(st.Stop.ID, "trip", trip.ID()); err != nil {
				return err
			}
			if st.Arrival > st.Departure || (i > 0 && st.Arrival < prev) {
				return &InputError{Entity: "trip", ID: trip.ID(), Reason: fmt.Sprintf("times decrease at stop %s (position %d)", st.Stop.ID, i)}
			}
			prev = st.Departure
		}
	}
	return nil
}

func (tt *Timetable) knownStop(stopID, entity, id string) error {
	if _, ok := tt.stopsByID[stopID]; !ok {
		return &InputError{Entity: entity, ID: id, Reason: fmt.Sprintf("unknown stop %s", stopID)}
	}
	return nil
}

func (tt *Timetable) Stops() []*model.Stop        { return tt.stops }
func (tt *Timetable) Routes() []*model.Route      { return tt.routes }
func (tt *Timetable) Trips() []*model.Trip        { return tt.trips }
func (tt *Timetable) Transfers() []model.Transfer { return tt.transfers }

func (tt *Timetable) Stop(id string) (*model.Stop, bool) {
	s, ok := tt.stopsByID[id]
	return s, ok
}

// RoutesServing returns the routes whose pattern contains stopID, in timetable order.
func (tt *Timetable) RoutesServing(stopID string) []*model.Route {
	idx := tt.routesByStop[stopID]
	routes := make([]*model.Route, len(idx))
	for i, ri := range idx {
		routes[i] = tt.routes[ri]
	}
	return routes
}

// RouteIndex returns the position of the route in Routes().
func (tt *Timetable) RouteIndex(r *model.Route) (int, bool) {
	i, ok := tt.routeIndex[r.ID()]
	return i, ok
}

// TransfersFrom returns footpaths leaving stopID.
func (tt *Timetable) TransfersFrom(stopID string) []model.Transfer {
	return tt.transfersFrom[stopID]
}
