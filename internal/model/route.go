package model

import "sort"

// RawRoute is a feed route as published; its trips may follow different stop patterns.
type RawRoute struct {
	ID    string
	Name  string
	Trips []*Trip
}

// TripGroups buckets the route's trips by stop pattern.
func (r *RawRoute) TripGroups() map[string][]*Trip {
	groups := make(map[string][]*Trip)
	for _, t := range r.Trips {
		groups[t.GroupID()] = append(groups[t.GroupID()], t)
	}
	return groups
}

// Split returns one Route per distinct stop pattern, ordered by group id.
// Trips that share a stop sequence are merged even if they belong to different
// services. Order matters: a loop run the other way round is its own route.
func (r *RawRoute) Split() []*Route {
	groups := r.TripGroups()
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	routes := make([]*Route, 0, len(ids))
	for _, id := range ids {
		routes = append(routes, NewRoute(r.ID, r.Name, id, groups[id]))
	}
	return routes
}

// GroupRoutes splits every raw route into pattern-homogeneous routes.
func GroupRoutes(raw []*RawRoute) []*Route {
	var routes []*Route
	for _, r := range raw {
		routes = append(routes, r.Split()...)
	}
	return routes
}

// Route is a set of trips sharing one stop pattern. Identity is (ParentID, GroupID).
type Route struct {
	parentID string
	name     string
	groupID  string
	trips    []*Trip
	stops    []*Stop
}

// NewRoute builds a route from trips that all carry groupID. The stop pattern is
// taken from the first trip; timetable.New rejects trips that deviate from it.
func NewRoute(parentID, name, groupID string, trips []*Trip) *Route {
	r := &Route{parentID: parentID, name: name, groupID: groupID}
	r.trips = make([]*Trip, len(trips))
	copy(r.trips, trips)
	if len(trips) > 0 {
		r.stops = trips[0].Stops()
	}
	return r
}

func (r *Route) ParentID() string { return r.parentID }
func (r *Route) Name() string     { return r.name }
func (r *Route) GroupID() string  { return r.groupID }

// ID is the composite route key. The parent id is escaped like stop ids in the
// group id, so the first unescaped "_" separates the two.
func (r *Route) ID() string { return escapeID(r.parentID) + "_" + r.groupID }

// Stops returns the route's stop pattern. Callers must not modify it.
func (r *Route) Stops() []*Stop { return r.stops }

// Trips returns the member trips. Callers must not modify it.
func (r *Route) Trips() []*Trip { return r.trips }

// Position returns the index of the first occurrence of stopID in the pattern.
func (r *Route) Position(stopID string) (int, bool) {
	for i, s := range r.stops {
		if s.ID == stopID {
			return i, true
		}
	}
	return -1, false
}

// Equal compares routes by composite key only.
func (r *Route) Equal(other *Route) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.ID() == other.ID()
}

// SameStops reports whether trip visits exactly the route's stop pattern.
func (r *Route) SameStops(trip *Trip) bool {
	if trip.Len() != len(r.stops) {
		return false
	}
	for i, s := range r.stops {
		st, _ := trip.StopTimeAt(i)
		if st.Stop.ID != s.ID {
			return false
		}
	}
	return true
}
