// Package model holds the immutable transit graph entities the router works on.
//
// Entities are built once by the timetable package and shared by pointer between
// the timetable, routes and running searches. Nothing mutates them afterwards.
package model

import (
	"fmt"
	"strings"
)

// Time is seconds since midnight of the service day. Values past 86400 are valid
// for trips running over midnight.
type Time int

// String formats t as HH:MM:SS, keeping hours above 23.
func (t Time) String() string {
	sign := ""
	v := int(t)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, v/3600, (v%3600)/60, v%60)
}

type Stop struct {
	ID   string
	Name string
}

type StopTime struct {
	Stop      *Stop
	Arrival   Time
	Departure Time
}

// Trip is one vehicle run: stop times in visiting order.
type Trip struct {
	id        string
	shortName string
	stopTimes []StopTime
	groupID   string
}

// NewTrip copies stopTimes so the caller cannot reorder them later.
func NewTrip(id, shortName string, stopTimes []StopTime) *Trip {
	st := make([]StopTime, len(stopTimes))
	copy(st, stopTimes)
	return &Trip{id: id, shortName: shortName, stopTimes: st, groupID: groupID(st)}
}

// groupID concatenates the visited stop ids, each prefixed with "_". Underscores
// and backslashes inside an id are escaped so distinct sequences never collide.
func groupID(sts []StopTime) string {
	var b strings.Builder
	for _, st := range sts {
		b.WriteByte('_')
		b.WriteString(escapeID(st.Stop.ID))
	}
	return b.String()
}

var idEscaper = strings.NewReplacer(`\`, `\\`, "_", `\_`)

func escapeID(id string) string { return idEscaper.Replace(id) }

func (t *Trip) ID() string        { return t.id }
func (t *Trip) ShortName() string { return t.shortName }
func (t *Trip) Len() int          { return len(t.stopTimes) }

// GroupID is the trip's stop pattern fingerprint.
func (t *Trip) GroupID() string { return t.groupID }

// StopTimeAt returns the stop time at position i of the trip.
func (t *Trip) StopTimeAt(i int) (StopTime, bool) {
	if i < 0 || i >= len(t.stopTimes) {
		return StopTime{}, false
	}
	return t.stopTimes[i], true
}

// StopTime returns the first stop time at the given stop.
func (t *Trip) StopTime(stopID string) (StopTime, bool) {
	for _, st := range t.stopTimes {
		if st.Stop.ID == stopID {
			return st, true
		}
	}
	return StopTime{}, false
}

func (t *Trip) Stops() []*Stop {
	stops := make([]*Stop, len(t.stopTimes))
	for i, st := range t.stopTimes {
		stops[i] = st.Stop
	}
	return stops
}

// Transfer is a directed footpath between two stops.
type Transfer struct {
	From     *Stop
	To       *Stop
	Duration Time
}
