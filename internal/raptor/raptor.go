// Package raptor implements round-based earliest-arrival search (RAPTOR) over a
// timetable.
//
// Round k scans every route touched by a stop improved in round k-1, then relaxes
// footpaths one hop from the stops the scans improved. Arrivals recorded in
// Rounds()[k] are reachable with at most k boardings. A Raptor is single-use and
// not safe for concurrent use. The timetable it reads may be shared.
package raptor

import (
	"context"
	"errors"

	"gtfs-raptor/internal/model"
	"gtfs-raptor/internal/timetable"
)

// Tau maps stop id to arrival time.
type Tau map[string]model.Time

func (t Tau) clone() Tau {
	c := make(Tau, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// Round holds the arrivals improved during one round.
type Round struct {
	Tau Tau
}

type Raptor struct {
	tt        *timetable.Timetable
	source    *model.Stop
	departure model.Time
	target    *model.Stop

	rounds []Round
	tauMin Tau
	marked *stopSet
	walked *stopSet

	maxRounds       int
	sourceTransfers bool
	observer        Observer

	stats Stats
	err   error
}

type Option func(*Raptor)

// WithTarget prunes improvements that cannot beat the best arrival at target.
func WithTarget(target *model.Stop) Option {
	return func(r *Raptor) { r.target = target }
}

// WithMaxRounds bounds Run to n rounds. Zero means unbounded.
func WithMaxRounds(n int) Option {
	return func(r *Raptor) { r.maxRounds = n }
}

func WithObserver(o Observer) Option {
	return func(r *Raptor) { r.observer = o }
}

// WithSourceTransfers relaxes footpaths leaving the source before the first round.
func WithSourceTransfers() Option {
	return func(r *Raptor) { r.sourceTransfers = true }
}

// New prepares a search from source at departure. Round 0 holds the source only.
func New(tt *timetable.Timetable, source *model.Stop, departure model.Time, opts ...Option) *Raptor {
	r := &Raptor{
		tt:        tt,
		source:    source,
		departure: departure,
		tauMin:    Tau{source.ID: departure},
		marked:    newStopSet(),
		walked:    newStopSet(),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	initial := Round{Tau: Tau{source.ID: departure}}
	r.marked.add(source)
	if r.sourceTransfers {
		for _, tr := range tt.TransfersFrom(source.ID) {
			arr := departure + tr.Duration
			if r.improves(tr.To.ID, arr) {
				initial.Tau[tr.To.ID] = arr
				r.tauMin[tr.To.ID] = arr
				r.marked.add(tr.To)
				r.walked.add(tr.To)
			}
		}
	}
	r.rounds = []Round{initial}
	return r
}

// Run repeats Round until no stop is marked. It stops early with ErrRoundLimit
// when WithMaxRounds is set and reached.
func (r *Raptor) Run() error {
	return r.RunContext(context.Background())
}

// RunContext is Run with cancellation checked between rounds. On cancellation the
// arrivals gathered so far remain valid upper bounds.
func (r *Raptor) RunContext(ctx context.Context) error {
	for !r.IsFinished() {
		if r.err != nil {
			return r.err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.maxRounds > 0 && r.stats.Rounds >= r.maxRounds {
			return ErrRoundLimit
		}
		if err := r.Round(); err != nil {
			return err
		}
	}
	return r.err
}

// IsFinished reports whether the worklist drained.
func (r *Raptor) IsFinished() bool {
	return len(r.rounds) > 0 && r.marked.len() == 0
}

// Round runs one round: queue build, route scans, footpath relaxation. A
// consistency failure aborts the search; later calls return the same error.
func (r *Raptor) Round() error {
	if r.err != nil {
		return r.err
	}
	queue, err := Enqueue(r.tt, r.marked.list())
	if err != nil {
		return r.fail(err)
	}

	prev := r.rounds[len(r.rounds)-1].Tau
	curr := Round{Tau: Tau{}}
	next := newStopSet()

	for _, item := range queue.Items() {
		if err := r.scan(item, prev, curr.Tau, next); err != nil {
			return r.fail(err)
		}
	}
	r.relaxTransfers(curr.Tau, next)

	r.rounds = append(r.rounds, curr)
	r.marked = next
	r.stats.Rounds++
	r.stats.MarkedPerRound = append(r.stats.MarkedPerRound, next.len())
	r.observer.RoundCompleted(r.stats.Rounds, next.len())
	return nil
}

// scan walks item's route from the hop stop carrying the current trip.
func (r *Raptor) scan(item QueueItem, prev, tau Tau, next *stopSet) error {
	route := item.Route
	stops := route.Stops()
	var current *model.Trip

	for pos := item.Position(); pos < len(stops); pos++ {
		stop := stops[pos]

		if current != nil {
			st, err := stopTimeAt(current, route, pos, stop)
			if err != nil {
				return err
			}
			if r.improves(stop.ID, st.Arrival) {
				tau[stop.ID] = st.Arrival
				r.tauMin[stop.ID] = st.Arrival
				next.add(stop)
			}
		}

		tauPrev, ok := prev[stop.ID]
		if !ok {
			continue
		}
		if current != nil {
			st, err := stopTimeAt(current, route, pos, stop)
			if err != nil {
				return err
			}
			if st.Departure < tauPrev {
				continue
			}
		}
		trip, err := earliestTrip(route, pos, stop, tauPrev)
		if err != nil {
			return err
		}
		if trip != nil {
			current = trip
		}
	}

	r.stats.RouteScans++
	r.observer.RouteScanned()
	return nil
}

// earliestTrip returns the trip of route departing pos no earlier than after,
// first in route order among equal departures.
func earliestTrip(route *model.Route, pos int, stop *model.Stop, after model.Time) (*model.Trip, error) {
	var best *model.Trip
	var bestDep model.Time
	for _, trip := range route.Trips() {
		st, err := stopTimeAt(trip, route, pos, stop)
		if err != nil {
			return nil, err
		}
		if st.Departure < after {
			continue
		}
		if best == nil || st.Departure < bestDep {
			best, bestDep = trip, st.Departure
		}
	}
	return best, nil
}

func stopTimeAt(trip *model.Trip, route *model.Route, pos int, stop *model.Stop) (model.StopTime, error) {
	st, ok := trip.StopTimeAt(pos)
	if !ok || st.Stop.ID != stop.ID {
		return model.StopTime{}, &ConsistencyError{Kind: ErrStopNotOnTrip, StopID: stop.ID, RouteID: route.ID(), TripID: trip.ID()}
	}
	return st, nil
}

// relaxTransfers extends this round's scan improvements by one footpath. Stops
// reached on foot are marked for the next round and relax their own footpaths
// then, never within the round that reached them.
func (r *Raptor) relaxTransfers(tau Tau, next *stopSet) {
	type origin struct {
		stop *model.Stop
		at   model.Time
	}
	var origins []origin
	for _, s := range next.list() {
		origins = append(origins, origin{stop: s, at: tau[s.ID]})
	}
	for _, s := range r.walked.list() {
		if next.has(s.ID) {
			continue
		}
		origins = append(origins, origin{stop: s, at: r.tauMin[s.ID]})
	}

	walked := newStopSet()
	for _, o := range origins {
		for _, tr := range r.tt.TransfersFrom(o.stop.ID) {
			arr := o.at + tr.Duration
			if !r.improves(tr.To.ID, arr) {
				continue
			}
			if held, ok := tau[tr.To.ID]; !ok || arr < held {
				tau[tr.To.ID] = arr
			}
			r.tauMin[tr.To.ID] = arr
			next.add(tr.To)
			walked.add(tr.To)
		}
	}
	r.walked = walked
}

// improves reports whether arr beats the best known arrival at the stop and,
// with a target set, the best known arrival at the target.
func (r *Raptor) improves(stopID string, arr model.Time) bool {
	best, ok := r.tauMin[stopID]
	if r.target != nil {
		if t, tok := r.tauMin[r.target.ID]; tok && (!ok || t < best) {
			best, ok = t, true
		}
	}
	return !ok || arr < best
}

func (r *Raptor) fail(err error) error {
	r.err = err
	var ce *ConsistencyError
	if errors.As(err, &ce) {
		r.stats.Failures = append(r.stats.Failures, ce)
		r.observer.ConsistencyFailure(ce)
	}
	return err
}

func (r *Raptor) Source() *model.Stop   { return r.source }
func (r *Raptor) Target() *model.Stop   { return r.target }
func (r *Raptor) Departure() model.Time { return r.departure }

// Err returns the failure that aborted the search, if any.
func (r *Raptor) Err() error { return r.err }

// TauMin returns a copy of the best arrival per reached stop.
func (r *Raptor) TauMin() Tau { return r.tauMin.clone() }

// Arrival returns the best arrival at stopID found so far.
func (r *Raptor) Arrival(stopID string) (model.Time, bool) {
	t, ok := r.tauMin[stopID]
	return t, ok
}

// Rounds returns copies of all rounds, round 0 first.
func (r *Raptor) Rounds() []Round {
	out := make([]Round, len(r.rounds))
	for i, rd := range r.rounds {
		out[i] = Round{Tau: rd.Tau.clone()}
	}
	return out
}

// ArrivalsWithin folds rounds 0..k into the best arrival per stop using at most
// k boardings.
func (r *Raptor) ArrivalsWithin(k int) Tau {
	out := Tau{}
	for i := 0; i <= k && i < len(r.rounds); i++ {
		for id, t := range r.rounds[i].Tau {
			if cur, ok := out[id]; !ok || t < cur {
				out[id] = t
			}
		}
	}
	return out
}

// MarkedStops returns the ids queued for the next round.
func (r *Raptor) MarkedStops() []string {
	stops := r.marked.list()
	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	return ids
}

func (r *Raptor) Stats() Stats { return r.stats.clone() }

// stopSet is an insertion-ordered set of stops.
type stopSet struct {
	order []*model.Stop
	seen  map[string]bool
}

func newStopSet() *stopSet { return &stopSet{seen: make(map[string]bool)} }

func (s *stopSet) add(stop *model.Stop) {
	if s.seen[stop.ID] {
		return
	}
	s.seen[stop.ID] = true
	s.order = append(s.order, stop)
}

func (s *stopSet) has(id string) bool  { return s.seen[id] }
func (s *stopSet) list() []*model.Stop { return s.order }
func (s *stopSet) len() int            { return len(s.order) }
