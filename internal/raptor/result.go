package raptor

import "gtfs-raptor/internal/model"

// Result is a read-only snapshot of a search.
type Result struct {
	Source    string
	Target    string
	Departure model.Time
	Arrivals  Tau
	Rounds    []Round
	Finished  bool
	Stats     Stats
}

// Result snapshots the search. It refuses to return arrivals from a search that
// hit a consistency failure.
func (r *Raptor) Result() (*Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	res := &Result{
		Source:    r.source.ID,
		Departure: r.departure,
		Arrivals:  r.TauMin(),
		Rounds:    r.Rounds(),
		Finished:  r.IsFinished(),
		Stats:     r.Stats(),
	}
	if r.target != nil {
		res.Target = r.target.ID
	}
	return res, nil
}

// TargetArrival returns the best arrival at the target, if one was set and reached.
func (res *Result) TargetArrival() (model.Time, bool) {
	if res.Target == "" {
		return 0, false
	}
	t, ok := res.Arrivals[res.Target]
	return t, ok
}
