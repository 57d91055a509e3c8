package raptor

// Observer receives search progress. Implementations must be cheap; they run
// inside the round loop.
type Observer interface {
	RoundCompleted(round, marked int)
	RouteScanned()
	ConsistencyFailure(err *ConsistencyError)
}

type nopObserver struct{}

func (nopObserver) RoundCompleted(int, int)              {}
func (nopObserver) RouteScanned()                        {}
func (nopObserver) ConsistencyFailure(*ConsistencyError) {}

// Stats summarizes one search.
type Stats struct {
	Rounds         int
	MarkedPerRound []int
	RouteScans     int
	Failures       []*ConsistencyError
}

func (s Stats) clone() Stats {
	c := s
	c.MarkedPerRound = append([]int(nil), s.MarkedPerRound...)
	c.Failures = append([]*ConsistencyError(nil), s.Failures...)
	return c
}
