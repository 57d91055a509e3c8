package raptor

import (
	"sort"

	"gtfs-raptor/internal/model"
	"gtfs-raptor/internal/timetable"
)

// QueueItem is one scan task: a route and the stop to start scanning it from.
type QueueItem struct {
	Route   *model.Route
	HopStop *model.Stop

	pos int
}

// NewQueueItem locates stop on route. A stop the timetable claims is served by
// the route but which is missing from its pattern is a consistency error.
func NewQueueItem(route *model.Route, stop *model.Stop) (QueueItem, error) {
	pos, ok := route.Position(stop.ID)
	if !ok {
		return QueueItem{}, &ConsistencyError{Kind: ErrStopNotOnRoute, StopID: stop.ID, RouteID: route.ID()}
	}
	return QueueItem{Route: route, HopStop: stop, pos: pos}, nil
}

// Position is the index of the hop stop in the route's pattern.
func (q QueueItem) Position() int { return q.pos }

func (q QueueItem) Conflicts(other QueueItem) bool { return q.Route.Equal(other.Route) }

// Precedes reports whether q boards the shared route strictly before other.
func (q QueueItem) Precedes(other QueueItem) (bool, error) {
	if !q.Conflicts(other) {
		return false, &ConsistencyError{Kind: ErrUnrelatedQueueItems, StopID: q.HopStop.ID + "," + other.HopStop.ID, RouteID: q.Route.ID() + "," + other.Route.ID()}
	}
	return q.pos < other.pos, nil
}

// Stops returns the route's stops from the hop stop onwards.
func (q QueueItem) Stops() []*model.Stop { return q.Route.Stops()[q.pos:] }

// Queue holds at most one item per route.
type Queue struct {
	tt    *timetable.Timetable
	items map[string]QueueItem
}

func NewQueue(tt *timetable.Timetable) *Queue {
	return &Queue{tt: tt, items: make(map[string]QueueItem)}
}

// Insert adds item, keeping the earlier hop stop when the route is already queued.
// Routes the timetable does not index are rejected, so Items can order by index.
func (q *Queue) Insert(item QueueItem) error {
	if _, ok := q.tt.RouteIndex(item.Route); !ok {
		return &ConsistencyError{Kind: ErrUnknownRoute, StopID: item.HopStop.ID, RouteID: item.Route.ID()}
	}
	key := item.Route.ID()
	existing, ok := q.items[key]
	if !ok {
		q.items[key] = item
		return nil
	}
	earlier, err := item.Precedes(existing)
	if err != nil {
		return err
	}
	if earlier {
		q.items[key] = item
	}
	return nil
}

func (q *Queue) Len() int { return len(q.items) }

// Items returns the queued scans in timetable route order. Every queued route is
// indexed; Insert checks it.
func (q *Queue) Items() []QueueItem {
	type indexed struct {
		idx  int
		item QueueItem
	}
	sorted := make([]indexed, 0, len(q.items))
	for _, it := range q.items {
		idx, _ := q.tt.RouteIndex(it.Route)
		sorted = append(sorted, indexed{idx: idx, item: it})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].idx < sorted[j].idx })
	items := make([]QueueItem, len(sorted))
	for i, s := range sorted {
		items[i] = s.item
	}
	return items
}

// Enqueue builds the scan queue for one round from the marked stops.
func Enqueue(tt *timetable.Timetable, marked []*model.Stop) (*Queue, error) {
	q := NewQueue(tt)
	for _, stop := range marked {
		for _, route := range tt.RoutesServing(stop.ID) {
			item, err := NewQueueItem(route, stop)
			if err != nil {
				return nil, err
			}
			if err := q.Insert(item); err != nil {
				return nil, err
			}
		}
	}
	return q, nil
}
