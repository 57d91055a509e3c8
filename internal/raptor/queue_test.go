package raptor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-raptor/internal/model"
)

func TestEnqueueKeepsEarliestStopPerRoute(t *testing.T) {
	tt := newFeed().
		trip("R1", "T1", at("A", 0, 0), at("B", 10, 10), at("C", 20, 20), at("D", 30, 30)).
		trip("R2", "T2", at("C", 40, 40), at("E", 50, 50)).
		build(t)

	q, err := Enqueue(tt, []*model.Stop{stop(t, tt, "C"), stop(t, tt, "B"), stop(t, tt, "D")})
	require.NoError(t, err)

	items := q.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "R1__A_B_C_D", items[0].Route.ID())
	assert.Equal(t, "B", items[0].HopStop.ID)
	assert.Equal(t, 1, items[0].Position())
	assert.Equal(t, "R2__C_E", items[1].Route.ID())
	assert.Equal(t, "C", items[1].HopStop.ID)

	var ids []string
	for _, s := range items[0].Stops() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"B", "C", "D"}, ids)
}

func TestEnqueueIgnoresStopsWithoutRoutes(t *testing.T) {
	tt := lineABC().stop("Z").build(t)
	q, err := Enqueue(tt, []*model.Stop{stop(t, tt, "Z")})
	require.NoError(t, err)
	assert.Equal(t, 0, q.Len())
}

func TestQueueInsertOrderIndependent(t *testing.T) {
	tt := lineABC().build(t)
	route := tt.Routes()[0]
	b, err := NewQueueItem(route, stop(t, tt, "B"))
	require.NoError(t, err)
	c, err := NewQueueItem(route, stop(t, tt, "C"))
	require.NoError(t, err)

	for _, order := range [][]QueueItem{{b, c}, {c, b}} {
		q := NewQueue(tt)
		for _, it := range order {
			require.NoError(t, q.Insert(it))
		}
		require.Equal(t, 1, q.Len())
		assert.Equal(t, "B", q.Items()[0].HopStop.ID)
	}
}

func TestQueueItemPrecedes(t *testing.T) {
	tt := newFeed().
		trip("R1", "T1", at("A", 0, 0), at("B", 10, 10)).
		trip("R2", "T2", at("B", 20, 20), at("C", 30, 30)).
		build(t)
	r1, r2 := tt.Routes()[0], tt.Routes()[1]

	a, _ := NewQueueItem(r1, stop(t, tt, "A"))
	b, _ := NewQueueItem(r1, stop(t, tt, "B"))
	ok, err := a.Precedes(b)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.Precedes(a)
	require.NoError(t, err)
	assert.False(t, ok)

	other, _ := NewQueueItem(r2, stop(t, tt, "B"))
	assert.False(t, b.Conflicts(other))
	_, err = b.Precedes(other)
	assert.True(t, errors.Is(err, ErrUnrelatedQueueItems))

	q := NewQueue(tt)
	require.NoError(t, q.Insert(b))
	assert.NoError(t, q.Insert(other), "distinct routes never conflict in the queue")
	assert.Equal(t, 2, q.Len())
}

func TestNewQueueItemStopNotOnRoute(t *testing.T) {
	tt := lineABC().stop("Z").build(t)
	_, err := NewQueueItem(tt.Routes()[0], stop(t, tt, "Z"))
	require.Error(t, err)

	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.True(t, errors.Is(err, ErrStopNotOnRoute))
	assert.Equal(t, "Z", ce.StopID)
	assert.Equal(t, "R1__A_B_C", ce.RouteID)
	assert.Contains(t, err.Error(), "stop=Z route=R1__A_B_C")
}

func TestQueueRejectsRouteOutsideTimetable(t *testing.T) {
	tt := lineABC().build(t)
	a := stop(t, tt, "A")
	stray := model.NewRoute("R9", "", "_A", []*model.Trip{
		model.NewTrip("T9", "", []model.StopTime{{Stop: a}}),
	})
	item, err := NewQueueItem(stray, a)
	require.NoError(t, err)

	q := NewQueue(tt)
	err = q.Insert(item)
	require.ErrorIs(t, err, ErrUnknownRoute)
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "R9__A", ce.RouteID)
	assert.Zero(t, q.Len())
}
