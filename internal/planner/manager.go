package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gtfs-raptor/internal/metrics"
	"gtfs-raptor/internal/model"
	"gtfs-raptor/internal/raptor"
	"gtfs-raptor/internal/timetable"
)

const (
	OutcomeOK         = "ok"
	OutcomeRoundLimit = "round_limit"
	OutcomeTimeout    = "timeout"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"

	recentFailures = 32
)

var (
	ErrNoTimetable  = errors.New("no timetable loaded")
	ErrUnknownStop  = errors.New("unknown stop")
	ErrBadDeparture = errors.New("departure must not be negative")
)

// Loader produces a fresh timetable. It is called on Reload and by the refresher.
type Loader func(ctx context.Context) (*timetable.Timetable, error)

type Settings struct {
	MaxRounds       int
	QueryTimeout    time.Duration
	MaxConcurrent   int
	RefreshInterval time.Duration
}

type Query struct {
	From           string
	To             string
	Departure      model.Time
	WalkFromSource bool
}

type Manager struct {
	load     Loader
	settings Settings
	metrics  *metrics.Collector
	sem      chan struct{}

	mu       sync.RWMutex
	tt       *timetable.Timetable
	failures []*raptor.ConsistencyError

	refreshCancel context.CancelFunc
	refreshWG     sync.WaitGroup
}

func NewManager(load Loader, settings Settings, mcol *metrics.Collector) *Manager {
	if settings.MaxConcurrent <= 0 {
		settings.MaxConcurrent = 1
	}
	return &Manager{
		load:     load,
		settings: settings,
		metrics:  mcol,
		sem:      make(chan struct{}, settings.MaxConcurrent),
	}
}

// Timetable returns the timetable queries currently run against.
func (m *Manager) Timetable() *timetable.Timetable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tt
}

// Reload replaces the timetable. On error the previous one stays in service.
func (m *Manager) Reload(ctx context.Context) error {
	start := time.Now()
	tt, err := m.load(ctx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.TimetableReloads.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("load timetable: %w", err)
	}
	m.mu.Lock()
	m.tt = tt
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.TimetableReloads.WithLabelValues("ok").Inc()
		m.metrics.TimetableStops.Set(float64(len(tt.Stops())))
		m.metrics.TimetableRoutes.Set(float64(len(tt.Routes())))
		m.metrics.TimetableTrips.Set(float64(len(tt.Trips())))
	}
	log.Printf("timetable loaded: %d stops, %d routes, %d trips in %s",
		len(tt.Stops()), len(tt.Routes()), len(tt.Trips()), time.Since(start).Round(time.Millisecond))
	return nil
}

// Query runs one earliest-arrival search. A search stopped by the round bound or
// the deadline still returns its partial result alongside the error.
func (m *Manager) Query(ctx context.Context, q Query) (*raptor.Result, error) {
	start := time.Now()
	res, err := m.query(ctx, q)
	m.record(outcome(err), time.Since(start))
	return res, err
}

func (m *Manager) query(ctx context.Context, q Query) (*raptor.Result, error) {
	tt := m.Timetable()
	if tt == nil {
		return nil, ErrNoTimetable
	}
	source, ok := tt.Stop(q.From)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownStop, q.From)
	}
	opts := []raptor.Option{raptor.WithMaxRounds(m.settings.MaxRounds)}
	if q.To != "" {
		target, ok := tt.Stop(q.To)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownStop, q.To)
		}
		opts = append(opts, raptor.WithTarget(target))
	}
	if q.Departure < 0 {
		return nil, ErrBadDeparture
	}
	if q.WalkFromSource {
		opts = append(opts, raptor.WithSourceTransfers())
	}
	if m.metrics != nil {
		opts = append(opts, raptor.WithObserver(searchObserver{c: m.metrics}))
	}

	if m.settings.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.settings.QueryTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-m.sem }()
	if m.metrics != nil {
		m.metrics.QueriesInFlight.Inc()
		defer m.metrics.QueriesInFlight.Dec()
	}

	search := raptor.New(tt, source, q.Departure, opts...)
	runErr := search.RunContext(ctx)
	res, err := search.Result()
	if err != nil {
		var ce *raptor.ConsistencyError
		if errors.As(err, &ce) {
			m.recordFailure(ce)
		}
		return nil, err
	}
	return res, runErr
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, raptor.ErrRoundLimit):
		return OutcomeRoundLimit
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, ErrUnknownStop), errors.Is(err, ErrBadDeparture):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

func (m *Manager) record(result string, d time.Duration) {
	if m.metrics == nil {
		return
	}
	m.metrics.Queries.WithLabelValues(result).Inc()
	m.metrics.QueryDuration.Observe(d.Seconds())
}

func (m *Manager) recordFailure(err *raptor.ConsistencyError) {
	log.Printf("search aborted: %v", err)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
	if len(m.failures) > recentFailures {
		m.failures = m.failures[len(m.failures)-recentFailures:]
	}
}

// RecentFailures returns the latest consistency failures, oldest first.
func (m *Manager) RecentFailures() []*raptor.ConsistencyError {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*raptor.ConsistencyError(nil), m.failures...)
}

// StartRefresher launches a background loop that periodically reloads the timetable.
func (m *Manager) StartRefresher(parent context.Context) {
	if m.settings.RefreshInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.refreshCancel = cancel
	m.refreshWG.Add(1)
	go func() {
		defer m.refreshWG.Done()
		ticker := time.NewTicker(m.settings.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Reload(ctx); err != nil {
					log.Printf("timetable refresh error: %v", err)
				}
			}
		}
	}()
}

// Stop cancels the refresher and waits for it to exit.
func (m *Manager) Stop() {
	if m.refreshCancel != nil {
		m.refreshCancel()
	}
	m.refreshWG.Wait()
}
