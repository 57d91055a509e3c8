package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Queries         *prometheus.CounterVec // outcome label: ok|round_limit|timeout|invalid|error
	QueriesInFlight prometheus.Gauge
	QueryDuration   prometheus.Histogram

	Rounds              prometheus.Counter
	MarkedStops         prometheus.Histogram
	RouteScans          prometheus.Counter
	ConsistencyFailures *prometheus.CounterVec // kind label

	TimetableStops   prometheus.Gauge
	TimetableRoutes  prometheus.Gauge
	TimetableTrips   prometheus.Gauge
	TimetableReloads *prometheus.CounterVec // result label: ok|error
	DBSwitches       *prometheus.CounterVec // reason label: update

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	MaxRounds    prometheus.Gauge
	QueryTimeout prometheus.Gauge // seconds
}

func NewCollector(maxRounds int, queryTimeout time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raptor_queries_total",
			Help: "Journey queries by outcome.",
		}, []string{"outcome"}),
		QueriesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raptor_queries_in_flight",
			Help: "Number of searches currently running.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "raptor_query_duration_seconds",
			Help:    "Wall-clock duration of a search.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raptor_rounds_total",
			Help: "Total search rounds executed.",
		}),
		MarkedStops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "raptor_marked_stops",
			Help:    "Stops marked at the end of a round.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		RouteScans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raptor_route_scans_total",
			Help: "Total route scans performed.",
		}),
		ConsistencyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raptor_consistency_failures_total",
			Help: "Searches aborted by a timetable invariant violation.",
		}, []string{"kind"}),
		TimetableStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raptor_timetable_stops",
			Help: "Stops in the loaded timetable.",
		}),
		TimetableRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raptor_timetable_routes",
			Help: "Stop-pattern routes in the loaded timetable.",
		}),
		TimetableTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raptor_timetable_trips",
			Help: "Trips in the loaded timetable.",
		}),
		TimetableReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raptor_timetable_reloads_total",
			Help: "Timetable reload attempts.",
		}, []string{"result"}),
		DBSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raptor_db_switches_total",
			Help: "Number of times the city database changed between loads.",
		}, []string{"reason"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raptor_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raptor_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raptor_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "raptor_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		MaxRounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raptor_max_rounds",
			Help: "Configured round bound per search.",
		}),
		QueryTimeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raptor_query_timeout_seconds",
			Help: "Configured wall-clock bound per search.",
		}),
	}

	reg.MustRegister(
		c.Queries, c.QueriesInFlight, c.QueryDuration,
		c.Rounds, c.MarkedStops, c.RouteScans, c.ConsistencyFailures,
		c.TimetableStops, c.TimetableRoutes, c.TimetableTrips, c.TimetableReloads, c.DBSwitches,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.MaxRounds, c.QueryTimeout,
	)

	c.MaxRounds.Set(float64(maxRounds))
	c.QueryTimeout.Set(queryTimeout.Seconds())

	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
