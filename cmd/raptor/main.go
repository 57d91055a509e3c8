package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"gtfs-raptor/internal/config"
	"gtfs-raptor/internal/db"
	"gtfs-raptor/internal/gtfs"
	"gtfs-raptor/internal/metrics"
	"gtfs-raptor/internal/model"
	"gtfs-raptor/internal/planner"
	"gtfs-raptor/internal/publisher"
	"gtfs-raptor/internal/raptor"
	"gtfs-raptor/internal/timetable"
)

func main() {
	from := flag.String("from", "", "run a single query from this stop id and exit")
	to := flag.String("to", "", "optional target stop id for -from")
	at := flag.String("at", "00:00:00", "departure time (HH:MM[:SS]) for -from")
	walk := flag.Bool("walk", false, "allow footpaths from the origin before the first boarding")
	flag.Parse()

	InitLogging()

	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.MaxRounds, cfg.QueryTimeout)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	mgr := planner.NewManager(newLoader(cfg, mcol), planner.Settings{
		MaxRounds:       cfg.MaxRounds,
		QueryTimeout:    cfg.QueryTimeout,
		MaxConcurrent:   cfg.MaxConcurrentQueries,
		RefreshInterval: cfg.RefreshInterval,
	}, mcol)
	if err := mgr.Reload(ctx); err != nil {
		log.Fatalf("initial timetable load: %v", err)
	}

	if *from != "" {
		dep, err := gtfs.ParseDaySeconds(*at)
		if err != nil {
			log.Fatalf("invalid -at %q: %v", *at, err)
		}
		res, err := mgr.Query(ctx, planner.Query{From: *from, To: *to, Departure: model.Time(dep), WalkFromSource: *walk})
		if res != nil {
			logResult(res)
		}
		if err != nil {
			log.Fatalf("query error: %v", err)
		}
		return
	}

	// Initialize NATS publisher and query server
	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer pub.Close()

	server := publisher.NewQueryServer(pub, mgr, cfg.NATSQuerySubject, cfg.NATSResultPrefix)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("query server: %v", err)
	}
	// Start periodic timetable refresher
	mgr.StartRefresher(ctx)

	// Block until context cancelled
	<-ctx.Done()
	server.Stop()
	mgr.Stop()
	log.Println("shutdown complete")
}

// newLoader returns the timetable loader for the configured source.
func newLoader(cfg *config.Config, mcol *metrics.Collector) planner.Loader {
	currentDBName := ""
	return func(ctx context.Context) (*timetable.Timetable, error) {
		day := serviceDay(cfg)
		var feed *gtfs.Feed
		var err error
		switch cfg.TimetableSource {
		case config.SourceGTFS:
			feed, err = gtfs.LoadStatic(cfg.GTFSPath, day)
		case config.SourceFixture:
			feed, err = gtfs.LoadFixtureFile(cfg.GTFSPath)
		default:
			sqlDB, name, openErr := db.OpenFeedDB(ctx, cfg.DatabaseURL, cfg.City)
			if openErr != nil {
				return nil, openErr
			}
			defer sqlDB.Close()
			if currentDBName != "" && name != currentDBName {
				log.Printf("detected updated DB for city %q: %q -> %q", cfg.City, currentDBName, name)
				if mcol != nil {
					mcol.DBSwitches.WithLabelValues("update").Inc()
				}
			}
			currentDBName = name
			feed, err = db.LoadFeed(ctx, sqlDB, day)
		}
		if err != nil {
			return nil, err
		}
		return timetable.Build(feed)
	}
}

func serviceDay(cfg *config.Config) time.Time {
	if cfg.ServiceDateFixed {
		return cfg.ServiceDate
	}
	now := time.Now().In(cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, cfg.Location)
}

func logResult(res *raptor.Result) {
	ids := make([]string, 0, len(res.Arrivals))
	for id := range res.Arrivals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := res.Arrivals[ids[i]], res.Arrivals[ids[j]]
		if a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		log.Printf("%-12s %s", id, res.Arrivals[id])
	}
	target := "-"
	if t, ok := res.TargetArrival(); ok {
		target = t.String()
	}
	log.Printf("from %s at %s: %d stops reached in %d rounds (%d route scans), target %s",
		res.Source, res.Departure, len(ids), res.Stats.Rounds, res.Stats.RouteScans, target)
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
