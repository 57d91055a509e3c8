package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/nats-io/nats.go"

	"gtfs-raptor/internal/gtfs"
	"gtfs-raptor/internal/model"
	"gtfs-raptor/internal/planner"
	"gtfs-raptor/internal/raptor"
)

// Planner answers journey queries.
type Planner interface {
	Query(ctx context.Context, q planner.Query) (*raptor.Result, error)
}

type QueryRequest struct {
	From           string `json:"from"`
	To             string `json:"to,omitempty"`
	Departure      string `json:"departure"`
	WalkFromSource bool   `json:"walkFromSource,omitempty"`
}

type StopArrival struct {
	StopID  string `json:"stopId"`
	Arrival string `json:"arrival"`
}

type QueryResponse struct {
	From      string        `json:"from,omitempty"`
	To        string        `json:"to,omitempty"`
	Departure string        `json:"departure,omitempty"`
	Arrival   string        `json:"arrival,omitempty"`
	Arrivals  []StopArrival `json:"arrivals,omitempty"`
	Rounds    int           `json:"rounds,omitempty"`
	Complete  bool          `json:"complete"`
	Error     string        `json:"error,omitempty"`
}

// QueryServer answers journey requests received on a NATS subject and
// republishes successful results under a per-origin subject.
type QueryServer struct {
	pub          *NATSPublisher
	planner      Planner
	subject      string
	resultPrefix string

	mu      sync.Mutex
	stopped bool
	sub     *nats.Subscription
	wg      sync.WaitGroup
}

func NewQueryServer(pub *NATSPublisher, p Planner, subject, resultPrefix string) *QueryServer {
	return &QueryServer{pub: pub, planner: p, subject: subject, resultPrefix: resultPrefix}
}

// Start subscribes in the "raptor" queue group so replicas share the load. Each
// request is handled on its own goroutine bound to ctx.
func (s *QueryServer) Start(ctx context.Context) error {
	sub, err := s.pub.nc.QueueSubscribe(s.subject, "raptor", func(msg *nats.Msg) {
		s.dispatch(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	log.Printf("listening for queries on %s", s.subject)
	return nil
}

// Stop unsubscribes and waits for in-flight requests. Messages still being
// delivered after Stop are dropped.
func (s *QueryServer) Stop() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Printf("nats unsubscribe: %v", err)
		}
	}
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

// dispatch serves msg on its own goroutine unless the server is stopping.
func (s *QueryServer) dispatch(ctx context.Context, msg *nats.Msg) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		s.serve(ctx, msg)
	}()
	return true
}

func (s *QueryServer) serve(ctx context.Context, msg *nats.Msg) {
	resp := s.Handle(ctx, msg.Data)
	b, err := json.Marshal(resp)
	if err != nil {
		log.Printf("encode response: %v", err)
		return
	}
	if msg.Reply != "" {
		if err := s.pub.Respond(msg.Reply, b); err != nil {
			log.Printf("nats respond error: %v", err)
		}
	}
	if resp.Error == "" {
		if err := s.pub.PublishResult(s.resultPrefix, resp.From, b); err != nil {
			log.Printf("nats publish error: %v", err)
		}
	}
}

// Handle decodes one request, runs it and encodes the answer. Partial results from
// a bounded search carry both arrivals and an error.
func (s *QueryServer) Handle(ctx context.Context, data []byte) QueryResponse {
	var req QueryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return QueryResponse{Error: fmt.Sprintf("decode request: %v", err)}
	}
	dep, err := gtfs.ParseDaySeconds(req.Departure)
	if err != nil {
		return QueryResponse{From: req.From, To: req.To, Error: fmt.Sprintf("invalid departure %q: %v", req.Departure, err)}
	}
	res, err := s.planner.Query(ctx, planner.Query{
		From:           req.From,
		To:             req.To,
		Departure:      model.Time(dep),
		WalkFromSource: req.WalkFromSource,
	})
	resp := QueryResponse{From: req.From, To: req.To, Departure: model.Time(dep).String()}
	if res != nil {
		resp.Arrivals = arrivals(res.Arrivals)
		resp.Rounds = res.Stats.Rounds
		resp.Complete = res.Finished
		if t, ok := res.TargetArrival(); ok {
			resp.Arrival = t.String()
		}
	}
	if err != nil {
		resp.Complete = false
		resp.Error = err.Error()
	}
	return resp
}

func arrivals(tau raptor.Tau) []StopArrival {
	out := make([]StopArrival, 0, len(tau))
	for id, t := range tau {
		out = append(out, StopArrival{StopID: id, Arrival: t.String()})
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := tau[out[i].StopID], tau[out[j].StopID]
		if ti != tj {
			return ti < tj
		}
		return out[i].StopID < out[j].StopID
	})
	return out
}
