package core

import (
	"context"
	"sync"

	"github.com/yanun0323/logs"

	"arb/internal/bus"
	"arb/internal/codec"
	"arb/internal/obs"
	"arb/internal/schema"
	"arb/internal/state"
)

// Runner drains the event bus on one goroutine, journals each event and
// hands it to the engine.
type Runner struct {
	mu      sync.Mutex
	engine  *Engine
	journal *Journal
	queue   *bus.Queue
	metrics *obs.Metrics
	buf     []byte
}

// NewRunner wires a runner.
func NewRunner(engine *Engine, journal *Journal, queue *bus.Queue, metrics *obs.Metrics) *Runner {
	return &Runner{
		engine:  engine,
		journal: journal,
		queue:   queue,
		metrics: metrics,
	}
}

// Run blocks until ctx is done or the queue is closed and drained.
func (r *Runner) Run(ctx context.Context) {
	r.queue.Run(ctx, r.Handle)
}

// Handle processes one event.
func (r *Runner) Handle(e bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.ObserveEvent(e.Header)

	switch e.Header.Type {
	case schema.EventBookUpdate:
		u, ok := codec.DecodeBookUpdate(e.Payload)
		if !ok {
			logs.Errorf("core: drop undecodable book update, seq: %d", e.Header.Seq)
			return
		}
		r.journal.Record(e.Header.Type, e.Header.Source, e.Header.TsEvent, e.Payload)
		d := r.engine.OnBookUpdate(u)
		if d.Outcome == OutcomeStaleBook || d.Outcome == OutcomeIgnored {
			return
		}
		r.buf = codec.EncodeCycleDecision(r.buf, d.Payload())
		r.journal.Record(schema.EventCycleDecision, schema.SourceEngine, e.Header.TsEvent, r.buf)

	case schema.EventOrderFilled, schema.EventHedgeFilled, schema.EventOrderStatus, schema.EventOrderError:
		r.journal.Record(e.Header.Type, e.Header.Source, e.Header.TsEvent, e.Payload)
		if err := r.engine.Dispatch(e.Header, e.Payload); err != nil {
			logs.Errorf("core: handle %s, err: %+v", e.Header.Type, err)
		}

	default:
		logs.Errorf("core: unexpected event %s on bus", e.Header.Type)
	}
}

// Snapshot captures positions between two events, tagged with the last
// journaled sequence, so every fill at or below LastSeq is included.
func (r *Runner) Snapshot() state.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.Snapshot(r.journal.Last())
}

// CancelAll cancels resting orders between two events.
func (r *Runner) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.CancelAll()
}
