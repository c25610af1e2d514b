// Package sim drives the engine and the paper venue on one goroutine,
// one book at a time, for backtests and soak runs.
package sim

import (
	"context"

	"arb/internal/bus"
	"arb/internal/codec"
	"arb/internal/core"
	"arb/internal/obs"
	"arb/internal/schema"
	"arb/internal/state"
	"arb/internal/venue"
)

const defaultQueueSize = 1024

// Config wires a simulation.
type Config struct {
	Engine core.Config
	Venue  venue.Config
	// WAL receives every journaled event when set.
	WAL     core.Appender
	Metrics *obs.Metrics
}

// Sim is not safe for concurrent use.
type Sim struct {
	paper   *venue.Paper
	queue   *bus.Queue
	journal *core.Journal
	engine  *core.Engine
	runner  *core.Runner
	books   int
	events  int
}

// New builds a fresh engine on top of a paper venue.
func New(cfg Config) (*Sim, error) {
	queue := bus.NewQueue(defaultQueueSize)
	paper, err := venue.New(cfg.Venue, queue)
	if err != nil {
		return nil, err
	}
	journal := core.NewJournal(cfg.WAL, 0, cfg.Metrics)
	engine, err := core.NewEngine(cfg.Engine, core.NewRecordingVenue(paper, journal), core.WithMetrics(cfg.Metrics))
	if err != nil {
		return nil, err
	}
	return &Sim{
		paper:   paper,
		queue:   queue,
		journal: journal,
		engine:  engine,
		runner:  core.NewRunner(engine, journal, queue, cfg.Metrics),
	}, nil
}

// Book feeds one book to the venue and the engine and settles every
// report it causes before returning.
func (s *Sim) Book(u schema.BookUpdate, tsEvent int64) {
	s.books++
	s.paper.OnBook(u)
	s.runner.Handle(bus.Event{
		Header:  schema.NewHeader(schema.EventBookUpdate, schema.SourceMarketData, u.Seq, tsEvent, tsEvent),
		Payload: codec.EncodeBookUpdate(nil, u),
	})
	s.settle()
}

// Finish cancels resting orders and delivers held reports until nothing
// is outstanding or the venue has nothing left to say.
func (s *Sim) Finish() {
	s.runner.CancelAll()
	s.settle()
	for s.engine.Outstanding() > 0 {
		before := s.events
		s.paper.Release()
		s.settle()
		if s.events == before {
			break
		}
	}
}

// Positions returns the engine's positions.
func (s *Sim) Positions() [schema.InstrumentCount]schema.Quantity {
	return s.engine.Positions()
}

// Outstanding returns the engine's live order count.
func (s *Sim) Outstanding() int {
	return s.engine.Outstanding()
}

// Snapshot returns positions tagged with the last journaled sequence.
func (s *Sim) Snapshot() state.Snapshot {
	return s.runner.Snapshot()
}

// Stats returns how many books and venue reports were processed.
func (s *Sim) Stats() (books, reports int) {
	return s.books, s.events
}

func (s *Sim) settle() {
	for s.paper.Pending() > 0 || s.queue.Len() > 0 {
		s.paper.Flush()
		s.drain()
	}
}

func (s *Sim) drain() {
	if s.queue.Len() == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.queue.Run(ctx, func(e bus.Event) {
		s.events++
		s.runner.Handle(e)
		if s.queue.Len() == 0 {
			cancel()
		}
	})
}
