package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/bus"
	"arb/internal/codec"
	"arb/internal/obs"
	"arb/internal/recorder"
	"arb/internal/schema"
	"arb/internal/state"
)

func bookEvent(u schema.BookUpdate) bus.Event {
	return bus.Event{
		Header:  schema.NewHeader(schema.EventBookUpdate, schema.SourceMarketData, u.Seq, 1, 0),
		Payload: codec.EncodeBookUpdate(nil, u),
	}
}

func fillEvent(eventType schema.EventType, f schema.Fill) bus.Event {
	return bus.Event{
		Header:  schema.NewHeader(eventType, schema.SourceVenue, 0, 1, 0),
		Payload: codec.EncodeFill(nil, f),
	}
}

func TestRunnerJournalsAndRecovers(t *testing.T) {
	dir := t.TempDir()
	wal, err := recorder.NewWriter(context.Background(), recorder.Config{Dir: dir})
	require.NoError(t, err)

	metrics := obs.NewMetrics()
	journal := NewJournal(wal, 0, metrics)
	venue := &captureVenue{}
	engine, err := NewEngine(Config{}, NewRecordingVenue(venue, journal), WithMetrics(metrics))
	require.NoError(t, err)

	queue := bus.NewQueue(16)
	runner := NewRunner(engine, journal, queue, metrics)

	runner.Handle(bookEvent(update(schema.InstrumentETF, 1, []schema.Level{{Price: 100, Volume: 5}}, []schema.Level{{Price: 99, Volume: 5}})))
	runner.Handle(bookEvent(update(schema.InstrumentFuture, 1, []schema.Level{{Price: 104, Volume: 5}}, []schema.Level{{Price: 103, Volume: 5}})))
	require.Len(t, venue.inserts, 1)
	taker := venue.inserts[0]

	runner.Handle(fillEvent(schema.EventOrderFilled, schema.Fill{OrderID: taker.OrderID, Price: 100, Qty: 5}))
	require.Len(t, venue.hedges, 1)
	hedge := venue.hedges[0]
	runner.Handle(fillEvent(schema.EventHedgeFilled, schema.Fill{OrderID: hedge.OrderID, Price: 103, Qty: 5}))

	want := engine.Positions()
	assert.Equal(t, schema.Quantity(5), want[schema.InstrumentETF])
	assert.Equal(t, schema.Quantity(-5), want[schema.InstrumentFuture])
	require.NoError(t, wal.Close())

	// book, book, insert, decision, fill, hedge, hedge fill
	assert.Equal(t, uint64(7), journal.Last())

	res, err := state.RecoverPositions(context.Background(), state.RecoverConfig{WALDir: dir})
	require.NoError(t, err)
	assert.Equal(t, want, res.Positions.Positions())
	assert.Equal(t, uint64(7), res.LastSeq)
	assert.Zero(t, res.Orphans)

	s := metrics.Snapshot()
	assert.Equal(t, uint64(2), s.EventCounts[schema.EventBookUpdate])
	assert.Equal(t, uint64(1), s.OutcomeCounts[uint16(OutcomeDecided)])
}

func TestRunnerDrainsQueue(t *testing.T) {
	venue := &captureVenue{}
	journal := NewJournal(nil, 10, nil)
	engine, err := NewEngine(Config{}, NewRecordingVenue(venue, journal))
	require.NoError(t, err)

	queue := bus.NewQueue(4)
	require.NoError(t, queue.TryPublish(bookEvent(update(schema.InstrumentETF, 1, []schema.Level{{Price: 100, Volume: 5}}, []schema.Level{{Price: 99, Volume: 5}}))))
	require.NoError(t, queue.TryPublish(bookEvent(update(schema.InstrumentFuture, 1, []schema.Level{{Price: 104, Volume: 5}}, []schema.Level{{Price: 103, Volume: 5}}))))
	require.NoError(t, queue.TryPublish(bus.Event{Header: schema.EventHeader{Type: schema.EventBookUpdate}, Payload: []byte{1}}))
	queue.Close()

	runner := NewRunner(engine, journal, queue, nil)
	runner.Run(context.Background())

	assert.Len(t, venue.inserts, 1)
	assert.Equal(t, uint64(14), journal.Last())
	assert.Equal(t, uint64(14), runner.Snapshot().LastSeq)
}

type countingAppender struct {
	n   int
	err error
}

func (c *countingAppender) Append(schema.EventHeader, []byte) error {
	c.n++
	return c.err
}

func TestTeeReachesEverySink(t *testing.T) {
	a := &countingAppender{}
	b := &countingAppender{err: bus.ErrQueueFull}
	c := &countingAppender{}

	sink := Tee(a, nil, b, c)
	assert.ErrorIs(t, sink.Append(schema.EventHeader{}, nil), bus.ErrQueueFull)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
	assert.Equal(t, 1, c.n)
}
