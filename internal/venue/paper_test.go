package venue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/bus"
	"arb/internal/chaos"
	"arb/internal/codec"
	"arb/internal/schema"
)

func newPaper(t *testing.T, cfg Config) (*Paper, *bus.Queue) {
	t.Helper()
	q := bus.NewQueue(64)
	p, err := New(cfg, q, WithClock(func() int64 { return 42 }))
	require.NoError(t, err)
	return p, q
}

func drain(q *bus.Queue) []bus.Event {
	var out []bus.Event
	for q.Len() > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		q.Run(ctx, func(e bus.Event) {
			out = append(out, e)
			if q.Len() == 0 {
				cancel()
			}
		})
		cancel()
	}
	return out
}

func etfBook() schema.BookUpdate {
	return schema.BookUpdate{
		Instrument: schema.InstrumentETF,
		Seq:        1,
		Asks:       []schema.Level{{Price: 100, Volume: 5}, {Price: 101, Volume: 5}},
		Bids:       []schema.Level{{Price: 99, Volume: 5}},
	}
}

func insert(id uint64, side schema.Side, price schema.Price, qty schema.Quantity, lifespan schema.Lifespan) schema.OrderCommand {
	return schema.OrderCommand{
		OrderID:    id,
		Kind:       schema.CommandInsert,
		Instrument: schema.InstrumentETF,
		Side:       side,
		Lifespan:   lifespan,
		Price:      price,
		Qty:        qty,
	}
}

func TestIOCFillsAcrossLevelsAsOneReport(t *testing.T) {
	p, q := newPaper(t, Config{FeeBps: 10})
	p.OnBook(etfBook())

	require.NoError(t, p.InsertOrder(insert(1, schema.SideBuy, 101, 8, schema.LifespanImmediateOrCancel)))
	assert.Equal(t, 2, p.Pending())
	assert.Equal(t, 2, p.Flush())
	assert.Zero(t, p.Pending())

	events := drain(q)
	require.Len(t, events, 2)
	assert.Equal(t, schema.EventOrderFilled, events[0].Header.Type)
	assert.Equal(t, schema.SourceVenue, events[0].Header.Source)
	assert.Equal(t, int64(42), events[0].Header.TsEvent)

	fill, ok := codec.DecodeFill(events[0].Payload)
	require.True(t, ok)
	assert.Equal(t, schema.Fill{OrderID: 1, Price: 101, Qty: 8}, fill)

	status, ok := codec.DecodeOrderStatus(events[1].Payload)
	require.True(t, ok)
	assert.Equal(t, schema.Quantity(8), status.FillQty)
	assert.Zero(t, status.RemainingQty)
	assert.Equal(t, schema.Fee(101*8*10/10_000), status.Fees)
}

func TestIOCRespectsLimitPrice(t *testing.T) {
	p, q := newPaper(t, Config{})
	p.OnBook(etfBook())

	require.NoError(t, p.InsertOrder(insert(1, schema.SideBuy, 100, 8, schema.LifespanImmediateOrCancel)))
	require.NoError(t, p.InsertOrder(insert(2, schema.SideSell, 100, 3, schema.LifespanImmediateOrCancel)))
	p.Flush()

	events := drain(q)
	require.Len(t, events, 3)
	fill, _ := codec.DecodeFill(events[0].Payload)
	assert.Equal(t, schema.Quantity(5), fill.Qty)

	// bid 99 does not cross a sell limit of 100
	assert.Equal(t, schema.EventOrderStatus, events[2].Header.Type)
	status, _ := codec.DecodeOrderStatus(events[2].Payload)
	assert.Equal(t, uint64(2), status.OrderID)
	assert.Zero(t, status.FillQty)
	assert.Zero(t, status.RemainingQty)
}

func TestGTCRestsUntilBookCrosses(t *testing.T) {
	p, q := newPaper(t, Config{})
	p.OnBook(etfBook())

	require.NoError(t, p.InsertOrder(insert(7, schema.SideBuy, 98, 4, schema.LifespanGoodTillCancelled)))
	assert.Equal(t, 1, p.Resting())

	moved := etfBook()
	moved.Asks = []schema.Level{{Price: 97, Volume: 3}}
	p.OnBook(moved)
	assert.Equal(t, 1, p.Resting())

	require.NoError(t, p.CancelOrder(7))
	assert.Zero(t, p.Resting())
	require.NoError(t, p.CancelOrder(7))
	p.Flush()

	events := drain(q)
	require.Len(t, events, 4)
	first, _ := codec.DecodeOrderStatus(events[0].Payload)
	assert.Equal(t, schema.Quantity(4), first.RemainingQty)
	fill, _ := codec.DecodeFill(events[1].Payload)
	assert.Equal(t, schema.Quantity(3), fill.Qty)
	last, _ := codec.DecodeOrderStatus(events[3].Payload)
	assert.Equal(t, schema.Quantity(3), last.FillQty)
	assert.Zero(t, last.RemainingQty)
}

func TestHedgeFillsAtRequestedPrice(t *testing.T) {
	p, q := newPaper(t, Config{})
	require.NoError(t, p.SendHedgeOrder(schema.OrderCommand{
		OrderID:    3,
		Kind:       schema.CommandHedge,
		Instrument: schema.InstrumentFuture,
		Side:       schema.SideSell,
		Price:      500,
		Qty:        2,
	}))
	p.Flush()

	events := drain(q)
	require.Len(t, events, 2)
	assert.Equal(t, schema.EventHedgeFilled, events[0].Header.Type)
	fill, _ := codec.DecodeFill(events[0].Payload)
	assert.Equal(t, schema.Fill{OrderID: 3, Price: 500, Qty: 2}, fill)
}

func TestRejectAndBadCommands(t *testing.T) {
	p, q := newPaper(t, Config{Chaos: chaos.Config{Seed: 1, RejectRate: 1}})
	p.OnBook(etfBook())

	require.NoError(t, p.InsertOrder(insert(9, schema.SideBuy, 100, 1, schema.LifespanImmediateOrCancel)))
	p.Flush()
	events := drain(q)
	require.Len(t, events, 1)
	assert.Equal(t, schema.EventOrderError, events[0].Header.Type)
	e, ok := codec.DecodeOrderError(events[0].Payload)
	require.True(t, ok)
	assert.Equal(t, uint64(9), e.OrderID)

	assert.ErrorIs(t, p.InsertOrder(insert(10, schema.SideUnknown, 100, 1, schema.LifespanImmediateOrCancel)), ErrBadCommand)
	assert.ErrorIs(t, p.SendHedgeOrder(schema.OrderCommand{OrderID: 11}), ErrBadCommand)

	_, err := New(Config{FeeBps: -1}, q)
	assert.Error(t, err)
	_, err = New(Config{}, nil)
	assert.Error(t, err)
}

func TestRunDeliversStagedReports(t *testing.T) {
	p, q := newPaper(t, Config{})
	p.OnBook(etfBook())
	require.NoError(t, p.InsertOrder(insert(1, schema.SideBuy, 100, 1, schema.LifespanImmediateOrCancel)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return q.Len() == 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
