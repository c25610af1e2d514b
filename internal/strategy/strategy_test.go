package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/book"
	"arb/internal/risk"
	"arb/internal/schema"
	"arb/pkg/exception"
)

func budget(limit, etf, future schema.Quantity) *risk.Cycle {
	var pos [schema.InstrumentCount]schema.Quantity
	pos[schema.InstrumentETF] = etf
	pos[schema.InstrumentFuture] = future
	return risk.NewCycle(risk.Config{PositionLimit: limit}, pos)
}

func etfBook() book.Snapshot {
	return book.Snapshot{
		Instrument: schema.InstrumentETF,
		Asks:       []schema.Level{{Price: 100, Volume: 5}, {Price: 0, Volume: 0}, {Price: 102, Volume: 50}},
		Bids:       []schema.Level{{Price: 99, Volume: 8}, {Price: 98, Volume: 50}},
	}
}

func TestNew(t *testing.T) {
	for _, kind := range []Kind{"", KindCrossing, KindSpread, KindZScore} {
		s, err := New(Config{Kind: kind})
		require.NoError(t, err)
		if kind == "" {
			kind = KindCrossing
		}
		assert.Equal(t, kind, s.Name())
	}

	_, err := New(Config{Kind: "martingale"})
	assert.ErrorIs(t, err, exception.ErrInvalidConfig)
	_, err = New(Config{FeeThreshold: "abc"})
	assert.ErrorIs(t, err, exception.ErrInvalidConfig)
	_, err = New(Config{FeeThreshold: "-0.1"})
	assert.ErrorIs(t, err, exception.ErrInvalidConfig)
}

func TestCrossingTakesETFLeg(t *testing.T) {
	s, err := New(Config{Kind: KindCrossing})
	require.NoError(t, err)

	c := &Cycle{
		ETF:    book.Snapshot{Asks: []schema.Level{{Price: 100, Volume: 5}}},
		Future: book.Snapshot{Bids: []schema.Level{{Price: 103, Volume: 5}}},
		Budget: budget(100, 0, 0),
	}
	got := s.Decide(c)
	assert.Equal(t, []Intent{{Instrument: schema.InstrumentETF, Side: schema.SideBuy, Price: 100, Level: 0, Volume: 5, HedgePrice: 103}}, got)
	assert.Equal(t, schema.Quantity(5), c.Budget.Committed(schema.InstrumentFuture, schema.SideSell))
}

func TestSpreadTargetWalksLadder(t *testing.T) {
	c := &Cycle{
		ETF:        etfBook(),
		Spread:     4,
		Normalized: 0.3,
		Budget:     budget(100, 10, -10),
	}
	got := NewSpreadTarget().Decide(c)

	// target 30, position 10 -> buy 20: 5 at the top, the sentinel level is skipped
	assert.Equal(t, []Intent{
		{Instrument: schema.InstrumentETF, Side: schema.SideBuy, Price: 100, Level: 0, Volume: 5},
		{Instrument: schema.InstrumentETF, Side: schema.SideBuy, Price: 102, Level: 2, Volume: 15},
	}, got)
}

func TestSpreadTargetSellsTowardShortTarget(t *testing.T) {
	c := &Cycle{
		ETF:        etfBook(),
		Spread:     -2,
		Normalized: 0.1,
		Budget:     budget(100, 5, -5),
	}
	got := NewSpreadTarget().Decide(c)

	// target -10, position 5 -> sell 15
	assert.Equal(t, []Intent{
		{Instrument: schema.InstrumentETF, Side: schema.SideSell, Price: 99, Level: 0, Volume: 8},
		{Instrument: schema.InstrumentETF, Side: schema.SideSell, Price: 98, Level: 1, Volume: 7},
	}, got)
}

func TestSpreadTargetRespectsLimit(t *testing.T) {
	c := &Cycle{ETF: etfBook(), Spread: 1, Normalized: 1, Budget: budget(100, 97, -97)}
	got := NewSpreadTarget().Decide(c)
	require.Len(t, got, 1)
	assert.Equal(t, schema.Quantity(3), got[0].Volume)

	assert.Nil(t, NewSpreadTarget().Decide(&Cycle{ETF: etfBook(), Spread: 0, Normalized: 1, Budget: budget(100, 0, 0)}))
}

func TestTarget(t *testing.T) {
	assert.Equal(t, schema.Quantity(50), Target(100, 0.5, 1))
	assert.Equal(t, schema.Quantity(-50), Target(100, 0.5, -1))
	assert.Equal(t, schema.Quantity(0), Target(100, 0, 1))
	assert.Equal(t, schema.Quantity(100), Target(100, 1, 3))
}

func TestZScoreNeedsDispersion(t *testing.T) {
	s := NewZScore(10, 2, 20)
	c := &Cycle{ETF: etfBook(), FairETF: 100, FairFuture: 100, Budget: budget(100, 0, 0)}
	for i := 0; i < 5; i++ {
		assert.Nil(t, s.Decide(c))
	}
}

func TestZScoreTradesOutsideBand(t *testing.T) {
	s := NewZScore(50, 0.5, 20)
	for i := 0; i < 20; i++ {
		future := 100.0 + float64(i%2)*0.01
		s.Decide(&Cycle{ETF: etfBook(), FairETF: 100, FairFuture: future, Budget: budget(100, 0, 0)})
	}
	last := s.Decide(&Cycle{ETF: etfBook(), FairETF: 100, FairFuture: 110, Budget: budget(100, 0, 0)})
	require.NotEmpty(t, last)
	assert.Equal(t, schema.SideBuy, last[0].Side)

	var total schema.Quantity
	for _, in := range last {
		total += in.Volume
	}
	assert.Equal(t, Leg(20, 1.0), total)
}

func TestLeg(t *testing.T) {
	assert.Equal(t, schema.Quantity(10), Leg(20, 1))
	assert.Equal(t, schema.Quantity(0), Leg(20, -1))
}
