package mdg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/book"
	"arb/internal/codec"
	"arb/internal/schema"
)

func TestNextProducesQuotedPairs(t *testing.T) {
	g, err := NewGenerator(Config{Seed: 7, Levels: 3, TickSize: 10, BasePrice: 1_000})
	require.NoError(t, err)

	for i := 1; i <= 500; i++ {
		pair := g.Next()
		fut, etf := pair[schema.InstrumentFuture], pair[schema.InstrumentETF]
		assert.Equal(t, schema.InstrumentFuture, fut.Instrument)
		assert.Equal(t, schema.InstrumentETF, etf.Instrument)
		assert.Equal(t, uint64(i), fut.Seq)
		assert.Equal(t, fut.Seq, etf.Seq)

		for _, u := range pair {
			require.Len(t, u.Asks, 3)
			require.Len(t, u.Bids, 3)
			assert.True(t, book.FromUpdate(u).Quoted())
			assert.Greater(t, u.Asks[0].Price, u.Bids[0].Price)
			for j := 1; j < 3; j++ {
				assert.Greater(t, u.Asks[j].Price, u.Asks[j-1].Price)
				assert.Less(t, u.Bids[j].Price, u.Bids[j-1].Price)
			}
			assert.Positive(t, u.Bids[2].Price)
		}
	}
	assert.Equal(t, uint64(500), g.Seq())
}

func TestSameSeedSameMarket(t *testing.T) {
	a, err := NewGenerator(Config{Seed: 99})
	require.NoError(t, err)
	b, err := NewGenerator(Config{Seed: 99})
	require.NoError(t, err)
	for range 50 {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestValidate(t *testing.T) {
	for _, cfg := range []Config{
		{Levels: 100},
		{Reversion: 2},
		{Volatility: -1},
		{TickSize: -1},
	} {
		_, err := NewGenerator(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestEventEncodesBook(t *testing.T) {
	g, err := NewGenerator(Config{Seed: 1})
	require.NoError(t, err)
	u := g.Next()[schema.InstrumentETF]

	e := Event(u, 123)
	assert.Equal(t, schema.EventBookUpdate, e.Header.Type)
	assert.Equal(t, schema.SourceMarketData, e.Header.Source)
	assert.Equal(t, int64(123), e.Header.TsEvent)
	got, ok := codec.DecodeBookUpdate(e.Payload)
	require.True(t, ok)
	assert.Equal(t, u, got)
}

func TestRunStopsOnEmitError(t *testing.T) {
	g, err := NewGenerator(Config{Seed: 1, Interval: time.Millisecond})
	require.NoError(t, err)

	var n int
	boom := assert.AnError
	err = g.Run(context.Background(), func(schema.BookUpdate) error {
		n++
		if n == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, n)
}
