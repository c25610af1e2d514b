package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/book"
	"arb/internal/schema"
)

func TestDepthWeightedFairValue(t *testing.T) {
	testCases := []struct {
		desc     string
		snapshot book.Snapshot
		coverage schema.Quantity
		want     float64
		ok       bool
	}{
		{
			"empty book",
			book.Snapshot{Asks: []schema.Level{{}}, Bids: []schema.Level{{}}},
			800,
			0,
			false,
		},
		{
			"thin book divides by covered volume",
			book.Snapshot{
				Asks: []schema.Level{{Price: 102, Volume: 10}},
				Bids: []schema.Level{{Price: 98, Volume: 30}},
			},
			800,
			(102*10 + 98*30) / 40.0,
			true,
		},
		{
			"coverage truncates deeper levels",
			book.Snapshot{
				Asks: []schema.Level{{Price: 101, Volume: 5}, {Price: 110, Volume: 100}},
				Bids: []schema.Level{{Price: 99, Volume: 8}, {Price: 90, Volume: 100}},
			},
			8,
			(101*5 + 110*3 + 99*8) / 16.0,
			true,
		},
		{
			"sentinel levels skipped",
			book.Snapshot{
				Asks: []schema.Level{{Price: 0, Volume: 9}, {Price: 100, Volume: 2}},
				Bids: []schema.Level{{Price: 96, Volume: 2}},
			},
			800,
			98,
			true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := DepthWeighted{Coverage: tc.coverage}.FairValue(tc.snapshot)
			require.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestBestPrice(t *testing.T) {
	p := NewPricer(PricerBestPrice, 0)
	got, ok := p.FairValue(book.Snapshot{
		Asks: []schema.Level{{Price: 102, Volume: 1}},
		Bids: []schema.Level{{Price: 100, Volume: 1}},
	})
	require.True(t, ok)
	assert.Equal(t, 101.0, got)

	_, ok = p.FairValue(book.Snapshot{Asks: []schema.Level{{Price: 102, Volume: 1}}})
	assert.False(t, ok)
}

func TestNormalizeSingleSampleIsNeutral(t *testing.T) {
	h := NewHistory()
	h.Add(1.0)
	got := h.Normalize(1.0)
	assert.False(t, math.IsNaN(got))
	assert.Equal(t, 0.0, got)
}

func TestNormalizeRange(t *testing.T) {
	h := NewHistory()
	for _, s := range []float64{-2, 3, 0.5} {
		h.Add(s)
	}
	lo, hi := h.Range()
	assert.Equal(t, -2.0, lo)
	assert.Equal(t, 3.0, hi)
	assert.InDelta(t, 0.5, h.Normalize(0.5), 1e-12)
	assert.Equal(t, 1.0, h.Normalize(3))
	assert.Equal(t, 0.0, h.Normalize(-2))
	assert.Equal(t, 1.0, h.Normalize(10))
	assert.Equal(t, 3, h.Len())
}

func TestHistoryKeepsOnlyExtremes(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 10000; i++ {
		h.Add(float64(i % 7))
	}
	assert.Equal(t, 10000, h.Len())
	lo, hi := h.Range()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 6.0, hi)
	assert.InDelta(t, 0.5, h.Normalize(3), 1e-12)
}

func TestSpread(t *testing.T) {
	assert.Equal(t, 2.5, Spread(102.5, 100))
}

func TestLogRatioDegenerate(t *testing.T) {
	l := NewLogRatio(4)
	_, ok := l.Observe(100, 100)
	assert.False(t, ok)
	_, ok = l.Observe(100, 100)
	assert.False(t, ok)
	_, ok = l.Observe(0, 100)
	assert.False(t, ok)
}

func TestLogRatioScore(t *testing.T) {
	l := NewLogRatio(3)
	l.Observe(100, 100)
	z, ok := l.Observe(110, 100)
	require.True(t, ok)
	assert.Greater(t, z.StdDev, 0.0)
	assert.InDelta(t, z.Spread/z.StdDev, z.Score, 1e-12)

	for range 5 {
		l.Observe(105, 100)
	}
	assert.Len(t, l.ratios, 3)
}

func TestSpreadOf(t *testing.T) {
	v, ok := SpreadOf(SpreadDifference, 103, 100)
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = SpreadOf(SpreadLog, math.E, 1)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-12)

	_, ok = SpreadOf(SpreadLog, 0, 1)
	assert.False(t, ok)
}
