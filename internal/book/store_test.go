package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/schema"
)

func snap(instrument schema.Instrument, seq uint64) Snapshot {
	return Snapshot{
		Instrument: instrument,
		Seq:        seq,
		Asks:       []schema.Level{{Price: 101, Volume: 10}},
		Bids:       []schema.Level{{Price: 99, Volume: 10}},
	}
}

func TestStoreBarrier(t *testing.T) {
	testCases := []struct {
		desc    string
		updates []Snapshot
		ready   []bool
	}{
		{
			"single instrument never opens",
			[]Snapshot{snap(schema.InstrumentETF, 1), snap(schema.InstrumentETF, 2)},
			[]bool{false, false},
		},
		{
			"same round opens",
			[]Snapshot{snap(schema.InstrumentFuture, 1), snap(schema.InstrumentETF, 1)},
			[]bool{false, true},
		},
		{
			"one leg moves ahead",
			[]Snapshot{snap(schema.InstrumentFuture, 1), snap(schema.InstrumentETF, 1), snap(schema.InstrumentFuture, 2), snap(schema.InstrumentETF, 2)},
			[]bool{false, true, false, true},
		},
		{
			"unknown instrument ignored",
			[]Snapshot{snap(schema.InstrumentFuture, 3), snap(schema.Instrument(7), 3)},
			[]bool{false, false},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			s := NewStore()
			for i, u := range tc.updates {
				assert.Equalf(t, tc.ready[i], s.Update(u), "update %d", i)
			}
		})
	}
}

func TestStorePairReturnsCopies(t *testing.T) {
	s := NewStore()
	s.Update(snap(schema.InstrumentFuture, 5))
	require.True(t, s.Update(snap(schema.InstrumentETF, 5)))

	etf, future, ok := s.Pair()
	require.True(t, ok)
	assert.Equal(t, schema.InstrumentETF, etf.Instrument)
	assert.Equal(t, schema.InstrumentFuture, future.Instrument)

	etf.Asks[0].Volume = 0
	again, ok := s.Snapshot(schema.InstrumentETF)
	require.True(t, ok)
	assert.Equal(t, schema.Quantity(10), again.Asks[0].Volume)
}

func TestSnapshotSentinel(t *testing.T) {
	s := Snapshot{
		Asks: []schema.Level{{Price: 0, Volume: 0}},
		Bids: []schema.Level{{Price: 99, Volume: 4}},
	}
	_, ok := s.BestAsk()
	assert.False(t, ok)
	assert.False(t, s.Quoted())

	lvl, ok := s.Level(schema.SideSell, 0)
	require.True(t, ok)
	assert.Equal(t, schema.Price(99), lvl.Price)
	_, ok = s.Level(schema.SideSell, 1)
	assert.False(t, ok)
}

func TestSnapshotDebug(t *testing.T) {
	s := Snapshot{
		Instrument: schema.InstrumentETF,
		Seq:        7,
		Asks:       []schema.Level{{Price: 101, Volume: 2}, {Price: 102, Volume: 5}},
		Bids:       []schema.Level{{Price: 0, Volume: 0}},
	}
	assert.Equal(t, "Snapshot{instrument=ETF seq=7 asks=[(101,2),(102,5)] bids=[(0,0)]}", s.Debug())
}
