package chaos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/bus"
	"arb/internal/schema"
)

func batch(seq uint64) Batch {
	return Batch{
		{Header: schema.EventHeader{Type: schema.EventOrderFilled, Seq: seq, TsEvent: 10}},
		{Header: schema.EventHeader{Type: schema.EventOrderStatus, Seq: seq, TsEvent: 10}},
	}
}

func TestNilEngineIsPassThrough(t *testing.T) {
	var e *Engine
	assert.False(t, e.Reject())
	assert.Equal(t, schema.Quantity(7), e.FillQty(7))
	assert.Equal(t, []Batch{batch(1)}, e.Process(batch(1)))
	assert.Nil(t, e.Flush())
}

func TestValidate(t *testing.T) {
	for _, cfg := range []Config{{RejectRate: 2}, {PartialRate: -1}, {ReorderWindow: -1}, {MaxDelay: -1}} {
		_, err := NewEngine(cfg)
		assert.Error(t, err)
	}
	assert.False(t, Config{ReorderWindow: 1}.Enabled())
	assert.True(t, Config{PartialRate: 0.1}.Enabled())
}

func TestPartialFillsStayBelowQty(t *testing.T) {
	e, err := NewEngine(Config{Seed: 3, PartialRate: 1})
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got := e.FillQty(10)
		assert.GreaterOrEqual(t, got, schema.Quantity(0))
		assert.Less(t, got, schema.Quantity(10))
	}
	assert.Equal(t, schema.Quantity(1), e.FillQty(1))
}

func TestReorderKeepsBatchesWhole(t *testing.T) {
	e, err := NewEngine(Config{Seed: 11, ReorderWindow: 3})
	require.NoError(t, err)

	var out []Batch
	for seq := uint64(1); seq <= 10; seq++ {
		out = append(out, e.Process(batch(seq))...)
	}
	out = append(out, e.Flush()...)
	require.Len(t, out, 10)

	seen := make(map[uint64]bool)
	for _, b := range out {
		require.Len(t, b, 2)
		assert.Equal(t, schema.EventOrderFilled, b[0].Header.Type)
		assert.Equal(t, schema.EventOrderStatus, b[1].Header.Type)
		assert.Equal(t, b[0].Header.Seq, b[1].Header.Seq)
		seen[b[0].Header.Seq] = true
	}
	assert.Len(t, seen, 10)
}

func TestDelayStampsReceiveTime(t *testing.T) {
	e, err := NewEngine(Config{Seed: 1, MaxDelay: 100})
	require.NoError(t, err)
	out := e.Process(Batch{{Header: schema.EventHeader{TsEvent: 1000}}, bus.Event{}})
	require.Len(t, out, 1)
	assert.GreaterOrEqual(t, out[0][0].Header.TsRecv, int64(1000))
	assert.LessOrEqual(t, out[0][0].Header.TsRecv, int64(1100))
	assert.Zero(t, out[0][1].Header.TsRecv)
}
