package obs

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/schema"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveEvent(schema.EventHeader{Type: schema.EventBookUpdate})
	m.IncOrderSent(schema.CommandInsert)
	m.AddFilled(3)
	m.AddOverfilled(1)
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ObserveEvent(schema.EventHeader{Type: schema.EventOrderFilled, TsEvent: 100, TsRecv: 150})
			m.AddFilled(2)
		}()
	}
	wg.Wait()
	m.IncOrderSent(schema.CommandHedge)
	m.AddOverfilled(3)
	m.ObserveCycle(4, 2*time.Millisecond)
	m.ObserveCycle(4, 4*time.Millisecond)
	m.ObserveCycle(200, time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, uint64(8), s.EventCounts[schema.EventOrderFilled])
	assert.Equal(t, int64(16), s.FilledVolume)
	assert.Equal(t, int64(3), s.Overfilled)
	assert.Equal(t, uint64(1), s.OrdersSent[schema.CommandHedge])
	assert.Equal(t, map[uint16]uint64{4: 2}, s.OutcomeCounts)
	assert.Equal(t, time.Duration(50), s.EventLatency.Max)
	assert.Equal(t, uint64(3), s.CycleLatency.Count)
	assert.Equal(t, time.Millisecond, s.CycleLatency.Min)
	assert.Equal(t, 4*time.Millisecond, s.CycleLatency.Max)
}

func TestSequencer(t *testing.T) {
	s := NewSequencer(41, false)
	assert.Equal(t, uint64(42), s.Next())
	assert.Equal(t, uint64(42), s.Last())
	assert.Greater(t, NewSequencer(0, true).Next(), uint64(1))
}

func TestPrometheusHandler(t *testing.T) {
	m := NewMetrics()
	m.IncOrderRetried()
	m.ObserveCycle(1, time.Millisecond)

	c := NewCollector(m, func() [schema.InstrumentCount]schema.Quantity {
		return [schema.InstrumentCount]schema.Quantity{-7, 7}
	}, func(o uint16) string {
		return "decided"
	})
	h, err := Handler(c)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "arb_orders_retried_total 1")
	assert.Contains(t, string(body), `arb_position{instrument="ETF"} 7`)
	assert.Contains(t, string(body), `arb_position{instrument="FUTURE"} -7`)
	assert.Contains(t, string(body), `arb_cycles_total{outcome="decided"} 1`)
}
