package obs

import (
	"sync/atomic"
	"time"

	"arb/internal/schema"
)

const (
	maxEventType = int(schema.EventCycleDecision)
	maxCmdKind   = int(schema.CommandHedge)

	// MaxOutcome bounds the cycle outcome codes the engine reports.
	MaxOutcome = 7
)

// Metrics collects lightweight counters and latency stats. A nil *Metrics is
// a valid no-op sink.
type Metrics struct {
	eventCounts   [maxEventType + 1]atomic.Uint64
	outcomeCounts [MaxOutcome + 1]atomic.Uint64
	ordersSent    [maxCmdKind + 1]atomic.Uint64

	ordersRetried  atomic.Uint64
	ordersRejected atomic.Uint64
	retryExhausted atomic.Uint64
	hedgeShort     atomic.Uint64
	overfilled     atomic.Int64
	filledVolume   atomic.Int64
	queueDrops     atomic.Uint64
	walDrops       atomic.Uint64

	eventLatency LatencyStats
	cycleLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count atomic.Uint64
	sum   atomic.Uint64
	min   atomic.Uint64
	max   atomic.Uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts    map[schema.EventType]uint64
	OutcomeCounts  map[uint16]uint64
	OrdersSent     map[schema.CommandKind]uint64
	OrdersRetried  uint64
	OrdersRejected uint64
	RetryExhausted uint64
	HedgeShort     uint64
	Overfilled     int64
	FilledVolume   int64
	QueueDrops     uint64
	WALDrops       uint64
	EventLatency   LatencySnapshot
	CycleLatency   LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts an event and tracks receive latency when both timestamps are set.
func (m *Metrics) ObserveEvent(header schema.EventHeader) {
	if m == nil {
		return
	}
	if idx := int(header.Type); idx < len(m.eventCounts) {
		m.eventCounts[idx].Add(1)
	}
	if header.TsEvent > 0 && header.TsRecv >= header.TsEvent {
		m.eventLatency.Observe(time.Duration(header.TsRecv - header.TsEvent))
	}
}

// ObserveCycle counts a decision cycle outcome and its duration.
func (m *Metrics) ObserveCycle(outcome uint16, d time.Duration) {
	if m == nil {
		return
	}
	if int(outcome) < len(m.outcomeCounts) {
		m.outcomeCounts[outcome].Add(1)
	}
	m.cycleLatency.Observe(d)
}

func (m *Metrics) IncOrderSent(kind schema.CommandKind) {
	if m == nil {
		return
	}
	if int(kind) < len(m.ordersSent) {
		m.ordersSent[kind].Add(1)
	}
}

func (m *Metrics) IncOrderRetried() {
	if m == nil {
		return
	}
	m.ordersRetried.Add(1)
}

func (m *Metrics) IncOrderRejected() {
	if m == nil {
		return
	}
	m.ordersRejected.Add(1)
}

func (m *Metrics) IncRetryExhausted() {
	if m == nil {
		return
	}
	m.retryExhausted.Add(1)
}

func (m *Metrics) IncHedgeShort() {
	if m == nil {
		return
	}
	m.hedgeShort.Add(1)
}

// AddOverfilled records lots a leg executed beyond its intended volume.
func (m *Metrics) AddOverfilled(qty schema.Quantity) {
	if m == nil {
		return
	}
	m.overfilled.Add(int64(qty))
}

// AddFilled adds to the total filled volume across both instruments.
func (m *Metrics) AddFilled(qty schema.Quantity) {
	if m == nil {
		return
	}
	m.filledVolume.Add(int64(qty))
}

// IncQueueDrop records an event the bus could not accept.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	m.queueDrops.Add(1)
}

// IncWALDrop records an event the WAL writer could not accept.
func (m *Metrics) IncWALDrop() {
	if m == nil {
		return
	}
	m.walDrops.Add(1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	events := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := m.eventCounts[i].Load(); v > 0 {
			events[schema.EventType(i)] = v
		}
	}
	outcomes := make(map[uint16]uint64)
	for i := range m.outcomeCounts {
		if v := m.outcomeCounts[i].Load(); v > 0 {
			outcomes[uint16(i)] = v
		}
	}
	sent := make(map[schema.CommandKind]uint64)
	for i := range m.ordersSent {
		if v := m.ordersSent[i].Load(); v > 0 {
			sent[schema.CommandKind(i)] = v
		}
	}
	return Snapshot{
		EventCounts:    events,
		OutcomeCounts:  outcomes,
		OrdersSent:     sent,
		OrdersRetried:  m.ordersRetried.Load(),
		OrdersRejected: m.ordersRejected.Load(),
		RetryExhausted: m.retryExhausted.Load(),
		HedgeShort:     m.hedgeShort.Load(),
		Overfilled:     m.overfilled.Load(),
		FilledVolume:   m.filledVolume.Load(),
		QueueDrops:     m.queueDrops.Load(),
		WALDrops:       m.walDrops.Load(),
		EventLatency:   m.eventLatency.Snapshot(),
		CycleLatency:   m.cycleLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	l.count.Add(1)
	l.sum.Add(nanos)

	for {
		cur := l.min.Load()
		if cur != 0 && nanos >= cur {
			break
		}
		if l.min.CompareAndSwap(cur, nanos) {
			break
		}
	}
	for {
		cur := l.max.Load()
		if nanos <= cur {
			break
		}
		if l.max.CompareAndSwap(cur, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := l.count.Load()
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := l.sum.Load()
	return LatencySnapshot{
		Count: count,
		Sum:   time.Duration(sum),
		Min:   time.Duration(l.min.Load()),
		Max:   time.Duration(l.max.Load()),
		Avg:   time.Duration(sum / count),
	}
}
