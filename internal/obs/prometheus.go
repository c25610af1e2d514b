package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arb/internal/schema"
)

const namespace = "arb"

// Collector exports Metrics to Prometheus. Values are read from the atomic
// counters at scrape time.
type Collector struct {
	metrics   *Metrics
	positions func() [schema.InstrumentCount]schema.Quantity
	outcome   func(uint16) string

	events       *prometheus.Desc
	outcomes     *prometheus.Desc
	ordersSent   *prometheus.Desc
	retried      *prometheus.Desc
	rejected     *prometheus.Desc
	exhausted    *prometheus.Desc
	hedgeShort   *prometheus.Desc
	overfilled   *prometheus.Desc
	filled       *prometheus.Desc
	drops        *prometheus.Desc
	position     *prometheus.Desc
	cycleSeconds *prometheus.Desc
}

// NewCollector builds a collector. positions and outcomeName may be nil.
func NewCollector(m *Metrics, positions func() [schema.InstrumentCount]schema.Quantity, outcomeName func(uint16) string) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		metrics:      m,
		positions:    positions,
		outcome:      outcomeName,
		events:       desc("events_total", "Events handled by type.", "type"),
		outcomes:     desc("cycles_total", "Decision cycles by outcome.", "outcome"),
		ordersSent:   desc("orders_sent_total", "Order commands sent by kind.", "kind"),
		retried:      desc("orders_retried_total", "Residuals re-driven at a deeper level."),
		rejected:     desc("orders_rejected_total", "Orders rejected by the venue."),
		exhausted:    desc("retry_exhausted_total", "Legs that left residual volume after the retry bound."),
		hedgeShort:   desc("hedge_short_total", "Hedges that could not be fully placed."),
		overfilled:   desc("overfilled_volume_total", "Lots executed beyond a leg's intended volume."),
		filled:       desc("filled_volume_total", "Filled lots across both instruments."),
		drops:        desc("dropped_events_total", "Events dropped by a full queue.", "queue"),
		position:     desc("position", "Signed position per instrument.", "instrument"),
		cycleSeconds: desc("cycle_seconds", "Decision cycle duration.", "stat"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.events, c.outcomes, c.ordersSent, c.retried, c.rejected, c.exhausted,
		c.hedgeShort, c.overfilled, c.filled, c.drops, c.position, c.cycleSeconds,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.metrics.Snapshot()
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	for t, v := range s.EventCounts {
		counter(c.events, float64(v), t.String())
	}
	for o, v := range s.OutcomeCounts {
		name := "unknown"
		if c.outcome != nil {
			name = c.outcome(o)
		}
		counter(c.outcomes, float64(v), name)
	}
	for k, v := range s.OrdersSent {
		kind := "insert"
		if k == schema.CommandHedge {
			kind = "hedge"
		}
		counter(c.ordersSent, float64(v), kind)
	}
	counter(c.retried, float64(s.OrdersRetried))
	counter(c.rejected, float64(s.OrdersRejected))
	counter(c.exhausted, float64(s.RetryExhausted))
	counter(c.hedgeShort, float64(s.HedgeShort))
	counter(c.overfilled, float64(s.Overfilled))
	counter(c.filled, float64(s.FilledVolume))
	counter(c.drops, float64(s.QueueDrops), "bus")
	counter(c.drops, float64(s.WALDrops), "wal")

	if c.positions != nil {
		pos := c.positions()
		for i := range schema.Instrument(schema.InstrumentCount) {
			gauge(c.position, float64(pos[i]), i.String())
		}
	}
	gauge(c.cycleSeconds, s.CycleLatency.Avg.Seconds(), "avg")
	gauge(c.cycleSeconds, s.CycleLatency.Max.Seconds(), "max")
}

// Handler serves the collector on its own registry.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
