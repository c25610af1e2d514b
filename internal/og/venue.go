package og

import (
	"github.com/yanun0323/logs"

	"arb/internal/book"
	"arb/internal/schema"
)

// Venue receives outbound order commands. Calls are fire-and-forget; an error
// means the command never left and is handled like a rejection.
type Venue interface {
	InsertOrder(cmd schema.OrderCommand) error
	CancelOrder(orderID uint64) error
	SendHedgeOrder(cmd schema.OrderCommand) error
}

// Books gives the manager the current ladders for hedges and retries.
type Books interface {
	Snapshot(instrument schema.Instrument) (book.Snapshot, bool)
}

// Reporter surfaces non-fatal execution problems.
type Reporter interface {
	OrderRejected(order Order, reason string)
	RetryExhausted(order Order, residual schema.Quantity, cause error)
	HedgeShort(instrument schema.Instrument, side schema.Side, missing schema.Quantity, cause error)
	Overfilled(order Order, excess schema.Quantity)
}

// LogReporter writes reports to the process log.
type LogReporter struct{}

func (LogReporter) OrderRejected(o Order, reason string) {
	logs.Errorf("og: order %d rejected, instrument: %s, side: %s, qty: %d, reason: %s", o.ID, o.Instrument, o.Side, o.Intended, reason)
}

func (LogReporter) RetryExhausted(o Order, residual schema.Quantity, cause error) {
	logs.Errorf("og: leg %d left %d unexecuted after %d retries, err: %+v", o.LegID, residual, o.Retries, cause)
}

func (LogReporter) HedgeShort(instrument schema.Instrument, side schema.Side, missing schema.Quantity, cause error) {
	logs.Errorf("og: hedge %s %s short by %d, err: %+v", side, instrument, missing, cause)
}

func (LogReporter) Overfilled(o Order, excess schema.Quantity) {
	logs.Errorf("og: leg %d overfilled by %d on order %d, %s %s", o.LegID, excess, o.ID, o.Side, o.Instrument)
}
