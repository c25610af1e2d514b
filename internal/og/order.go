package og

import "arb/internal/schema"

// OrderState tracks one order through its lifecycle.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateSubmitted
	OrderStatePartiallyFilled
	OrderStateFullyFilled
	OrderStateRetried
	OrderStateRejected
	OrderStateCancelled
)

func (s OrderState) String() string {
	switch s {
	case OrderStateSubmitted:
		return "SUBMITTED"
	case OrderStatePartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStateFullyFilled:
		return "FULLY_FILLED"
	case OrderStateRetried:
		return "RETRIED"
	case OrderStateRejected:
		return "REJECTED"
	case OrderStateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Order is the manager's view of one outstanding order.
type Order struct {
	ID         uint64
	LegID      uint64
	Instrument schema.Instrument
	Side       schema.Side
	Price      schema.Price
	Level      int
	Lifespan   schema.Lifespan
	Intended   schema.Quantity
	Filled     schema.Quantity
	Retries    int
	// PairID is the taking order a hedge was sent for.
	PairID uint64
	// HedgePrice is the price the hedge was expected at when the order was decided.
	HedgePrice schema.Price
	Hedge      bool
	State      OrderState
	Cancelled  bool
}

// Remaining is the volume not yet filled.
func (o *Order) Remaining() schema.Quantity {
	return max(o.Intended-o.Filled, 0)
}

// exposed reports whether the order can still add to the position.
func (o *Order) exposed() bool {
	switch o.State {
	case OrderStateSubmitted, OrderStatePartiallyFilled, OrderStateRetried:
		return true
	default:
		return false
	}
}

// Leg is one logical taking order across its retries. The retry counter
// lives here, so retries on different instruments never share a counter.
type Leg struct {
	ID         uint64
	Instrument schema.Instrument
	Side       schema.Side
	Retries    int
	Live       uint64
	// Intended is the volume the leg was opened for; Filled sums every
	// order of the leg.
	Intended schema.Quantity
	Filled   schema.Quantity

	open int
}
