package risk

import (
	"github.com/yanun0323/errors"

	"arb/internal/schema"
	"arb/pkg/exception"
)

// DefaultPositionLimit is the venue's per-instrument position cap.
const DefaultPositionLimit schema.Quantity = 100

// Config defines position limits and pre-trade guards.
type Config struct {
	Version       uint16          `json:"version" yaml:"version"`
	KillSwitch    bool            `json:"killSwitch" yaml:"killSwitch"`
	PositionLimit schema.Quantity `json:"positionLimit" yaml:"positionLimit"`
	MaxOrderQty   schema.Quantity `json:"maxOrderQty" yaml:"maxOrderQty"`
}

// Limit returns the effective position limit.
func (c Config) Limit() schema.Quantity {
	if c.PositionLimit <= 0 {
		return DefaultPositionLimit
	}
	return c.PositionLimit
}

// Validate rejects negative limits.
func (c Config) Validate() error {
	if c.PositionLimit < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "risk: position limit must be >= 0").With("positionLimit", int64(c.PositionLimit))
	}
	if c.MaxOrderQty < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "risk: max order qty must be >= 0").With("maxOrderQty", int64(c.MaxOrderQty))
	}
	return nil
}

// Tradable returns how much more can be traded on side without breaching
// limit, given the current position and volume already committed this cycle.
//
// Buys are bounded by limit - (position + committed). Sells are bounded by
// limit + position - committed, which is limit - |position| - committed for
// a short book.
func Tradable(side schema.Side, position, committed, limit schema.Quantity) schema.Quantity {
	var tradable schema.Quantity
	switch side {
	case schema.SideBuy:
		tradable = limit - (position + committed)
	case schema.SideSell:
		tradable = limit + position - committed
	default:
		return 0
	}
	if tradable < 0 {
		return 0
	}
	return tradable
}

// Allocate clips volume to the tradable budget. A zero result means the
// caller must stop emitting volume on that side for the rest of the cycle.
func Allocate(side schema.Side, volume, position, committed, limit schema.Quantity) schema.Quantity {
	tradable := Tradable(side, position, committed, limit)
	if tradable <= 0 || volume <= 0 {
		return 0
	}
	return min(volume, tradable)
}
