package strategy

import (
	"math"

	"arb/internal/schema"
)

// SpreadTarget holds an ETF position proportional to the normalized spread:
// long when the future trades rich, short when it trades cheap.
type SpreadTarget struct{}

func NewSpreadTarget() *SpreadTarget {
	return &SpreadTarget{}
}

func (*SpreadTarget) Name() Kind { return KindSpread }

func (*SpreadTarget) Decide(c *Cycle) []Intent {
	if c.Budget == nil || c.Spread == 0 {
		return nil
	}
	target := Target(c.Budget.Limit(), c.Normalized, c.Spread)
	delta := target - c.Budget.Position(schema.InstrumentETF)
	switch {
	case delta > 0:
		return walkLadder(c, schema.SideBuy, delta)
	case delta < 0:
		return walkLadder(c, schema.SideSell, -delta)
	default:
		return nil
	}
}

// Target is round(limit * normalized), signed by the spread.
func Target(limit schema.Quantity, normalized, spread float64) schema.Quantity {
	size := schema.Quantity(math.Round(float64(limit) * normalized))
	if spread < 0 {
		return -size
	}
	return size
}
