package strategy

import (
	"github.com/shopspring/decimal"

	"arb/internal/scanner"
	"arb/internal/schema"
)

// Crossing takes every fee-adjusted crossing between the two books.
type Crossing struct {
	scanner *scanner.Scanner
}

// NewCrossing creates a crossing strategy with the given fee threshold.
func NewCrossing(fee decimal.Decimal) *Crossing {
	return &Crossing{scanner: scanner.New(fee)}
}

func (*Crossing) Name() Kind { return KindCrossing }

func (s *Crossing) Decide(c *Cycle) []Intent {
	var budget scanner.Budget
	if c.Budget != nil {
		budget = c.Budget
	}
	candidates := s.scanner.Scan(c.ETF, c.Future, budget)
	out := make([]Intent, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, Intent{
			Instrument: schema.InstrumentETF,
			Side:       cand.Side,
			Price:      cand.Price,
			Level:      cand.Level,
			Volume:     cand.Volume,
			HedgePrice: cand.HedgePrice,
		})
	}
	return out
}
