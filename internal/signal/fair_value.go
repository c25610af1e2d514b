package signal

import (
	"arb/internal/book"
	"arb/internal/schema"
)

// DefaultCoverage exceeds the combined quoting capacity of the expected
// competing participants (eight traders holding up to 100 lots each).
const DefaultCoverage schema.Quantity = 800

// Pricer estimates a fair value for one instrument.
type Pricer interface {
	FairValue(s book.Snapshot) (float64, bool)
}

// PricerKind selects a Pricer implementation from configuration.
type PricerKind string

const (
	PricerDepthWeighted PricerKind = "depth"
	PricerBestPrice     PricerKind = "best"
)

// NewPricer returns the pricer for kind, falling back to depth weighting.
func NewPricer(kind PricerKind, coverage schema.Quantity) Pricer {
	switch kind {
	case PricerBestPrice:
		return BestPrice{}
	default:
		return DepthWeighted{Coverage: coverage}
	}
}

// DepthWeighted averages the best Coverage lots of each side, weighted by volume.
type DepthWeighted struct {
	Coverage schema.Quantity
}

// FairValue divides by the volume actually covered, so thin books still
// price from what is quoted. It reports false when nothing is quoted.
func (p DepthWeighted) FairValue(s book.Snapshot) (float64, bool) {
	coverage := p.Coverage
	if coverage <= 0 {
		coverage = DefaultCoverage
	}

	askSum, askCovered := weigh(s.Asks, coverage)
	bidSum, bidCovered := weigh(s.Bids, coverage)
	covered := askCovered + bidCovered
	if covered == 0 {
		return 0, false
	}
	return (askSum + bidSum) / float64(covered), true
}

func weigh(levels []schema.Level, coverage schema.Quantity) (float64, schema.Quantity) {
	var (
		sum     float64
		covered schema.Quantity
	)
	for _, l := range levels {
		if covered >= coverage {
			break
		}
		if !l.Tradable() {
			continue
		}
		volume := min(l.Volume, coverage-covered)
		sum += float64(volume) * float64(l.Price)
		covered += volume
	}
	return sum, covered
}

// BestPrice is the top-of-book midpoint.
type BestPrice struct{}

// FairValue reports false when either side has no quote.
func (BestPrice) FairValue(s book.Snapshot) (float64, bool) {
	ask, askOK := s.BestAsk()
	bid, bidOK := s.BestBid()
	if !askOK || !bidOK {
		return 0, false
	}
	return (float64(ask.Price) + float64(bid.Price)) / 2, true
}
