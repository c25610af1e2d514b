package scanner

import (
	"github.com/shopspring/decimal"

	"arb/internal/book"
	"arb/internal/schema"
)

// Direction names which way the ETF leg trades.
type Direction uint8

const (
	DirectionBuyETF Direction = iota + 1
	DirectionSellETF
)

// Side returns the ETF side for the direction.
func (d Direction) Side() schema.Side {
	switch d {
	case DirectionBuyETF:
		return schema.SideBuy
	case DirectionSellETF:
		return schema.SideSell
	default:
		return schema.SideUnknown
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionBuyETF:
		return "BUY_ETF"
	case DirectionSellETF:
		return "SELL_ETF"
	default:
		return "UNKNOWN"
	}
}

// Candidate is a fee-adjusted crossing between one ETF level and one FUTURE level.
// The ETF side is taken on the book; the FUTURE side is the hedge.
type Candidate struct {
	Direction  Direction
	Side       schema.Side
	Price      schema.Price
	Level      int
	HedgePrice schema.Price
	HedgeLevel int
	Volume     schema.Quantity
}

// Budget hands out tradable volume for a pair trade. risk.Cycle implements it.
type Budget interface {
	AllocatePair(instrument schema.Instrument, side schema.Side, volume schema.Quantity) schema.Quantity
	CommitPair(instrument schema.Instrument, side schema.Side, volume schema.Quantity)
}

// Scanner searches both books for profitable crossings.
type Scanner struct {
	factor decimal.Decimal
}

// New creates a scanner with the taker fee threshold, e.g. 0.0002.
func New(feeThreshold decimal.Decimal) *Scanner {
	return &Scanner{
		factor: decimal.NewFromInt(1).Add(feeThreshold),
	}
}

// Profitable reports whether buying at ask and selling at bid clears the fee.
// Sentinel prices are never profitable.
func (s *Scanner) Profitable(ask, bid schema.Price) bool {
	if ask <= 0 || bid <= 0 {
		return false
	}
	return decimal.NewFromInt(int64(ask)).Mul(s.factor).LessThan(decimal.NewFromInt(int64(bid)))
}

// Scan returns the candidates for buying ETF against FUTURE bids, then for
// selling ETF against FUTURE asks. The snapshots are not modified.
func (s *Scanner) Scan(etf, future book.Snapshot, budget Budget) []Candidate {
	var out []Candidate
	out = s.scanDirection(out, DirectionBuyETF, etf.Asks, future.Bids, budget)
	out = s.scanDirection(out, DirectionSellETF, future.Asks, etf.Bids, budget)
	return out
}

func (s *Scanner) scanDirection(out []Candidate, dir Direction, asks, bids []schema.Level, budget Budget) []Candidate {
	askLeft := remaining(asks)
	bidLeft := remaining(bids)
	side := dir.Side()

	for i := range asks {
		for j := range bids {
			if askLeft[i] == 0 {
				break
			}
			if bidLeft[j] == 0 || !s.Profitable(asks[i].Price, bids[j].Price) {
				continue
			}

			volume := min(askLeft[i], bidLeft[j])
			if budget != nil {
				volume = budget.AllocatePair(schema.InstrumentETF, side, volume)
				if volume == 0 {
					return out
				}
				budget.CommitPair(schema.InstrumentETF, side, volume)
			}
			askLeft[i] -= volume
			bidLeft[j] -= volume
			out = append(out, newCandidate(dir, asks[i], i, bids[j], j, volume))
		}
	}
	return out
}

func newCandidate(dir Direction, ask schema.Level, askIdx int, bid schema.Level, bidIdx int, volume schema.Quantity) Candidate {
	c := Candidate{Direction: dir, Side: dir.Side(), Volume: volume}
	if dir == DirectionBuyETF {
		c.Price, c.Level = ask.Price, askIdx
		c.HedgePrice, c.HedgeLevel = bid.Price, bidIdx
	} else {
		c.Price, c.Level = bid.Price, bidIdx
		c.HedgePrice, c.HedgeLevel = ask.Price, askIdx
	}
	return c
}

func remaining(levels []schema.Level) []schema.Quantity {
	out := make([]schema.Quantity, len(levels))
	for i, l := range levels {
		if l.Volume > 0 {
			out[i] = l.Volume
		}
	}
	return out
}
