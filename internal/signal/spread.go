package signal

import "math"

// SpreadKind selects how two fair values are compared.
type SpreadKind string

const (
	SpreadDifference SpreadKind = "difference"
	SpreadLog        SpreadKind = "log"
)

// Spread is the raw price difference between the two instruments.
func Spread(price0, price1 float64) float64 {
	return price0 - price1
}

// SpreadOf computes the spread for kind. The log spread needs positive prices
// and reports false otherwise.
func SpreadOf(kind SpreadKind, price0, price1 float64) (float64, bool) {
	switch kind {
	case SpreadLog:
		if price0 <= 0 || price1 <= 0 {
			return 0, false
		}
		return math.Log(price0) - math.Log(price1), true
	default:
		return Spread(price0, price1), true
	}
}

// History tracks the range of every spread observed in the round. Only the
// running extremes are kept.
type History struct {
	count int
	min   float64
	max   float64
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Add records a spread sample.
func (h *History) Add(spread float64) {
	if h.count == 0 || spread < h.min {
		h.min = spread
	}
	if h.count == 0 || spread > h.max {
		h.max = spread
	}
	h.count++
}

// Len returns the number of samples.
func (h *History) Len() int {
	return h.count
}

// Range returns the observed min and max.
func (h *History) Range() (float64, float64) {
	return h.min, h.max
}

// Normalize min-max scales spread against the history into [0,1].
// An empty or zero-width range yields the neutral value 0.
func (h *History) Normalize(spread float64) float64 {
	if h == nil || h.count == 0 {
		return 0
	}
	return Normalize(spread, h.min, h.max)
}

// Normalize min-max scales value against [lo, hi], clamped to [0,1].
func Normalize(value, lo, hi float64) float64 {
	width := hi - lo
	if width == 0 {
		return 0
	}
	n := (value - lo) / width
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	default:
		return n
	}
}
