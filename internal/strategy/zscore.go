package strategy

import (
	"math"

	"github.com/yanun0323/logs"

	"arb/internal/schema"
	"arb/internal/signal"
)

// ZScore trades the ETF when the log-ratio spread leaves its entry band.
type ZScore struct {
	ratio     *signal.LogRatio
	entry     float64
	orderSize schema.Quantity
}

func NewZScore(window int, entry float64, orderSize schema.Quantity) *ZScore {
	return &ZScore{
		ratio:     signal.NewLogRatio(window),
		entry:     entry,
		orderSize: orderSize,
	}
}

func (*ZScore) Name() Kind { return KindZScore }

func (s *ZScore) Decide(c *Cycle) []Intent {
	z, ok := s.ratio.Observe(c.FairFuture, c.FairETF)
	if !ok {
		return nil
	}

	var side schema.Side
	switch {
	case z.Score > s.entry:
		side = schema.SideBuy
	case z.Score < -s.entry:
		side = schema.SideSell
	default:
		return nil
	}

	volume := Leg(s.orderSize, z.Ratio)
	logs.Infof("strategy: zscore %.4f ratio %.6f std %.6f, %s ETF %d", z.Score, z.Ratio, z.StdDev, side, volume)
	return walkLadder(c, side, volume)
}

// Leg splits a gross pair size by the hedge ratio and returns the ETF share.
func Leg(size schema.Quantity, ratio float64) schema.Quantity {
	if ratio <= -1 {
		return 0
	}
	return schema.Quantity(math.Round(float64(size) / (ratio + 1)))
}
