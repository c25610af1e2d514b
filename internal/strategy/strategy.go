package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"arb/internal/book"
	"arb/internal/risk"
	"arb/internal/schema"
	"arb/internal/signal"
	"arb/pkg/exception"
)

// Kind selects a Strategy implementation.
type Kind string

const (
	KindCrossing Kind = "crossing"
	KindSpread   Kind = "spread"
	KindZScore   Kind = "zscore"
)

// Config carries every strategy's parameters; each kind reads its own.
type Config struct {
	Kind Kind `json:"kind" yaml:"kind"`
	// FeeThreshold is the taker fee used by the crossing test, e.g. "0.0002".
	FeeThreshold string `json:"feeThreshold" yaml:"feeThreshold"`
	// ZWindow is the log-ratio lookback.
	ZWindow int `json:"zWindow" yaml:"zWindow"`
	// ZEntry is the |z| beyond which the zscore strategy trades.
	ZEntry float64 `json:"zEntry" yaml:"zEntry"`
	// OrderSize is the gross pair size the zscore strategy splits by hedge ratio.
	OrderSize schema.Quantity `json:"orderSize" yaml:"orderSize"`
}

const (
	DefaultFeeThreshold = "0.0002"
	DefaultZEntry       = 2.0
	DefaultOrderSize    = 20
)

func (c Config) withDefaults() Config {
	if c.Kind == "" {
		c.Kind = KindCrossing
	}
	if c.FeeThreshold == "" {
		c.FeeThreshold = DefaultFeeThreshold
	}
	if c.ZWindow <= 0 {
		c.ZWindow = signal.DefaultWindow
	}
	if c.ZEntry <= 0 {
		c.ZEntry = DefaultZEntry
	}
	if c.OrderSize <= 0 {
		c.OrderSize = DefaultOrderSize
	}
	return c
}

// Fee parses the fee threshold.
func (c Config) Fee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.withDefaults().FeeThreshold)
	if err != nil {
		return decimal.Zero, errors.Wrap(exception.ErrInvalidConfig, "strategy: fee threshold").With("value", c.FeeThreshold)
	}
	if fee.IsNegative() {
		return decimal.Zero, errors.Wrap(exception.ErrInvalidConfig, "strategy: negative fee threshold").With("value", c.FeeThreshold)
	}
	return fee, nil
}

// Cycle is everything a strategy sees for one synchronized book pair.
type Cycle struct {
	ETF    book.Snapshot
	Future book.Snapshot

	FairETF    float64
	FairFuture float64
	// Spread is FairFuture - FairETF; Normalized is its min-max scaled value.
	Spread     float64
	Normalized float64

	Budget *risk.Cycle
}

// Intent is one taking order a strategy wants on the ETF book.
type Intent struct {
	Instrument schema.Instrument
	Side       schema.Side
	Price      schema.Price
	Level      int
	Volume     schema.Quantity
	// HedgePrice is the price the hedge is expected at; zero when unknown.
	HedgePrice schema.Price
}

// Strategy turns a cycle into order intents. Intents must already be
// committed against cycle.Budget.
type Strategy interface {
	Name() Kind
	Decide(c *Cycle) []Intent
}

// New builds the strategy selected by cfg.Kind.
func New(cfg Config) (Strategy, error) {
	cfg = cfg.withDefaults()
	switch cfg.Kind {
	case KindCrossing:
		fee, err := cfg.Fee()
		if err != nil {
			return nil, err
		}
		return NewCrossing(fee), nil
	case KindSpread:
		return NewSpreadTarget(), nil
	case KindZScore:
		return NewZScore(cfg.ZWindow, cfg.ZEntry, cfg.OrderSize), nil
	default:
		return nil, errors.Wrap(exception.ErrInvalidConfig, "strategy: unknown kind").With("kind", string(cfg.Kind))
	}
}

// walkLadder splits volume across the ETF ladder for side, one intent per
// level, best level first. It commits each slice against the pair budget.
func walkLadder(c *Cycle, side schema.Side, volume schema.Quantity) []Intent {
	var out []Intent
	for idx, level := range c.ETF.Ladder(side) {
		if volume <= 0 {
			break
		}
		if !level.Tradable() {
			continue
		}
		v := min(volume, level.Volume)
		if c.Budget != nil {
			v = c.Budget.AllocatePair(schema.InstrumentETF, side, v)
			if v == 0 {
				break
			}
			c.Budget.CommitPair(schema.InstrumentETF, side, v)
		}
		out = append(out, Intent{
			Instrument: schema.InstrumentETF,
			Side:       side,
			Price:      level.Price,
			Level:      idx,
			Volume:     v,
		})
		volume -= v
	}
	return out
}
