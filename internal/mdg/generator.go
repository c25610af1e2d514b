// Package mdg generates synthetic, correlated FUTURE/ETF order books.
package mdg

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"arb/internal/schema"
	"arb/pkg/exception"
)

const maxLevels = 64

// Config shapes the synthetic market. Prices are in ticks of the venue.
type Config struct {
	Seed      int64           `json:"seed" yaml:"seed"`
	BasePrice schema.Price    `json:"basePrice" yaml:"basePrice"`
	TickSize  schema.Price    `json:"tickSize" yaml:"tickSize"`
	Levels    int             `json:"levels" yaml:"levels"`
	Volume    schema.Quantity `json:"volume" yaml:"volume"`
	// Volatility is the standard deviation of a mid step, in ticks.
	Volatility float64 `json:"volatility" yaml:"volatility"`
	// Reversion pulls the ETF/FUTURE basis back to zero each step.
	Reversion float64 `json:"reversion" yaml:"reversion"`
	// BasisNoise is the standard deviation of a basis shock, in ticks.
	BasisNoise float64       `json:"basisNoise" yaml:"basisNoise"`
	HalfSpread int           `json:"halfSpread" yaml:"halfSpread"`
	Interval   time.Duration `json:"interval" yaml:"interval"`
}

func (c Config) withDefaults() Config {
	if c.Seed == 0 {
		c.Seed = time.Now().UTC().UnixNano()
	}
	if c.BasePrice == 0 {
		c.BasePrice = 100_000
	}
	if c.TickSize == 0 {
		c.TickSize = 100
	}
	if c.Levels == 0 {
		c.Levels = 5
	}
	if c.Volume == 0 {
		c.Volume = 50
	}
	if c.Volatility == 0 {
		c.Volatility = 1
	}
	if c.Reversion == 0 {
		c.Reversion = 0.2
	}
	if c.BasisNoise == 0 {
		c.BasisNoise = 2
	}
	if c.HalfSpread == 0 {
		c.HalfSpread = 1
	}
	if c.Interval == 0 {
		c.Interval = 10 * time.Millisecond
	}
	return c
}

// Validate checks the generator settings after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.BasePrice < 0 || c.TickSize < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "mdg: prices must be > 0")
	case c.Levels < 0 || c.Levels > maxLevels:
		return errors.Wrap(exception.ErrInvalidConfig, "mdg: levels out of range").With("levels", c.Levels)
	case c.Volume < 0 || c.HalfSpread < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "mdg: volume and halfSpread must be > 0")
	case c.Volatility < 0 || c.BasisNoise < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "mdg: volatility must be >= 0")
	case c.Reversion < 0 || c.Reversion > 1:
		return errors.Wrap(exception.ErrInvalidConfig, "mdg: reversion must be between 0 and 1")
	case c.Interval < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "mdg: interval must be >= 0")
	}
	return nil
}

// Generator walks a future mid price and an ETF basis that reverts to zero.
// It is not safe for concurrent use.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	mid   float64
	basis float64
	seq   uint64
}

// NewGenerator creates a generator with validation.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		mid: float64(cfg.BasePrice / cfg.TickSize),
	}, nil
}

// Next steps the market and returns the FUTURE and ETF books, in that
// order, sharing one sequence number.
func (g *Generator) Next() [schema.InstrumentCount]schema.BookUpdate {
	floor := float64(g.cfg.Levels + g.cfg.HalfSpread + 1)
	g.mid = math.Max(floor, g.mid+g.rng.NormFloat64()*g.cfg.Volatility)
	g.basis = (1-g.cfg.Reversion)*g.basis + g.rng.NormFloat64()*g.cfg.BasisNoise
	g.seq++

	var out [schema.InstrumentCount]schema.BookUpdate
	out[schema.InstrumentFuture] = g.book(schema.InstrumentFuture, g.mid)
	out[schema.InstrumentETF] = g.book(schema.InstrumentETF, math.Max(floor, g.mid+g.basis))
	return out
}

// Seq returns the sequence number of the last generated pair.
func (g *Generator) Seq() uint64 {
	return g.seq
}

// Interval returns the configured pause between pairs.
func (g *Generator) Interval() time.Duration {
	return g.cfg.Interval
}

// Run emits a book pair every interval until ctx is done or emit fails.
func (g *Generator) Run(ctx context.Context, emit func(schema.BookUpdate) error) error {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for _, u := range g.Next() {
			if err := emit(u); err != nil {
				return errors.Wrap(err, "mdg: emit").With("seq", u.Seq)
			}
		}
	}
}

func (g *Generator) book(inst schema.Instrument, mid float64) schema.BookUpdate {
	center := int64(math.Round(mid))
	half := int64(g.cfg.HalfSpread)
	u := schema.BookUpdate{
		Instrument: inst,
		Seq:        g.seq,
		Asks:       make([]schema.Level, g.cfg.Levels),
		Bids:       make([]schema.Level, g.cfg.Levels),
	}
	for i := range g.cfg.Levels {
		step := int64(i)
		u.Asks[i] = schema.Level{Price: schema.Price(center+half+step) * g.cfg.TickSize, Volume: g.volume()}
		u.Bids[i] = schema.Level{Price: schema.Price(center-half-step) * g.cfg.TickSize, Volume: g.volume()}
	}
	return u
}

func (g *Generator) volume() schema.Quantity {
	return max(1, g.cfg.Volume/2+schema.Quantity(g.rng.Int63n(int64(g.cfg.Volume)+1)))
}
