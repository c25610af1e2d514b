package chaos

import (
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"arb/internal/bus"
	"arb/internal/schema"
	"arb/pkg/exception"
)

// Batch is every report the venue produces for one command. A batch is
// never split, so a fill always precedes its final status.
type Batch []bus.Event

// Config controls fault injection in the paper venue.
type Config struct {
	Seed int64 `json:"seed" yaml:"seed"`
	// RejectRate is the probability an insert is answered with an error.
	RejectRate float64 `json:"rejectRate" yaml:"rejectRate"`
	// PartialRate is the probability a fill is cut to a random part.
	PartialRate float64 `json:"partialRate" yaml:"partialRate"`
	// ReorderWindow shuffles report batches across that many commands.
	ReorderWindow int `json:"reorderWindow" yaml:"reorderWindow"`
	// MaxDelay pushes TsRecv later by up to this much.
	MaxDelay time.Duration `json:"maxDelay" yaml:"maxDelay"`
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.RejectRate < 0 || c.RejectRate > 1 {
		return errors.Wrap(exception.ErrInvalidConfig, "chaos: rejectRate must be between 0 and 1")
	}
	if c.PartialRate < 0 || c.PartialRate > 1 {
		return errors.Wrap(exception.ErrInvalidConfig, "chaos: partialRate must be between 0 and 1")
	}
	if c.ReorderWindow < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "chaos: reorderWindow must be >= 0")
	}
	if c.MaxDelay < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "chaos: maxDelay must be >= 0")
	}
	return nil
}

// Enabled reports whether any fault is configured.
func (c Config) Enabled() bool {
	return c.RejectRate > 0 || c.PartialRate > 0 || c.ReorderWindow > 1 || c.MaxDelay > 0
}

// Engine draws faults from a seeded source. A nil *Engine injects nothing.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	pending []Batch
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReorderWindow == 0 {
		cfg.ReorderWindow = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Reject decides whether the next insert is rejected.
func (e *Engine) Reject() bool {
	return e != nil && e.cfg.RejectRate > 0 && e.rng.Float64() < e.cfg.RejectRate
}

// FillQty returns how much of a matchable qty actually fills.
func (e *Engine) FillQty(qty schema.Quantity) schema.Quantity {
	if e == nil || qty <= 1 || e.cfg.PartialRate == 0 || e.rng.Float64() >= e.cfg.PartialRate {
		return qty
	}
	return schema.Quantity(e.rng.Int63n(int64(qty)))
}

// Process buffers a batch and returns the batches ready for delivery.
func (e *Engine) Process(b Batch) []Batch {
	if e == nil {
		return []Batch{b}
	}
	b = e.delay(b)
	if e.cfg.ReorderWindow <= 1 {
		return []Batch{b}
	}
	e.pending = append(e.pending, b)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	return []Batch{e.take()}
}

// Flush returns every buffered batch.
func (e *Engine) Flush() []Batch {
	if e == nil {
		return nil
	}
	out := make([]Batch, 0, len(e.pending))
	for len(e.pending) > 0 {
		out = append(out, e.take())
	}
	return out
}

func (e *Engine) take() Batch {
	idx := e.rng.Intn(len(e.pending))
	b := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return b
}

func (e *Engine) delay(b Batch) Batch {
	if e.cfg.MaxDelay <= 0 {
		return b
	}
	d := e.rng.Int63n(e.cfg.MaxDelay.Nanoseconds() + 1)
	for i := range b {
		if b[i].Header.TsEvent > 0 {
			b[i].Header.TsRecv = b[i].Header.TsEvent + d
		}
	}
	return b
}
