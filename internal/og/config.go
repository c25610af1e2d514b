package og

import (
	"github.com/yanun0323/errors"

	"arb/internal/schema"
	"arb/pkg/exception"
)

const DefaultMaxRetries = 4

// Config controls the order lifecycle manager.
type Config struct {
	// MaxRetries bounds how often a leg's residual is re-driven. Negative disables retries.
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`
	// HedgeInstrument is routed through SendHedgeOrder; the other instrument through InsertOrder.
	HedgeInstrument schema.Instrument `json:"hedgeInstrument" yaml:"hedgeInstrument"`
	// Lifespan applies to taking orders that do not set one.
	Lifespan schema.Lifespan `json:"lifespan" yaml:"lifespan"`
	// DisableHedge stops fills from driving hedge orders.
	DisableHedge bool `json:"disableHedge" yaml:"disableHedge"`
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Lifespan == schema.LifespanUnknown {
		c.Lifespan = schema.LifespanImmediateOrCancel
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if !c.HedgeInstrument.IsAvailable() {
		return errors.Wrap(exception.ErrInvalidConfig, "og: unknown hedge instrument").With("instrument", uint16(c.HedgeInstrument))
	}
	switch c.Lifespan {
	case schema.LifespanUnknown, schema.LifespanGoodTillCancelled, schema.LifespanImmediateOrCancel:
	default:
		return errors.Wrap(exception.ErrInvalidConfig, "og: unknown lifespan").With("lifespan", uint16(c.Lifespan))
	}
	return nil
}
