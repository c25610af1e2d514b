package core

import (
	"arb/internal/og"
	"arb/internal/risk"
	"arb/internal/schema"
	"arb/internal/signal"
	"arb/internal/strategy"
)

// Config is everything the engine needs at construction.
type Config struct {
	Risk     risk.Config     `json:"risk" yaml:"risk"`
	Strategy strategy.Config `json:"strategy" yaml:"strategy"`
	Order    og.Config       `json:"order" yaml:"order"`
	Signal   SignalConfig    `json:"signal" yaml:"signal"`
}

// SignalConfig selects the fair-value and spread formulas.
type SignalConfig struct {
	Pricer   signal.PricerKind `json:"pricer" yaml:"pricer"`
	Coverage schema.Quantity   `json:"coverage" yaml:"coverage"`
	Spread   signal.SpreadKind `json:"spread" yaml:"spread"`
}

func (c SignalConfig) withDefaults() SignalConfig {
	if c.Pricer == "" {
		c.Pricer = signal.PricerDepthWeighted
	}
	if c.Coverage <= 0 {
		c.Coverage = signal.DefaultCoverage
	}
	if c.Spread == "" {
		c.Spread = signal.SpreadDifference
	}
	return c
}

// Validate checks every section the engine consumes.
func (c Config) Validate() error {
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Order.Validate(); err != nil {
		return err
	}
	_, err := strategy.New(c.Strategy)
	return err
}
