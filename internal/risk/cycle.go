package risk

import "arb/internal/schema"

// Cycle is the allocation state of one decision cycle. It snapshots the
// positions when the cycle starts and accumulates committed volume per
// instrument and side so a second candidate cannot spend the same budget.
type Cycle struct {
	cfg       Config
	limit     schema.Quantity
	positions [schema.InstrumentCount]schema.Quantity
	committed [schema.InstrumentCount][2]schema.Quantity
}

// NewCycle starts a decision cycle over the given positions.
func NewCycle(cfg Config, positions [schema.InstrumentCount]schema.Quantity) *Cycle {
	return &Cycle{
		cfg:       cfg,
		limit:     cfg.Limit(),
		positions: positions,
	}
}

// Limit returns the position limit in force for the cycle.
func (c *Cycle) Limit() schema.Quantity {
	return c.limit
}

// Halted reports whether the kill switch blocks all new volume.
func (c *Cycle) Halted() bool {
	return c.cfg.KillSwitch
}

// Position returns the position snapshot for an instrument.
func (c *Cycle) Position(instrument schema.Instrument) schema.Quantity {
	if !instrument.IsAvailable() {
		return 0
	}
	return c.positions[instrument]
}

// Committed returns the volume committed on instrument/side this cycle.
func (c *Cycle) Committed(instrument schema.Instrument, side schema.Side) schema.Quantity {
	idx, ok := sideIndex(side)
	if !instrument.IsAvailable() || !ok {
		return 0
	}
	return c.committed[instrument][idx]
}

// Tradable returns the remaining budget for trading side on instrument.
func (c *Cycle) Tradable(instrument schema.Instrument, side schema.Side) schema.Quantity {
	if c.cfg.KillSwitch || !instrument.IsAvailable() {
		return 0
	}
	return Tradable(side, c.positions[instrument], c.Committed(instrument, side), c.limit)
}

// PairTradable is the budget for taking side on instrument while hedging the
// opposite side on the paired instrument: both caps must hold.
func (c *Cycle) PairTradable(instrument schema.Instrument, side schema.Side) schema.Quantity {
	return min(c.Tradable(instrument, side), c.Tradable(instrument.Other(), side.Opposite()))
}

// Allocate clips volume to the single-instrument budget.
func (c *Cycle) Allocate(instrument schema.Instrument, side schema.Side, volume schema.Quantity) schema.Quantity {
	return c.clip(min(volume, c.Tradable(instrument, side)))
}

// AllocatePair clips volume to the pair budget.
func (c *Cycle) AllocatePair(instrument schema.Instrument, side schema.Side, volume schema.Quantity) schema.Quantity {
	return c.clip(min(volume, c.PairTradable(instrument, side)))
}

// Commit records volume as spent for instrument/side.
func (c *Cycle) Commit(instrument schema.Instrument, side schema.Side, volume schema.Quantity) {
	idx, ok := sideIndex(side)
	if !instrument.IsAvailable() || !ok || volume <= 0 {
		return
	}
	c.committed[instrument][idx] += volume
}

// CommitPair records volume on the taking leg and its hedge.
func (c *Cycle) CommitPair(instrument schema.Instrument, side schema.Side, volume schema.Quantity) {
	c.Commit(instrument, side, volume)
	c.Commit(instrument.Other(), side.Opposite(), volume)
}

func (c *Cycle) clip(volume schema.Quantity) schema.Quantity {
	if volume <= 0 {
		return 0
	}
	if c.cfg.MaxOrderQty > 0 && volume > c.cfg.MaxOrderQty {
		return c.cfg.MaxOrderQty
	}
	return volume
}

func sideIndex(side schema.Side) (int, bool) {
	switch side {
	case schema.SideBuy:
		return 0, true
	case schema.SideSell:
		return 1, true
	default:
		return 0, false
	}
}
