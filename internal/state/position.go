package state

import "arb/internal/schema"

// PositionReducer holds the signed inventory per instrument. Only confirmed
// fills move it.
type PositionReducer struct {
	positions [schema.InstrumentCount]schema.Quantity
}

// NewPositionReducer creates a flat book.
func NewPositionReducer() *PositionReducer {
	return &PositionReducer{}
}

// ApplyFill moves the instrument's position by qty in the direction of side
// and returns the new position.
func (r *PositionReducer) ApplyFill(instrument schema.Instrument, side schema.Side, qty schema.Quantity) schema.Quantity {
	if !instrument.IsAvailable() || qty <= 0 {
		return r.Position(instrument)
	}
	r.positions[instrument] += side.Sign() * qty
	return r.positions[instrument]
}

// Position returns the signed position for an instrument.
func (r *PositionReducer) Position(instrument schema.Instrument) schema.Quantity {
	if !instrument.IsAvailable() {
		return 0
	}
	return r.positions[instrument]
}

// Positions returns a copy of all positions.
func (r *PositionReducer) Positions() [schema.InstrumentCount]schema.Quantity {
	return r.positions
}

// Set overwrites a position, used when loading a snapshot.
func (r *PositionReducer) Set(instrument schema.Instrument, qty schema.Quantity) {
	if instrument.IsAvailable() {
		r.positions[instrument] = qty
	}
}

// WithinLimit reports whether every |position| is at most limit.
func (r *PositionReducer) WithinLimit(limit schema.Quantity) bool {
	for _, p := range r.positions {
		if p > limit || p < -limit {
			return false
		}
	}
	return true
}
