package book

import "arb/internal/schema"

// Store holds the latest snapshot per instrument and acts as the
// synchronization barrier between the two instruments.
type Store struct {
	snapshots [schema.InstrumentCount]Snapshot
	present   [schema.InstrumentCount]bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Update replaces the instrument's snapshot and reports whether both
// instruments now sit on the same sequence number.
// Unknown instruments are ignored and never open the barrier.
func (s *Store) Update(snapshot Snapshot) bool {
	if !snapshot.Instrument.IsAvailable() {
		return false
	}
	s.snapshots[snapshot.Instrument] = snapshot
	s.present[snapshot.Instrument] = true
	return s.Ready()
}

// Ready reports whether the barrier is open.
func (s *Store) Ready() bool {
	if !s.present[schema.InstrumentFuture] || !s.present[schema.InstrumentETF] {
		return false
	}
	return s.snapshots[schema.InstrumentFuture].Seq == s.snapshots[schema.InstrumentETF].Seq
}

// Snapshot returns a copy of the latest snapshot for an instrument.
func (s *Store) Snapshot(instrument schema.Instrument) (Snapshot, bool) {
	if !instrument.IsAvailable() || !s.present[instrument] {
		return Snapshot{}, false
	}
	return s.snapshots[instrument].Clone(), true
}

// Pair returns copies of both snapshots when the barrier is open.
func (s *Store) Pair() (etf Snapshot, future Snapshot, ok bool) {
	if !s.Ready() {
		return Snapshot{}, Snapshot{}, false
	}
	return s.snapshots[schema.InstrumentETF].Clone(), s.snapshots[schema.InstrumentFuture].Clone(), true
}
