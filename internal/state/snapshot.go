package state

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"arb/internal/schema"
)

var ErrSnapshotMismatch = errors.New("state: snapshot mismatch")

// Snapshot is a point-in-time copy of positions tied to a WAL sequence.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	LastSeq   uint64          `json:"lastSeq"`
	Positions []PositionEntry `json:"positions"`
}

// PositionEntry is one instrument's position.
type PositionEntry struct {
	Instrument schema.Instrument `json:"instrument"`
	Name       string            `json:"name"`
	Qty        schema.Quantity   `json:"qty"`
}

// Snapshot captures the reducer state at lastSeq.
func (r *PositionReducer) Snapshot(lastSeq uint64) Snapshot {
	entries := make([]PositionEntry, 0, schema.InstrumentCount)
	for i := range schema.Instrument(schema.InstrumentCount) {
		entries = append(entries, PositionEntry{Instrument: i, Name: i.String(), Qty: r.positions[i]})
	}
	return Snapshot{
		Timestamp: time.Now().UTC().UnixNano(),
		LastSeq:   lastSeq,
		Positions: entries,
	}
}

// Restore replaces the reducer state with the snapshot.
func (r *PositionReducer) Restore(s Snapshot) {
	r.positions = [schema.InstrumentCount]schema.Quantity{}
	for _, e := range s.Positions {
		r.Set(e.Instrument, e.Qty)
	}
}

// WriteSnapshot writes the snapshot atomically via a temp file and rename.
func WriteSnapshot(path string, s Snapshot) error {
	data, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "state: marshal snapshot")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "state: create snapshot dir").With("dir", dir)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "state: write snapshot").With("path", tmp)
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "state: read snapshot").With("path", path)
	}
	var s Snapshot
	if err := sonic.ConfigStd.Unmarshal(data, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "state: decode snapshot").With("path", path)
	}
	return s, nil
}

// CompareSnapshots returns ErrSnapshotMismatch when any position differs.
func CompareSnapshots(expected, actual Snapshot) error {
	want := NewPositionReducer()
	want.Restore(expected)
	got := NewPositionReducer()
	got.Restore(actual)
	for i := range schema.Instrument(schema.InstrumentCount) {
		if want.Position(i) != got.Position(i) {
			return errors.Wrap(ErrSnapshotMismatch, "state: compare").
				With("instrument", i.String()).
				With("expected", want.Position(i)).
				With("actual", got.Position(i))
		}
	}
	return nil
}
