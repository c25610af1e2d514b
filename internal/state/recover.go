package state

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"arb/internal/codec"
	"arb/internal/recorder"
	"arb/internal/schema"
	"arb/pkg/exception"
)

// RecoverConfig controls snapshot + WAL recovery.
type RecoverConfig struct {
	WALDir       string
	Prefix       string
	SnapshotPath string
	SkipChecksum bool
}

// RecoverResult is the rebuilt position state.
type RecoverResult struct {
	Positions *PositionReducer
	LastSeq   uint64
	// MaxOrderID is the highest order id seen in a command.
	MaxOrderID uint64
	Fills      int
	Orphans    int
}

// orderRef is what a fill needs to know about the order it belongs to.
type orderRef struct {
	instrument schema.Instrument
	side       schema.Side
}

// Ledger maps order ids to instrument and side so fills can be applied.
// Commands are always registered; fills at or below the snapshot seq are skipped.
type Ledger struct {
	positions *PositionReducer
	orders    map[uint64]orderRef
	afterSeq  uint64
	lastSeq   uint64
	maxID     uint64
	fills     int
	orphans   int
}

// NewLedger starts a ledger on top of positions, ignoring fills with seq <= afterSeq.
func NewLedger(positions *PositionReducer, afterSeq uint64) *Ledger {
	if positions == nil {
		positions = NewPositionReducer()
	}
	return &Ledger{
		positions: positions,
		orders:    make(map[uint64]orderRef),
		afterSeq:  afterSeq,
		lastSeq:   afterSeq,
	}
}

// Apply consumes one WAL event.
func (l *Ledger) Apply(header schema.EventHeader, payload []byte) error {
	if header.Seq > l.lastSeq {
		l.lastSeq = header.Seq
	}
	switch header.Type {
	case schema.EventOrderInsert, schema.EventHedgeOrder:
		cmd, ok := codec.DecodeOrderCommand(payload)
		if !ok {
			return errors.Wrap(exception.ErrDecodePayload, "ledger: order command").With("seq", header.Seq)
		}
		l.orders[cmd.OrderID] = orderRef{instrument: cmd.Instrument, side: cmd.Side}
		l.maxID = max(l.maxID, cmd.OrderID)
	case schema.EventOrderFilled, schema.EventHedgeFilled:
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			return errors.Wrap(exception.ErrDecodePayload, "ledger: fill").With("seq", header.Seq)
		}
		if header.Seq <= l.afterSeq {
			return nil
		}
		ref, ok := l.orders[fill.OrderID]
		if !ok {
			l.orphans++
			logs.Errorf("ledger: fill for unknown order %d at seq %d", fill.OrderID, header.Seq)
			return nil
		}
		l.positions.ApplyFill(ref.instrument, ref.side, fill.Qty)
		l.fills++
	}
	return nil
}

// Result returns the ledger state.
func (l *Ledger) Result() RecoverResult {
	return RecoverResult{
		Positions:  l.positions,
		LastSeq:    l.lastSeq,
		MaxOrderID: l.maxID,
		Fills:      l.fills,
		Orphans:    l.orphans,
	}
}

// RecoverPositions loads an optional snapshot and replays the WAL on top of it.
func RecoverPositions(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.WALDir == "" {
		return RecoverResult{}, errors.Wrap(exception.ErrInvalidConfig, "recover: wal dir is empty")
	}

	positions := NewPositionReducer()
	var afterSeq uint64
	if cfg.SnapshotPath != "" {
		snap, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		positions.Restore(snap)
		afterSeq = snap.LastSeq
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:          cfg.WALDir,
		Prefix:       cfg.Prefix,
		SkipChecksum: cfg.SkipChecksum,
	})
	if err != nil {
		return RecoverResult{}, err
	}

	ledger := NewLedger(positions, afterSeq)
	if err := pb.Run(ctx, ledger.Apply); err != nil {
		return RecoverResult{}, errors.Wrap(err, "recover: replay")
	}
	return ledger.Result(), nil
}
