package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"arb/internal/book"
	"arb/internal/codec"
	"arb/internal/core"
	"arb/internal/recorder"
	"arb/internal/schema"
	"arb/internal/state"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("replay: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	dir := flag.String("dir", "testdata/wal", "WAL directory")
	prefix := flag.String("prefix", "", "WAL file prefix (default: arb)")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	printEvents := flag.Bool("print", true, "Print one line per event")
	decode := flag.Bool("decode", false, "Decode known payload types")
	snapshotPath := flag.String("verify-snapshot", "", "Verify positions rebuilt from the WAL against this snapshot")
	flag.Parse()

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:          *dir,
		Prefix:       *prefix,
		Speed:        *speed,
		SkipChecksum: *noChecksum,
	})
	if err != nil {
		return err
	}

	var expected *state.Snapshot
	if *snapshotPath != "" {
		snap, err := state.ReadSnapshot(*snapshotPath)
		if err != nil {
			return err
		}
		expected = &snap
	}

	ledger := state.NewLedger(nil, 0)
	atSnapshot := state.NewLedger(nil, 0)
	counts := make(map[schema.EventType]int)
	var index int
	err = pb.Run(context.Background(), func(header schema.EventHeader, payload []byte) error {
		index++
		counts[header.Type]++
		if *printEvents {
			fmt.Printf("%06d seq=%d type=%s source=%d ts_event=%d ts_recv=%d len=%d\n",
				index, header.Seq, header.Type, header.Source, header.TsEvent, header.TsRecv, len(payload))
			if *decode {
				printDecoded(header.Type, payload)
			}
		}
		if expected != nil && header.Seq <= expected.LastSeq {
			if err := atSnapshot.Apply(header, payload); err != nil {
				return err
			}
		}
		return ledger.Apply(header, payload)
	})
	if err != nil {
		return err
	}

	res := ledger.Result()
	logs.Infof("replay: %d events, counts: %v, last seq: %d, fills: %d, orphans: %d, positions: %v",
		index, counts, res.LastSeq, res.Fills, res.Orphans, res.Positions.Positions())

	if expected != nil {
		if expected.LastSeq > res.LastSeq {
			return errors.Wrap(state.ErrSnapshotMismatch, "snapshot is ahead of the WAL").With("snapshotSeq", expected.LastSeq).With("walSeq", res.LastSeq)
		}
		actual := atSnapshot.Result().Positions.Snapshot(expected.LastSeq)
		if err := state.CompareSnapshots(*expected, actual); err != nil {
			return err
		}
		logs.Infof("replay: snapshot verified at seq %d", expected.LastSeq)
	}

	return nil
}

func printDecoded(eventType schema.EventType, payload []byte) {
	switch eventType {
	case schema.EventBookUpdate:
		if u, ok := codec.DecodeBookUpdate(payload); ok {
			fmt.Printf("  %s\n", book.FromUpdate(u).Debug())
			return
		}
	case schema.EventOrderInsert, schema.EventOrderCancel, schema.EventHedgeOrder:
		if cmd, ok := codec.DecodeOrderCommand(payload); ok {
			fmt.Printf("  command id=%d kind=%d instrument=%s side=%s lifespan=%d price=%d qty=%d\n",
				cmd.OrderID, cmd.Kind, cmd.Instrument, cmd.Side, cmd.Lifespan, cmd.Price, cmd.Qty)
			return
		}
	case schema.EventOrderFilled, schema.EventHedgeFilled:
		if fill, ok := codec.DecodeFill(payload); ok {
			fmt.Printf("  fill id=%d price=%d qty=%d\n", fill.OrderID, fill.Price, fill.Qty)
			return
		}
	case schema.EventOrderStatus:
		if status, ok := codec.DecodeOrderStatus(payload); ok {
			fmt.Printf("  status id=%d filled=%d remaining=%d fees=%d\n", status.OrderID, status.FillQty, status.RemainingQty, status.Fees)
			return
		}
	case schema.EventOrderError:
		if e, ok := codec.DecodeOrderError(payload); ok {
			fmt.Printf("  error id=%d message=%q\n", e.OrderID, e.Message)
			return
		}
	case schema.EventCycleDecision:
		if d, ok := codec.DecodeCycleDecision(payload); ok {
			fmt.Printf("  decision seq=%d outcome=%s orders=%d fair_etf=%.2f fair_fut=%.2f spread=%.4f norm=%.4f\n",
				d.Seq, core.OutcomeName(d.Outcome), d.Orders, d.FairETF, d.FairFut, d.Spread, d.SpreadNrm)
			return
		}
	default:
		return
	}
	fmt.Printf("  <undecodable %s payload>\n", eventType)
}
