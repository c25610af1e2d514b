package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"arb/internal/mdg"
	"arb/internal/obs"
	"arb/internal/ops"
	"arb/internal/recorder"
	"arb/internal/schema"
	"arb/internal/sim"
	"arb/internal/state"
)

var errInvariant = errors.New("chaos: invariant violated")

func main() {
	if err := run(); err != nil {
		logs.Errorf("chaos: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	pairs := flag.Int("pairs", 10_000, "Number of FUTURE/ETF book pairs to run")
	seed := flag.Int64("seed", 0, "Seed for market and faults (0=now)")
	rejectRate := flag.Float64("reject-rate", 0.02, "Insert reject probability [0-1]")
	partialRate := flag.Float64("partial-rate", 0.3, "Partial fill probability [0-1]")
	reorderWindow := flag.Int("reorder-window", 4, "Report batches shuffled together (>=1)")
	walDir := flag.String("wal-dir", "", "WAL directory (default: a temp dir)")
	flag.Parse()

	if *pairs <= 0 {
		return errors.New("pairs must be > 0")
	}
	loaded, err := ops.LoadOrDefault(*configPath)
	if err != nil {
		return err
	}
	if *seed == 0 {
		*seed = time.Now().UTC().UnixNano()
	}
	loaded.Market.Seed = *seed
	loaded.Venue.Chaos.Seed = *seed + 1
	loaded.Venue.Chaos.RejectRate = *rejectRate
	loaded.Venue.Chaos.PartialRate = *partialRate
	loaded.Venue.Chaos.ReorderWindow = *reorderWindow

	dir := *walDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "arb-chaos-")
		if err != nil {
			return errors.Wrap(err, "chaos: temp dir")
		}
		defer os.RemoveAll(dir)
	}
	writer, err := recorder.NewWriter(context.Background(), recorder.Config{Dir: dir, QueueSize: 1 << 16})
	if err != nil {
		return err
	}

	metrics := obs.NewMetrics()
	s, err := sim.New(sim.Config{
		Engine:  loaded.Engine,
		Venue:   loaded.Venue,
		WAL:     writer,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}
	generator, err := mdg.NewGenerator(loaded.Market)
	if err != nil {
		return err
	}

	limit := loaded.Engine.Risk.Limit()
	for i := range *pairs {
		for _, u := range generator.Next() {
			s.Book(u, int64(i+1))
		}
		for inst, qty := range s.Positions() {
			if qty > limit || qty < -limit {
				return errors.Wrap(errInvariant, "position over limit").
					With("instrument", schema.Instrument(inst).String()).
					With("qty", int64(qty)).
					With("pair", i)
			}
		}
	}
	s.Finish()
	if err := writer.Close(); err != nil {
		return err
	}

	live := s.Snapshot()
	res, err := state.RecoverPositions(context.Background(), state.RecoverConfig{WALDir: dir})
	if err != nil {
		return err
	}
	if err := state.CompareSnapshots(live, res.Positions.Snapshot(res.LastSeq)); err != nil {
		return errors.Wrap(errInvariant, "recovered positions differ").With("cause", err.Error())
	}
	if res.LastSeq != live.LastSeq {
		return errors.Wrap(errInvariant, "recovered seq differs").With("live", live.LastSeq).With("wal", res.LastSeq)
	}

	books, reports := s.Stats()
	m := metrics.Snapshot()
	logs.Infof("chaos: seed %d, %d books, %d reports, positions: %v, outstanding: %d, wal drops: %d",
		*seed, books, reports, s.Positions(), s.Outstanding(), m.WALDrops)
	logs.Infof("chaos: sent=%v retried=%d rejected=%d exhausted=%d hedge_short=%d filled=%d",
		m.OrdersSent, m.OrdersRetried, m.OrdersRejected, m.RetryExhausted, m.HedgeShort, m.FilledVolume)
	return nil
}
