package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/yanun0323/logs"

	"arb/internal/codec"
	"arb/internal/obs"
	"arb/internal/ops"
	"arb/internal/recorder"
	"arb/internal/schema"
	"arb/internal/sim"
	"arb/internal/state"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("paper: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	inputDir := flag.String("input-dir", "testdata/md", "Market data WAL directory")
	inputPrefix := flag.String("input-prefix", "md", "Market data WAL file prefix")
	outputDir := flag.String("output-dir", "testdata/wal_paper", "Output WAL directory (empty=no WAL)")
	outputPrefix := flag.String("output-prefix", "paper", "Output WAL file prefix")
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	flag.Parse()

	loaded, err := ops.LoadOrDefault(*configPath)
	if err != nil {
		return err
	}

	playback, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:          *inputDir,
		Prefix:       *inputPrefix,
		SkipChecksum: *noChecksum,
	})
	if err != nil {
		return err
	}

	metrics := obs.NewMetrics()
	cfg := sim.Config{
		Engine:  loaded.Engine,
		Venue:   loaded.Venue,
		Metrics: metrics,
	}
	var writer *recorder.Writer
	if *outputDir != "" {
		writer, err = recorder.NewWriter(context.Background(), recorder.Config{Dir: *outputDir, Prefix: *outputPrefix})
		if err != nil {
			return err
		}
		cfg.WAL = writer
	}
	s, err := sim.New(cfg)
	if err != nil {
		return err
	}

	var skipped int
	err = playback.Run(context.Background(), func(header schema.EventHeader, payload []byte) error {
		if header.Type != schema.EventBookUpdate {
			skipped++
			return nil
		}
		u, ok := codec.DecodeBookUpdate(payload)
		if !ok {
			skipped++
			return nil
		}
		s.Book(u, header.TsEvent)
		return nil
	})
	if err != nil {
		return err
	}
	s.Finish()

	snapshot := s.Snapshot()
	if writer != nil {
		if err := writer.Close(); err != nil {
			return err
		}
		if err := state.WriteSnapshot(filepath.Join(*outputDir, "positions.json"), snapshot); err != nil {
			return err
		}
	}

	books, reports := s.Stats()
	m := metrics.Snapshot()
	logs.Infof("paper: %d books, %d venue reports, %d skipped, positions: %v, outstanding: %d, last seq: %d",
		books, reports, skipped, s.Positions(), s.Outstanding(), snapshot.LastSeq)
	logs.Infof("paper: outcomes=%v sent=%v retried=%d rejected=%d exhausted=%d hedge_short=%d filled=%d",
		m.OutcomeCounts, m.OrdersSent, m.OrdersRetried, m.OrdersRejected, m.RetryExhausted, m.HedgeShort, m.FilledVolume)
	return nil
}
