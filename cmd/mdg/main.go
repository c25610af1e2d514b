package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"arb/internal/bus"
	"arb/internal/mdg"
	"arb/internal/ops"
	"arb/internal/recorder"
)

const appendRetry = 100 * time.Microsecond

func main() {
	if err := run(); err != nil {
		logs.Errorf("mdg: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	walDir := flag.String("wal-dir", "testdata/md", "WAL directory for market data")
	prefix := flag.String("prefix", "md", "WAL file prefix")
	configPath := flag.String("config", "", "Path to JSON or YAML config (market section)")
	pairs := flag.Int("pairs", 1000, "Number of FUTURE/ETF book pairs to generate")
	seed := flag.Int64("seed", 0, "Random seed (overrides market.seed)")
	paced := flag.Bool("paced", false, "Wait market.interval between pairs")
	flag.Parse()

	if *pairs <= 0 {
		return errors.New("pairs must be > 0")
	}
	market := mdg.Config{}
	if *configPath != "" {
		loaded, err := ops.Load(*configPath)
		if err != nil {
			return err
		}
		market = loaded.Market
	}
	if *seed != 0 {
		market.Seed = *seed
	}
	generator, err := mdg.NewGenerator(market)
	if err != nil {
		return err
	}

	writer, err := recorder.NewWriter(context.Background(), recorder.Config{Dir: *walDir, Prefix: *prefix})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sys.Shutdown():
			cancel()
		case <-ctx.Done():
		}
	}()

	emit := func(e bus.Event) error {
		for {
			err := writer.Append(e.Header, e.Payload)
			if !errors.Is(err, recorder.ErrQueueFull) {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(appendRetry):
			}
		}
	}

	var written int
	start := time.Now()
	var genErr error
	for written < *pairs && ctx.Err() == nil {
		for _, u := range generator.Next() {
			if genErr = emit(mdg.Event(u, time.Now().UnixNano())); genErr != nil {
				break
			}
		}
		if genErr != nil {
			break
		}
		written++
		if *paced {
			time.Sleep(generator.Interval())
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if genErr != nil && !errors.Is(genErr, context.Canceled) {
		return genErr
	}
	logs.Infof("mdg: wrote %d book pairs to %s in %s, last seq: %d, dropped: %d", written, *walDir, time.Since(start), generator.Seq(), writer.Dropped())
	return nil
}
