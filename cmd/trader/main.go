package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"arb/internal/bus"
	"arb/internal/core"
	"arb/internal/journal"
	"arb/internal/mdg"
	"arb/internal/obs"
	"arb/internal/ops"
	"arb/internal/recorder"
	"arb/internal/schema"
	"arb/internal/state"
	"arb/internal/venue"
)

const (
	shutdownFlushTimeout = time.Second
	snapshotFileName     = "positions.json"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("trader: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON or YAML config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	walDir := flag.String("wal-dir", "", "WAL directory (overrides recorder.dir)")
	snapshotPath := flag.String("snapshot-path", "", "Position snapshot path (default: <wal-dir>/positions.json)")
	recoverEnabled := flag.Bool("recover", true, "Recover positions from snapshot + WAL on start")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address (overrides metrics.addr)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (overrides pyroscope.addr)")
	runFor := flag.Duration("duration", 0, "Stop after this long (0=until signal)")
	flag.Parse()

	loaded, err := ops.LoadOrDefault(*configPath)
	if err != nil {
		return err
	}
	if *walDir != "" {
		loaded.Recorder.Dir = *walDir
	}
	if *metricsAddr != "" {
		loaded.Metrics.Addr = *metricsAddr
	}
	if *pyroscopeAddr != "" {
		loaded.Pyroscope.Addr = *pyroscopeAddr
	}
	snapshotOut := resolveSnapshotPath(loaded, *snapshotPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *runFor > 0 {
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}
	go func() {
		select {
		case <-sys.Shutdown():
			logs.Infof("trader: shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	if loaded.Pyroscope.Addr != "" {
		profiler, err := startProfiler(loaded.Pyroscope)
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	recovered, err := recoverState(ctx, loaded, snapshotOut, *recoverEnabled)
	if err != nil {
		return err
	}

	metrics := obs.NewMetrics()
	var sinks []core.Appender
	var wal *recorder.Writer
	if loaded.Recorder.Dir != "" {
		wal, err = recorder.NewWriter(context.Background(), loaded.Recorder)
		if err != nil {
			return err
		}
		sinks = append(sinks, wal)
	}

	var fills *journal.Journal
	fillsCtx, stopFills := context.WithCancel(context.Background())
	defer stopFills()
	var fillsDone sync.WaitGroup
	if loaded.JournalEnabled {
		fills, err = journal.Open(loaded.Journal)
		if err != nil {
			return err
		}
		sinks = append(sinks, fills)
		fillsDone.Add(1)
		go func() {
			defer fillsDone.Done()
			fills.Run(fillsCtx)
		}()
	}

	queue := bus.NewQueue(loaded.QueueSize)
	paper, err := venue.New(loaded.Venue, queue)
	if err != nil {
		return err
	}
	journalSeq := core.NewJournal(core.Tee(sinks...), recovered.LastSeq, metrics)
	engine, err := core.NewEngine(loaded.Engine, core.NewRecordingVenue(paper, journalSeq),
		core.WithMetrics(metrics),
		core.WithPositions(recovered.Positions, recovered.MaxOrderID),
	)
	if err != nil {
		return err
	}
	runner := core.NewRunner(engine, journalSeq, queue, metrics)

	generator, err := mdg.NewGenerator(loaded.Market)
	if err != nil {
		return err
	}

	if loaded.Metrics.Addr != "" {
		srv, err := serveMetrics(loaded.Metrics.Addr, metrics, engine)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if *configPath != "" && *configReload > 0 {
		go ops.Watch(ctx, *configPath, *configReload, func(l ops.Loaded) {
			if err := engine.SetRisk(l.Engine.Risk); err != nil {
				logs.Errorf("trader: apply risk config, err: %+v", err)
			}
		})
	}

	var runnerDone sync.WaitGroup
	runnerDone.Add(1)
	go func() {
		defer runnerDone.Done()
		runner.Run(context.Background())
	}()

	var feeds sync.WaitGroup
	feeds.Add(3)
	go func() {
		defer feeds.Done()
		paper.Run(ctx)
	}()
	go func() {
		defer feeds.Done()
		err := generator.Run(ctx, func(u schema.BookUpdate) error {
			paper.OnBook(u)
			if err := queue.TryPublish(mdg.Event(u, time.Now().UnixNano())); err != nil {
				metrics.IncQueueDrop()
				if errors.Is(err, bus.ErrQueueClosed) {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logs.Errorf("trader: market data stopped, err: %+v", err)
			cancel()
		}
	}()
	go func() {
		defer feeds.Done()
		snapshotLoop(ctx, runner, snapshotOut, loaded.State.SnapshotInterval)
	}()

	logs.Infof("trader: started, strategy: %s, positions: %v, last seq: %d", loaded.Engine.Strategy.Kind, recovered.Positions.Positions(), recovered.LastSeq)
	<-ctx.Done()
	feeds.Wait()

	if n := runner.CancelAll(); n > 0 {
		logs.Infof("trader: cancelled %d resting orders", n)
	}
	flushVenue(paper)
	queue.Close()
	runnerDone.Wait()

	snapshot := runner.Snapshot()
	if snapshotOut != "" {
		if err := state.WriteSnapshot(snapshotOut, snapshot); err != nil {
			return err
		}
	}

	if wal != nil {
		if err := wal.Close(); err != nil {
			return err
		}
	}
	if fills != nil {
		stopFills()
		fillsDone.Wait()
		if err := fills.Close(); err != nil {
			logs.Errorf("trader: close journal, err: %+v", err)
		}
	}

	m := metrics.Snapshot()
	logs.Infof("trader: stopped, last seq: %d, positions: %v, outstanding: %d", snapshot.LastSeq, engine.Positions(), engine.Outstanding())
	logs.Infof("trader: metrics: events=%v outcomes=%v sent=%v retried=%d rejected=%d exhausted=%d hedge_short=%d filled=%d drops=%d wal_drops=%d cycle=%+v",
		m.EventCounts, m.OutcomeCounts, m.OrdersSent, m.OrdersRetried, m.OrdersRejected, m.RetryExhausted,
		m.HedgeShort, m.FilledVolume, m.QueueDrops, m.WALDrops, m.CycleLatency)
	return nil
}

func resolveSnapshotPath(loaded ops.Loaded, flagPath string) string {
	switch {
	case flagPath != "":
		return flagPath
	case loaded.State.SnapshotPath != "":
		return loaded.State.SnapshotPath
	case loaded.Recorder.Dir != "":
		return filepath.Join(loaded.Recorder.Dir, snapshotFileName)
	default:
		return ""
	}
}

func recoverState(ctx context.Context, loaded ops.Loaded, snapshotPath string, enabled bool) (state.RecoverResult, error) {
	empty := state.RecoverResult{Positions: state.NewPositionReducer()}
	if !enabled || loaded.Recorder.Dir == "" {
		return empty, nil
	}
	if err := os.MkdirAll(loaded.Recorder.Dir, 0o755); err != nil {
		return empty, errors.Wrap(err, "trader: create wal dir")
	}
	cfg := state.RecoverConfig{
		WALDir: loaded.Recorder.Dir,
		Prefix: loaded.Recorder.Prefix,
	}
	if snapshotPath != "" {
		if _, err := os.Stat(snapshotPath); err == nil {
			cfg.SnapshotPath = snapshotPath
		}
	}
	res, err := state.RecoverPositions(ctx, cfg)
	if err != nil {
		return empty, err
	}
	limit := loaded.Engine.Risk.Limit()
	if !res.Positions.WithinLimit(limit) {
		logs.Errorf("trader: recovered positions %v exceed limit %d, only reducing trades will pass", res.Positions.Positions(), limit)
	}
	logs.Infof("trader: recovered %d fills (%d orphans) up to seq %d, max order id %d", res.Fills, res.Orphans, res.LastSeq, res.MaxOrderID)
	return res, nil
}

func snapshotLoop(ctx context.Context, runner *core.Runner, path string, interval time.Duration) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := state.WriteSnapshot(path, runner.Snapshot()); err != nil {
				logs.Errorf("trader: write snapshot, err: %+v", err)
			}
		}
	}
}

// flushVenue pushes the venue's last reports onto the bus while the runner
// still drains it.
func flushVenue(paper *venue.Paper) {
	deadline := time.Now().Add(shutdownFlushTimeout)
	for paper.Pending() > 0 && time.Now().Before(deadline) {
		if paper.Flush() == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if n := paper.Pending(); n > 0 {
		logs.Errorf("trader: %d venue reports not delivered", n)
	}
}

func serveMetrics(addr string, metrics *obs.Metrics, engine *core.Engine) (*http.Server, error) {
	handler, err := obs.Handler(obs.NewCollector(metrics, engine.Positions, core.OutcomeName))
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("trader: metrics server, err: %+v", err)
		}
	}()
	logs.Infof("trader: serving metrics on %s", addr)
	return srv, nil
}

func startProfiler(cfg ops.PyroscopeConfig) (*pyroscope.Profiler, error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.App,
		ServerAddress:   cfg.Addr,
		Logger:          profilerLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "trader: start pyroscope")
	}
	return profiler, nil
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...any)  { logs.Infof("pyroscope: "+format, args...) }
func (profilerLogger) Debugf(string, ...any)             {}
func (profilerLogger) Errorf(format string, args ...any) { logs.Errorf("pyroscope: "+format, args...) }
