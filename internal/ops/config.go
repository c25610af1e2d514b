package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gopkg.in/yaml.v3"

	"arb/internal/core"
	"arb/internal/journal"
	"arb/internal/mdg"
	"arb/internal/recorder"
	"arb/internal/venue"
	"arb/pkg/exception"
)

const (
	defaultQueueSize        = 4096
	defaultSnapshotInterval = 10 * time.Second
)

// FileConfig mirrors the config file layout. JSON and YAML share the keys.
type FileConfig struct {
	Engine    core.Config     `json:"engine" yaml:"engine"`
	Market    mdg.Config      `json:"market" yaml:"market"`
	Venue     venue.Config    `json:"venue" yaml:"venue"`
	Recorder  recorder.Config `json:"recorder" yaml:"recorder"`
	Journal   journal.Option  `json:"journal" yaml:"journal"`
	State     StateConfig     `json:"state" yaml:"state"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Pyroscope PyroscopeConfig `json:"pyroscope" yaml:"pyroscope"`
	QueueSize int             `json:"queueSize" yaml:"queueSize"`
}

// StateConfig locates the position snapshot.
type StateConfig struct {
	SnapshotPath     string        `json:"snapshotPath" yaml:"snapshotPath"`
	SnapshotInterval time.Duration `json:"snapshotInterval" yaml:"snapshotInterval"`
}

// MetricsConfig enables the prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// PyroscopeConfig enables continuous profiling when Addr is set.
type PyroscopeConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	App  string `json:"app" yaml:"app"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	FileConfig

	// JournalEnabled is true when a Postgres fill journal is configured.
	JournalEnabled bool
}

// Load reads a JSON or YAML config file, chosen by extension.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "ops: read config").With("path", path)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Loaded{}, errors.Wrap(err, "ops: parse config").With("path", path)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or resolves an empty config when path is empty.
func LoadOrDefault(path string) (Loaded, error) {
	if path == "" {
		return resolve(FileConfig{})
	}
	return Load(path)
}

// Parse decodes and validates raw config bytes. ext selects the format:
// ".yaml" and ".yml" are YAML, anything else is JSON.
func Parse(data []byte, ext string) (Loaded, error) {
	var cfg FileConfig
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, errors.Wrap(err, "ops: yaml")
		}
	default:
		if err := sonic.ConfigStd.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, errors.Wrap(err, "ops: json")
		}
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.State.SnapshotInterval == 0 {
		cfg.State.SnapshotInterval = defaultSnapshotInterval
	}
	if cfg.Pyroscope.App == "" {
		cfg.Pyroscope.App = "arb.trader"
	}

	switch {
	case cfg.QueueSize < 0:
		return Loaded{}, errors.Wrap(exception.ErrInvalidConfig, "ops: queueSize must be > 0")
	case cfg.State.SnapshotInterval < 0:
		return Loaded{}, errors.Wrap(exception.ErrInvalidConfig, "ops: snapshotInterval must be >= 0")
	}
	if err := cfg.Engine.Validate(); err != nil {
		return Loaded{}, err
	}
	if err := cfg.Market.Validate(); err != nil {
		return Loaded{}, err
	}
	if err := cfg.Venue.Validate(); err != nil {
		return Loaded{}, err
	}
	if cfg.Recorder.Dir != "" {
		if err := recorder.ValidateConfig(cfg.Recorder); err != nil {
			return Loaded{}, err
		}
	}
	return Loaded{
		FileConfig:     cfg,
		JournalEnabled: cfg.Journal.Enabled(),
	}, nil
}

// Watch polls path every interval and calls update whenever the file
// changes and still loads cleanly, including once on the first tick.
// Bad edits are logged and skipped.
func Watch(ctx context.Context, path string, interval time.Duration, update func(Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Errorf("ops: stat config %s, err: %+v", path, err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			loaded, err := Load(path)
			if err != nil {
				logs.Errorf("ops: reload config %s, err: %+v", path, err)
				continue
			}
			update(loaded)
			logs.Infof("ops: config reloaded: %s", path)
		}
	}
}
