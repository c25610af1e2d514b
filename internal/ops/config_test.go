package ops

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/schema"
	"arb/internal/strategy"
	"arb/pkg/exception"
)

const jsonConfig = `{
  "engine": {
    "risk": {"version": 2, "positionLimit": 100, "maxOrderQty": 10},
    "strategy": {"kind": "spread", "feeThreshold": "0.0005"},
    "order": {"maxRetries": 2, "hedgeInstrument": 0, "lifespan": 2}
  },
  "market": {"seed": 5, "levels": 3},
  "venue": {"feeBps": 2, "chaos": {"partialRate": 0.1}},
  "recorder": {"dir": "/tmp/wal"},
  "journal": {"host": "db", "database": "arb"},
  "metrics": {"addr": ":9100"}
}`

const yamlConfig = `
engine:
  risk:
    version: 3
    positionLimit: 50
  strategy:
    kind: zscore
    zWindow: 20
market:
  interval: 5ms
state:
  snapshotPath: /tmp/positions.json
`

func TestParseJSON(t *testing.T) {
	loaded, err := Parse([]byte(jsonConfig), ".json")
	require.NoError(t, err)

	assert.Equal(t, uint16(2), loaded.Engine.Risk.Version)
	assert.Equal(t, schema.Quantity(100), loaded.Engine.Risk.PositionLimit)
	assert.Equal(t, strategy.KindSpread, loaded.Engine.Strategy.Kind)
	assert.Equal(t, 2, loaded.Engine.Order.MaxRetries)
	assert.Equal(t, schema.LifespanImmediateOrCancel, loaded.Engine.Order.Lifespan)
	assert.Equal(t, int64(5), loaded.Market.Seed)
	assert.Equal(t, int64(2), loaded.Venue.FeeBps)
	assert.Equal(t, "/tmp/wal", loaded.Recorder.Dir)
	assert.True(t, loaded.JournalEnabled)
	assert.Equal(t, ":9100", loaded.Metrics.Addr)
	assert.Equal(t, defaultQueueSize, loaded.QueueSize)
	assert.Equal(t, defaultSnapshotInterval, loaded.State.SnapshotInterval)
	assert.Equal(t, "arb.trader", loaded.Pyroscope.App)
}

func TestParseYAML(t *testing.T) {
	loaded, err := Parse([]byte(yamlConfig), ".YML")
	require.NoError(t, err)

	assert.Equal(t, uint16(3), loaded.Engine.Risk.Version)
	assert.Equal(t, strategy.KindZScore, loaded.Engine.Strategy.Kind)
	assert.Equal(t, 20, loaded.Engine.Strategy.ZWindow)
	assert.Equal(t, 5*time.Millisecond, loaded.Market.Interval)
	assert.Equal(t, "/tmp/positions.json", loaded.State.SnapshotPath)
	assert.False(t, loaded.JournalEnabled)
}

func TestParseRejectsBadConfig(t *testing.T) {
	testCases := []struct {
		desc string
		data string
	}{
		{desc: "negative limit", data: `{"engine": {"risk": {"positionLimit": -1}}}`},
		{desc: "unknown strategy", data: `{"engine": {"strategy": {"kind": "martingale"}}}`},
		{desc: "bad hedge instrument", data: `{"engine": {"order": {"hedgeInstrument": 9}}}`},
		{desc: "bad chaos rate", data: `{"venue": {"chaos": {"rejectRate": 3}}}`},
		{desc: "bad market", data: `{"market": {"reversion": 4}}`},
		{desc: "negative queue", data: `{"queueSize": -1}`},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Parse([]byte(tc.data), ".json")
			require.Error(t, err)
		})
	}

	_, err := Parse([]byte(`{"queueSize": -1}`), ".json")
	assert.ErrorIs(t, err, exception.ErrInvalidConfig)
	_, err = Parse([]byte(`{`), ".json")
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arb.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine": {"risk": {"version": 1}}}`), 0o644))

	var version atomic.Uint32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, path, 5*time.Millisecond, func(l Loaded) {
		version.Store(uint32(l.Engine.Risk.Version))
	})

	require.NoError(t, os.WriteFile(path, []byte(`{"engine": {"risk": {"version": 4}}}`), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool { return version.Load() == 4 }, time.Second, 5*time.Millisecond)
}

func TestLoadOrDefault(t *testing.T) {
	loaded, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, defaultQueueSize, loaded.QueueSize)
	assert.False(t, loaded.JournalEnabled)

	path := filepath.Join(t.TempDir(), "arb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queueSize: 16\n"), 0o644))
	loaded, err = LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, 16, loaded.QueueSize)
}
