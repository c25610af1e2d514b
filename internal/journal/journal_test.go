package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb/internal/codec"
	"arb/internal/schema"
)

func TestDSN(t *testing.T) {
	testCases := []struct {
		desc string
		opt  Option
		want string
	}{
		{
			desc: "defaults",
			opt:  Option{},
			want: "postgres://localhost:5432?sslmode=disable",
		},
		{
			desc: "full",
			opt: Option{
				Host:     "db",
				Port:     6543,
				User:     "arb",
				Password: "secret",
				Database: "fills",
				SSLMode:  "require",
				Params:   map[string]string{"application_name": "trader", "": "skip"},
			},
			want: "postgres://arb:secret@db:6543/fills?application_name=trader&sslmode=require",
		},
		{
			desc: "conn string wins",
			opt:  Option{Host: "db", ConnString: "postgres://x"},
			want: "postgres://x",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.opt.DSN())
		})
	}
	assert.False(t, Option{}.Enabled())
	assert.True(t, Option{Host: "db"}.Enabled())
}

func fillEvent(seq uint64, eventType schema.EventType, orderID uint64) (schema.EventHeader, []byte) {
	header := schema.NewHeader(eventType, schema.SourceVenue, seq, 1_700_000_000_000_000_000, 0)
	return header, codec.EncodeFill(nil, schema.Fill{OrderID: orderID, Price: 100, Qty: 3})
}

func TestRowFromEvent(t *testing.T) {
	header, payload := fillEvent(9, schema.EventHedgeFilled, 4)
	row, ok := RowFromEvent(header, payload)
	require.True(t, ok)
	assert.Equal(t, uint64(9), row.Seq)
	assert.Equal(t, uint64(4), row.OrderID)
	assert.True(t, row.Hedge)
	assert.Equal(t, int64(100), row.Price)
	assert.Equal(t, int64(3), row.Qty)
	assert.Equal(t, time.Unix(0, 1_700_000_000_000_000_000).UTC(), row.EventTime)
	assert.Equal(t, "fills", row.TableName())

	_, ok = RowFromEvent(schema.NewHeader(schema.EventOrderStatus, schema.SourceVenue, 1, 0, 0), payload)
	assert.False(t, ok)
	_, ok = RowFromEvent(header, payload[:3])
	assert.False(t, ok)
}

type sink struct {
	mu    sync.Mutex
	rows  []FillRow
	sizes []int
}

func (s *sink) insert(_ context.Context, rows []FillRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
	s.sizes = append(s.sizes, len(rows))
	return nil
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func TestRunBatchesAndFlushesOnShutdown(t *testing.T) {
	s := &sink{}
	j := newJournal(Option{BatchSize: 2, FlushInterval: time.Hour}, s.insert)

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, j.Append(fillEvent(seq, schema.EventOrderFilled, seq)))
	}
	require.NoError(t, j.Append(schema.NewHeader(schema.EventBookUpdate, schema.SourceMarketData, 6, 0, 0), nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return s.len() >= 4 }, time.Second, time.Millisecond)
	cancel()
	<-done

	require.Len(t, s.rows, 5)
	for i, row := range s.rows {
		assert.Equal(t, uint64(i+1), row.Seq)
	}
	assert.Equal(t, uint64(5), j.Written())
	assert.Zero(t, j.Dropped())
}

func TestAppendDropsWhenFull(t *testing.T) {
	j := newJournal(Option{QueueSize: 1}, (&sink{}).insert)
	require.NoError(t, j.Append(fillEvent(1, schema.EventOrderFilled, 1)))
	assert.ErrorIs(t, j.Append(fillEvent(2, schema.EventOrderFilled, 2)), ErrQueueFull)
	assert.Equal(t, uint64(1), j.Dropped())
	assert.NoError(t, (*Journal)(nil).Close())
}
