// Package journal persists fills to Postgres off the hot path.
package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"arb/internal/schema"
)

var ErrQueueFull = errors.New("journal: queue full")

type insertFunc func(ctx context.Context, rows []FillRow) error

// Journal queues fill rows and inserts them in batches from Run.
// Append never blocks; rows that do not fit are counted and dropped.
type Journal struct {
	opt     Option
	db      *gorm.DB
	insert  insertFunc
	queue   chan FillRow
	dropped atomic.Uint64
	written atomic.Uint64
}

// Open connects, migrates the fills table and returns a journal.
func Open(option Option) (*Journal, error) {
	option = option.withDefaults()
	db, err := gorm.Open(postgres.Open(option.DSN()), option.Config)
	if err != nil {
		return nil, errors.Wrap(err, "journal: open postgres")
	}
	if err := db.AutoMigrate(&FillRow{}); err != nil {
		return nil, errors.Wrap(err, "journal: migrate")
	}
	j := newJournal(option, func(ctx context.Context, rows []FillRow) error {
		return db.WithContext(ctx).CreateInBatches(rows, len(rows)).Error
	})
	j.db = db
	return j, nil
}

func newJournal(option Option, insert insertFunc) *Journal {
	option = option.withDefaults()
	return &Journal{
		opt:    option,
		insert: insert,
		queue:  make(chan FillRow, option.QueueSize),
	}
}

// Append accepts every WAL event and keeps only fills.
func (j *Journal) Append(header schema.EventHeader, payload []byte) error {
	row, ok := RowFromEvent(header, payload)
	if !ok {
		return nil
	}
	select {
	case j.queue <- row:
		return nil
	default:
		j.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped returns how many fills were not queued.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Written returns how many fills were inserted.
func (j *Journal) Written() uint64 {
	return j.written.Load()
}

// Run inserts queued rows until ctx is done, then flushes what is left.
func (j *Journal) Run(ctx context.Context) {
	ticker := time.NewTicker(j.opt.FlushInterval)
	defer ticker.Stop()

	batch := make([]FillRow, 0, j.opt.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := j.insert(ctx, batch); err != nil {
			logs.Errorf("journal: insert %d fills, err: %+v", len(batch), err)
		} else {
			j.written.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case row := <-j.queue:
					batch = append(batch, row)
					if len(batch) == j.opt.BatchSize {
						flush(context.Background())
					}
				default:
					break drain
				}
			}
			flush(context.Background())
			return
		case row := <-j.queue:
			batch = append(batch, row)
			if len(batch) == j.opt.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// Close closes the underlying connection pool.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
