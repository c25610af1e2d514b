package recorder

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"arb/internal/schema"
)

var (
	ErrQueueFull = errors.New("recorder: queue full")
	ErrClosed    = errors.New("recorder: writer closed")
)

// Writer appends events to rotating WAL segments. Append never blocks the
// caller; a single goroutine owns the files.
type Writer struct {
	cfg     Config
	queue   chan frameRequest
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
	mu      sync.Mutex
	err     error

	seg      *segment
	segIndex uint64
	scratch  [frameHeaderSize]byte
}

type frameRequest struct {
	header  schema.EventHeader
	payload []byte
}

type segment struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

// NewWriter creates the WAL directory and starts the writer goroutine.
// The goroutine exits when ctx is cancelled or Close is called.
func NewWriter(ctx context.Context, cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "recorder: create dir").With("dir", cfg.Dir)
	}
	w := &Writer{
		cfg:      cfg,
		queue:    make(chan frameRequest, cfg.QueueSize),
		done:     make(chan struct{}),
		segIndex: lastSegmentIndex(cfg.Dir, cfg.Prefix),
	}
	go w.loop(ctx)
	return w, nil
}

// Append enqueues one event. The payload is copied.
func (w *Writer) Append(header schema.EventHeader, payload []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}
	if err := w.Err(); err != nil {
		return err
	}
	if len(payload) > maxPayloadLen {
		return errors.Wrap(ErrPayloadTooLarge, "recorder: append").With("len", len(payload))
	}
	if header.Version == 0 {
		header.Version = schema.SchemaVersion
	}
	req := frameRequest{header: header, payload: append([]byte(nil), payload...)}
	select {
	case w.queue <- req:
		return nil
	default:
		w.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped returns how many events were rejected because the queue was full.
func (w *Writer) Dropped() uint64 {
	return w.dropped.Load()
}

// Close drains the queue, flushes and closes the current segment.
func (w *Writer) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		close(w.queue)
	}
	<-w.done
	return w.Err()
}

// Err returns the first write error.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Writer) fail(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *Writer) loop(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if err := w.closeSegment(); err != nil {
			w.fail(err)
		}
	}()

	var flush <-chan time.Time
	if w.cfg.FlushInterval > 0 {
		ticker := time.NewTicker(w.cfg.FlushInterval)
		defer ticker.Stop()
		flush = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case req, ok := <-w.queue:
			if !ok {
				return
			}
			if err := w.write(req); err != nil {
				logs.Errorf("recorder: write frame, err: %+v", err)
				w.fail(err)
				return
			}
		case <-flush:
			if w.seg != nil {
				if err := w.seg.buf.Flush(); err != nil {
					w.fail(errors.Wrap(err, "recorder: flush"))
					return
				}
			}
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case req, ok := <-w.queue:
			if !ok {
				return
			}
			if err := w.write(req); err != nil {
				w.fail(err)
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) write(req frameRequest) error {
	size := int64(frameOverhead + len(req.payload))
	if w.needsRotation(size) {
		if err := w.closeSegment(); err != nil {
			return err
		}
		if err := w.openSegment(); err != nil {
			return err
		}
	}

	putFrameHeader(w.scratch[:], req.header, len(req.payload))
	var trailer [frameTrailerSize]byte
	binary.LittleEndian.PutUint32(trailer[:], frameChecksum(w.scratch[:], req.payload))

	for _, part := range [][]byte{w.scratch[:], req.payload, trailer[:]} {
		if _, err := w.seg.buf.Write(part); err != nil {
			return errors.Wrap(err, "recorder: write")
		}
	}
	w.seg.size += size
	return nil
}

func (w *Writer) needsRotation(next int64) bool {
	if w.seg == nil {
		return true
	}
	if w.seg.size > 0 && w.seg.size+next > w.cfg.SegmentBytes {
		return true
	}
	return w.cfg.SegmentAge > 0 && time.Since(w.seg.openedAt) >= w.cfg.SegmentAge
}

func (w *Writer) openSegment() error {
	w.segIndex++
	path := filepath.Join(w.cfg.Dir, segmentName(w.cfg.Prefix, w.segIndex))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return errors.Wrap(err, "recorder: open segment").With("path", path)
	}
	w.seg = &segment{
		file:     file,
		buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
		openedAt: time.Now(),
	}
	logs.Infof("recorder: opened segment %s", path)
	return nil
}

func (w *Writer) closeSegment() error {
	seg := w.seg
	if seg == nil {
		return nil
	}
	w.seg = nil
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return errors.Wrap(err, "recorder: flush segment")
	}
	if w.cfg.SyncOnRotate {
		if err := seg.file.Sync(); err != nil {
			_ = seg.file.Close()
			return errors.Wrap(err, "recorder: sync segment")
		}
	}
	return seg.file.Close()
}

func segmentName(prefix string, index uint64) string {
	return fmt.Sprintf("%s-%08d%s", prefix, index, segmentSuffix)
}
