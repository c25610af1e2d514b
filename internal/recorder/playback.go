package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"arb/internal/schema"
	"arb/pkg/exception"
)

// Handler receives replayed events in WAL order.
type Handler func(header schema.EventHeader, payload []byte) error

// Sleeper paces playback. Tests swap it for a no-op.
type Sleeper func(ctx context.Context, d time.Duration) error

// PlaybackConfig controls WAL playback.
type PlaybackConfig struct {
	Dir    string
	Prefix string
	// Speed scales event-time gaps; 0 replays as fast as possible.
	Speed        float64
	SkipChecksum bool
}

// Playback replays every segment of a WAL directory in index order.
type Playback struct {
	cfg   PlaybackConfig
	sleep Sleeper
}

// NewPlayback validates the config.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Dir == "" {
		return nil, errors.Wrap(exception.ErrInvalidConfig, "playback: dir is empty")
	}
	if cfg.Speed < 0 {
		return nil, errors.Wrap(exception.ErrInvalidConfig, "playback: speed must be >= 0")
	}
	return &Playback{cfg: cfg, sleep: sleepCtx}, nil
}

// WithSleeper swaps the pacing function.
func (p *Playback) WithSleeper(s Sleeper) *Playback {
	if s != nil {
		p.sleep = s
	}
	return p
}

// Segments lists the segment paths in replay order.
func (p *Playback) Segments() ([]string, error) {
	return listSegments(p.cfg.Dir, p.cfg.Prefix)
}

// Run replays all segments. A torn frame at the end of the last segment is
// treated as the end of the log.
func (p *Playback) Run(ctx context.Context, fn Handler) error {
	if fn == nil {
		return errors.Wrap(exception.ErrNilInstance, "playback: handler")
	}
	paths, err := p.Segments()
	if err != nil {
		return err
	}
	var last int64
	for i, path := range paths {
		err := p.runSegment(ctx, path, fn, &last)
		if errors.Is(err, io.ErrUnexpectedEOF) && i == len(paths)-1 {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "playback: segment").With("path", path)
		}
	}
	return nil
}

func (p *Playback) runSegment(ctx context.Context, path string, fn Handler, last *int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := NewReader(f, !p.cfg.SkipChecksum)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, payload, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.pace(ctx, header.TsEvent, last); err != nil {
			return err
		}
		if err := fn(header, payload); err != nil {
			return err
		}
	}
}

func (p *Playback) pace(ctx context.Context, ts int64, last *int64) error {
	if p.cfg.Speed == 0 || ts <= 0 {
		return nil
	}
	prev := *last
	*last = ts
	if prev <= 0 || ts <= prev {
		return nil
	}
	return p.sleep(ctx, time.Duration(float64(ts-prev)/p.cfg.Speed))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func listSegments(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "recorder: read dir").With("dir", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := segmentIndex(e.Name(), prefix); ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}

func segmentIndex(name, prefix string) (uint64, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"-")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, segmentSuffix)
	if !ok {
		return 0, false
	}
	idx, err := strconv.ParseUint(rest, 10, 64)
	return idx, err == nil
}

// lastSegmentIndex lets a restarted writer append after existing segments.
func lastSegmentIndex(dir, prefix string) uint64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var last uint64
	for _, e := range entries {
		if idx, ok := segmentIndex(e.Name(), prefix); ok && idx > last {
			last = idx
		}
	}
	return last
}
