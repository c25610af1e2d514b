package recorder

import (
	"time"

	"github.com/yanun0323/errors"

	"arb/pkg/exception"
)

const (
	defaultSegmentBytes int64 = 256 << 20
	defaultQueueSize          = 8192
	defaultBufferSize         = 128 * 1024
	defaultPrefix             = "arb"
	segmentSuffix             = ".wal"
)

// Config controls the WAL writer.
type Config struct {
	Dir           string        `json:"dir" yaml:"dir"`
	Prefix        string        `json:"prefix" yaml:"prefix"`
	SegmentBytes  int64         `json:"segmentBytes" yaml:"segmentBytes"`
	SegmentAge    time.Duration `json:"segmentAge" yaml:"segmentAge"`
	QueueSize     int           `json:"queueSize" yaml:"queueSize"`
	BufferSize    int           `json:"bufferSize" yaml:"bufferSize"`
	FlushInterval time.Duration `json:"flushInterval" yaml:"flushInterval"`
	SyncOnRotate  bool          `json:"syncOnRotate" yaml:"syncOnRotate"`
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.SegmentBytes == 0 {
		c.SegmentBytes = defaultSegmentBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: dir is empty")
	case c.SegmentBytes <= frameOverhead:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: segment bytes too small").With("segmentBytes", c.SegmentBytes)
	case c.QueueSize <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: queue size must be > 0")
	case c.BufferSize <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: buffer size must be > 0")
	case c.SegmentAge < 0 || c.FlushInterval < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recorder: durations must be >= 0")
	}
	return nil
}

// ValidateConfig validates cfg as NewWriter would see it, defaults applied.
func ValidateConfig(cfg Config) error {
	return cfg.withDefaults().Validate()
}
