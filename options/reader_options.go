package options

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

const (
	DefaultVideoQueueSize    = 30
	DefaultAudioQueueSize    = 30
	DefaultCacheReadBehind   = 10
	DefaultCacheMaxByteCount = 1 << 30
)

type ROption func(*ReadOptions) error

// ReadOptions configure a frame reader.
type ReadOptions struct {
	Logger *zap.Logger

	// VideoQueueSize and AudioQueueSize are the advisory capacities of the reader queues.
	VideoQueueSize int
	AudioQueueSize int

	// ThreadCount is the number of concurrent frame decodes.
	ThreadCount int

	CacheEnabled      bool
	CacheMaxByteCount int64
	// CacheReadBehind is the number of frames kept behind the playback position.
	CacheReadBehind int
}

func (o *ReadOptions) SetDefault() {
	*o = ReadOptions{
		Logger:            zap.NewNop(),
		VideoQueueSize:    DefaultVideoQueueSize,
		AudioQueueSize:    DefaultAudioQueueSize,
		ThreadCount:       runtime.GOMAXPROCS(0),
		CacheMaxByteCount: DefaultCacheMaxByteCount,
		CacheReadBehind:   DefaultCacheReadBehind,
	}
}

// NewReadOptions applies opts over the defaults.
func NewReadOptions(opts ...ROption) (ReadOptions, error) {
	var o ReadOptions
	o.SetDefault()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return ReadOptions{}, err
		}
	}
	return o, nil
}

func WithRLogger(l *zap.Logger) ROption {
	return func(o *ReadOptions) error { o.Logger = l; return nil }
}

func WithRQueueSizes(video, audio int) ROption {
	return func(o *ReadOptions) error {
		if video < 1 || audio < 1 {
			return fmt.Errorf("queue sizes must be positive: video %d, audio %d", video, audio)
		}
		o.VideoQueueSize = video
		o.AudioQueueSize = audio
		return nil
	}
}

func WithRThreadCount(n int) ROption {
	return func(o *ReadOptions) error {
		if n < 1 {
			return fmt.Errorf("thread count must be positive: %d", n)
		}
		o.ThreadCount = n
		return nil
	}
}

// WithCache enables the memory cache with a byte budget and read-behind depth.
func WithCache(maxByteCount int64, readBehind int) ROption {
	return func(o *ReadOptions) error {
		if maxByteCount < 0 || readBehind < 0 {
			return fmt.Errorf("invalid cache settings: max bytes %d, read behind %d", maxByteCount, readBehind)
		}
		o.CacheEnabled = true
		o.CacheMaxByteCount = maxByteCount
		o.CacheReadBehind = readBehind
		return nil
	}
}
