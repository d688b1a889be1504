package options

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

type WOption func(*WriteOptions) error

// WriteOptions configure a frame writer.
type WriteOptions struct {
	Logger *zap.Logger

	VideoQueueSize int
	AudioQueueSize int

	// ThreadCount is the number of concurrent frame encodes.
	ThreadCount int
}

func (o *WriteOptions) SetDefault() {
	*o = WriteOptions{
		Logger:         zap.NewNop(),
		VideoQueueSize: DefaultVideoQueueSize,
		AudioQueueSize: DefaultAudioQueueSize,
		ThreadCount:    runtime.GOMAXPROCS(0),
	}
}

// NewWriteOptions applies opts over the defaults.
func NewWriteOptions(opts ...WOption) (WriteOptions, error) {
	var o WriteOptions
	o.SetDefault()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return WriteOptions{}, err
		}
	}
	return o, nil
}

func WithWLogger(l *zap.Logger) WOption {
	return func(o *WriteOptions) error { o.Logger = l; return nil }
}

func WithWQueueSizes(video, audio int) WOption {
	return func(o *WriteOptions) error {
		if video < 1 || audio < 1 {
			return fmt.Errorf("queue sizes must be positive: video %d, audio %d", video, audio)
		}
		o.VideoQueueSize = video
		o.AudioQueueSize = audio
		return nil
	}
}

func WithWThreadCount(n int) WOption {
	return func(o *WriteOptions) error {
		if n < 1 {
			return fmt.Errorf("thread count must be positive: %d", n)
		}
		o.ThreadCount = n
		return nil
	}
}
