package frameio

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"

	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/frame"
	"github.com/SaveTheRbtz/frameio/options"
)

var errEncode = errors.New("encode failed")

type fakeEncoder struct {
	fail     map[frame.Number]bool
	closeErr error
	block    chan struct{}

	mu      sync.Mutex
	written []frame.Number
	closed  atomic.Int64
}

func (e *fakeEncoder) EncodeFrame(ctx context.Context, f VideoFrame) ([]byte, error) {
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	// Finish out of order.
	time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
	if e.fail[f.Number] {
		return nil, errEncode
	}
	return []byte{byte(f.Number)}, nil
}

func (e *fakeEncoder) WriteFrame(f VideoFrame, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(data) != 1 || data[0] != byte(f.Number) {
		return errors.New("frame data mismatch")
	}
	e.written = append(e.written, f.Number)
	return nil
}

func (e *fakeEncoder) Close() error {
	e.closed.Inc()
	return e.closeErr
}

func (e *fakeEncoder) Written() []frame.Number {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]frame.Number(nil), e.written...)
}

func newTestWrite(t *testing.T, enc Encoder, opts ...options.WOption) *Write {
	t.Helper()

	opts = append([]options.WOption{options.WithWLogger(zaptest.NewLogger(t))}, opts...)
	wo, err := options.NewWriteOptions(opts...)
	require.NoError(t, err)

	info := Info{FileName: "out.zfs", Video: []VideoInfo{{Image: ImageInfo{Width: 1, Height: 1, Channels: 1, BitDepth: 8}}}}
	w, err := NewWrite(fileinfo.New("out.zfs"), info, enc, wo)
	require.NoError(t, err)
	return w
}

func TestWriteOrdered(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{}
	w := newTestWrite(t, enc, options.WithWThreadCount(4), options.WithWQueueSizes(8, 8))
	assert.Equal(t, "out.zfs", w.Info().FileName)

	for i := 0; i < 100; i++ {
		require.NoError(t, w.AddVideoFrame(VideoFrame{Number: frame.Number(i), Image: testImage(1)}))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, numbers(0, 99), enc.Written())
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, int64(1), enc.closed.Load())
}

func TestWriteQueueFull(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{block: make(chan struct{})}
	w := newTestWrite(t, enc, options.WithWThreadCount(1), options.WithWQueueSizes(2, 2))

	for i := 0; i < 5; i++ {
		require.NoError(t, w.AddVideoFrame(VideoFrame{Number: frame.Number(i)}))
	}
	// At most one frame is encoding and one is waiting for a worker.
	assert.True(t, w.IsVideoQueueFull())
	assert.Equal(t, 5, w.Pending())

	close(enc.block)
	require.NoError(t, w.Close())
	assert.Equal(t, numbers(0, 4), enc.Written())
	assert.False(t, w.IsVideoQueueFull())
}

func TestWriteClosed(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{}
	w := newTestWrite(t, enc)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.AddVideoFrame(VideoFrame{Number: 1}), ErrClosed)
	assert.Empty(t, enc.Written())
	assert.Equal(t, int64(1), enc.closed.Load())
}

func TestWriteEncodeError(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{
		fail:     map[frame.Number]bool{5: true},
		closeErr: errors.New("truncated file"),
	}
	w := newTestWrite(t, enc, options.WithWThreadCount(2))

	for i := 0; i < 20; i++ {
		if err := w.AddVideoFrame(VideoFrame{Number: frame.Number(i)}); err != nil {
			assert.ErrorIs(t, err, errEncode)
			break
		}
	}

	err := w.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, errEncode)
	assert.ErrorIs(t, err, enc.closeErr)

	written := enc.Written()
	assert.NotContains(t, written, frame.Number(5))
	for i, n := range written {
		assert.Equal(t, frame.Number(i), n, "frames before the failure stay ordered")
	}
}
