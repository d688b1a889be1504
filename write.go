package frameio

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/options"
)

// Encoder encodes and stores the frames of one file.  Format plugins implement it and hand
// it to NewWrite.
type Encoder interface {
	// EncodeFrame encodes f.  It is called from several goroutines at once.
	EncodeFrame(ctx context.Context, f VideoFrame) ([]byte, error)
	// WriteFrame stores the result of EncodeFrame.  Calls are sequential and follow the
	// order in which frames were added.
	WriteFrame(f VideoFrame, data []byte) error
	// Close finishes the file.  It is called once, after the last WriteFrame.
	Close() error
}

// Writer writes frames in the background.
type Writer interface {
	FileInfo() fileinfo.Info
	ID() uuid.UUID
	ThreadCount() int
	SetThreadCount(n int)

	Info() Info

	// AddVideoFrame queues f for writing.  The queue capacity is advisory: callers that
	// want to bound memory check IsVideoQueueFull first.
	AddVideoFrame(f VideoFrame) error
	IsVideoQueueFull() bool
	// Pending returns the number of frames added but not yet stored.
	Pending() int

	// Close writes the remaining frames and finishes the file.
	Close() error
}

var _ Writer = (*Write)(nil)

// Write is the Writer that plugins build around their Encoder.
type Write struct {
	ioBase

	enc  Encoder
	info Info

	mu      sync.Mutex
	closing bool
	pending int
	err     error

	inflight atomic.Int64
	wake     chan struct{}
	slot     chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type encodeResult struct {
	frame VideoFrame
	data  []byte
}

// NewWrite starts a writer around enc.
func NewWrite(fi fileinfo.Info, info Info, enc Encoder, opts options.WriteOptions) (*Write, error) {
	w := &Write{
		enc:  enc,
		info: info,
		wake: make(chan struct{}, 1),
		slot: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	w.ioBase.init(fi, opts.Logger, opts.ThreadCount, opts.VideoQueueSize, opts.AudioQueueSize)
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.logger.Debug("opened writer", zap.Object("info", info), zap.Int("threads", w.ThreadCount()))

	go w.run()
	return w, nil
}

func (w *Write) Info() Info {
	return w.info
}

func (w *Write) AddVideoFrame(f VideoFrame) error {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.err != nil {
		err := w.err
		w.mu.Unlock()
		return err
	}
	w.videoQueue.AddFrame(f)
	w.pending++
	w.mu.Unlock()

	signal(w.wake)
	return nil
}

func (w *Write) IsVideoQueueFull() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.videoQueue.IsFull()
}

func (w *Write) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *Write) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closing = true
		w.mu.Unlock()
		signal(w.wake)

		<-w.done
		w.cancel()

		w.mu.Lock()
		err := w.err
		w.videoQueue.ClearFrames()
		w.mu.Unlock()

		w.closeErr = multierr.Append(err, w.enc.Close())
		w.logger.Debug("closed writer", zap.Error(w.closeErr))
	})
	return w.closeErr
}

func (w *Write) run() {
	defer close(w.done)

	g, ctx := errgroup.WithContext(w.ctx)
	// Extra room keeps the encoders busy when frames finish out of order.
	queue := make(chan chan encodeResult, max(w.videoQueue.Max(), 1)*2)
	g.Go(w.producer(ctx, g, queue))
	g.Go(w.consumer(ctx, queue))

	if err := g.Wait(); err != nil {
		w.logger.Error("write failed", zap.Error(err))
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
	}
}

// next pops the next queued frame.  closing is true once Close was called.
func (w *Write) next() (f VideoFrame, ok, closing bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok = w.videoQueue.PopFrame()
	return f, ok, w.closing
}

func (w *Write) producer(ctx context.Context, g *errgroup.Group, queue chan<- chan encodeResult) func() error {
	return func() error {
		for {
			f, ok, closing := w.next()
			if !ok {
				if closing {
					close(queue)
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-w.wake:
				}
				continue
			}

			for w.inflight.Load() >= int64(w.ThreadCount()) {
				select {
				case <-ctx.Done():
					return nil
				case <-w.slot:
				}
			}

			// The channel is a promise that keeps the output ordered while encodes
			// complete out of order.
			ch := make(chan encodeResult, 1)
			select {
			case <-ctx.Done():
				return nil
			case queue <- ch:
			}

			w.inflight.Inc()
			g.Go(w.encode(ctx, ch, f))
		}
	}
}

func (w *Write) encode(ctx context.Context, ch chan<- encodeResult, f VideoFrame) func() error {
	return func() error {
		data, err := w.enc.EncodeFrame(ctx, f)
		w.inflight.Dec()
		signal(w.slot)
		if err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", f.Number, err)
		}
		ch <- encodeResult{frame: f, data: data}
		close(ch)
		return nil
	}
}

func (w *Write) consumer(ctx context.Context, queue <-chan chan encodeResult) func() error {
	return func() error {
		for {
			var ch <-chan encodeResult
			select {
			case <-ctx.Done():
				return nil
			case ch = <-queue:
			}
			if ch == nil {
				return nil
			}

			var result encodeResult
			select {
			case <-ctx.Done():
				return nil
			case result = <-ch:
			}

			if err := w.enc.WriteFrame(result.frame, result.data); err != nil {
				return fmt.Errorf("failed to write frame %d: %w", result.frame.Number, err)
			}

			w.mu.Lock()
			w.pending--
			w.mu.Unlock()
		}
	}
}
