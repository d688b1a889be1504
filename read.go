package frameio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/frame"
	"github.com/SaveTheRbtz/frameio/options"
)

// Decoder decodes the frames of one file.  Format plugins implement it and hand it to NewRead.
type Decoder interface {
	// ReadInfo is called once when the reader is opened.
	ReadInfo(ctx context.Context) (Info, error)
	// DecodeFrame decodes frame n.  It is called from several goroutines at once.
	DecodeFrame(ctx context.Context, n frame.Number) (*Image, error)
	// Close releases the file.  It is called after the last DecodeFrame returned.
	Close() error
}

// Reader reads frames in the background.  Callers poll the queues and never block on decoding.
type Reader interface {
	FileInfo() fileinfo.Info
	ID() uuid.UUID
	ThreadCount() int
	SetThreadCount(n int)

	// Info returns the file information read when the reader was opened.
	Info() Info

	// Seek restarts reading at index i in direction d.  Queued frames are dropped.
	Seek(i frame.Index, d Direction)

	// PopVideoFrame returns the next decoded frame, or false when none is ready.
	PopVideoFrame() (VideoFrame, bool)
	PopAudioFrame() (AudioFrame, bool)
	// IsVideoEnded reports that no more video frames will be returned until the next Seek.
	IsVideoEnded() bool
	IsAudioEnded() bool
	// Ready is signalled when frames were queued or the stream ended.
	Ready() <-chan struct{}

	IsCacheEnabled() bool
	SetCacheEnabled(v bool)
	CacheMaxByteCount() int64
	SetCacheMaxByteCount(n int64)
	CacheByteCount() int64
	CachedFrames() []frame.Range
	CacheSequence() frame.Sequence

	// Close stops decoding and releases the file.
	Close() error
}

var _ Reader = (*Read)(nil)

// Read is the Reader that plugins build around their Decoder.
//
// A background goroutine decodes the frames following the read position, up to the video
// queue capacity, with ThreadCount decodes in flight, and queues them in frame order.
// Decoded frames inside the cache window are kept in a MemoryCache and reused instead of
// being decoded again.
type Read struct {
	ioBase

	dec           Decoder
	info          Info
	sequence      frame.Sequence
	bytesPerFrame int64

	mu                sync.Mutex
	cache             *MemoryCache
	cacheEnabled      bool
	cacheMaxByteCount int64
	cacheReadBehind   int
	cacheByteCount    int64
	cachedFrames      []frame.Range
	direction         Direction
	pos               frame.Index
	// generation changes on every Seek; decodes started before it are discarded.
	generation uint64
	closed     bool

	wake  chan struct{}
	ready chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type readItem struct {
	index  frame.Index
	number frame.Number
	image  *Image
	cached bool
}

// NewRead opens a reader around dec.  The file information is read before NewRead returns;
// on failure dec is closed and no reader is returned.
func NewRead(fi fileinfo.Info, dec Decoder, opts options.ReadOptions) (*Read, error) {
	r := &Read{
		dec:               dec,
		cache:             NewMemoryCache(),
		cacheEnabled:      opts.CacheEnabled,
		cacheMaxByteCount: opts.CacheMaxByteCount,
		wake:              make(chan struct{}, 1),
		ready:             make(chan struct{}, 1),
		done:              make(chan struct{}),
	}
	r.ioBase.init(fi, opts.Logger, opts.ThreadCount, opts.VideoQueueSize, opts.AudioQueueSize)
	r.ctx, r.cancel = context.WithCancel(context.Background())

	info, err := dec.ReadInfo(r.ctx)
	if err != nil {
		r.cancel()
		return nil, multierr.Append(fmt.Errorf("failed to read info: %w", err), dec.Close())
	}
	r.info = info

	// Audio is not decoded by Read, plugins with audio streams feed it themselves.
	r.audioQueue.SetFinished(true)

	if len(info.Video) == 0 {
		r.videoQueue.SetFinished(true)
		close(r.done)
		r.logger.Debug("opened reader without video", zap.Object("info", info))
		return r, nil
	}

	video := info.Video[0]
	r.sequence = video.Sequence
	r.bytesPerFrame = video.Image.ByteCount()
	r.cache.SetSequenceSize(int(r.sequence.FrameCount()))
	r.cacheReadBehind = opts.CacheReadBehind
	r.updateCacheMax()
	r.updateCacheStats()

	r.logger.Debug("opened reader",
		zap.Object("info", info),
		zap.Int("threads", r.ThreadCount()),
		zap.Bool("cache", r.cacheEnabled))

	go r.run()
	return r, nil
}

func (r *Read) Info() Info {
	return r.info
}

func (r *Read) Seek(i frame.Index, d Direction) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if size := frame.Index(r.sequence.FrameCount()); size > 0 {
		i = min(max(i, 0), size-1)
	} else {
		i = 0
	}
	r.generation++
	r.videoQueue.ClearFrames()
	r.audioQueue.ClearFrames()
	r.videoQueue.SetFinished(r.sequence.IsEmpty())
	r.direction = d
	r.pos = i
	r.cache.SetDirection(d)
	r.cache.SetCurrentFrame(i)
	r.updateCacheStats()
	r.mu.Unlock()

	r.logger.Debug("seek", zap.Int64("index", int64(i)), zap.Stringer("direction", d))
	signal(r.wake)
}

func (r *Read) PopVideoFrame() (VideoFrame, bool) {
	r.mu.Lock()
	f, ok := r.videoQueue.PopFrame()
	r.mu.Unlock()
	if ok {
		signal(r.wake)
	}
	return f, ok
}

func (r *Read) PopAudioFrame() (AudioFrame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audioQueue.PopFrame()
}

func (r *Read) IsVideoEnded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.videoQueue.IsEnded()
}

func (r *Read) IsAudioEnded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audioQueue.IsEnded()
}

func (r *Read) Ready() <-chan struct{} {
	return r.ready
}

func (r *Read) IsCacheEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cacheEnabled
}

func (r *Read) SetCacheEnabled(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheEnabled = v
	if !v {
		r.cache.Clear()
	}
	r.updateCacheStats()
}

func (r *Read) CacheMaxByteCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cacheMaxByteCount
}

func (r *Read) SetCacheMaxByteCount(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheMaxByteCount = n
	r.updateCacheMax()
	r.updateCacheStats()
}

func (r *Read) CacheByteCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cacheByteCount
}

// CachedFrames returns the cached frames as ascending index ranges.
func (r *Read) CachedFrames() []frame.Range {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]frame.Range(nil), r.cachedFrames...)
}

// CacheSequence returns the cache window as index ranges.
func (r *Read) CacheSequence() frame.Sequence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Sequence()
}

func (r *Read) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.done

		r.mu.Lock()
		r.closed = true
		r.videoQueue.ClearFrames()
		r.audioQueue.ClearFrames()
		r.videoQueue.SetFinished(true)
		r.audioQueue.SetFinished(true)
		r.cache.Clear()
		r.updateCacheStats()
		r.mu.Unlock()

		r.closeErr = r.dec.Close()
		r.logger.Debug("closed reader", zap.Error(r.closeErr))
	})
	return r.closeErr
}

// updateCacheMax converts the byte budget into the number of frames the cache window spans.
// Must be called with mu held.
func (r *Read) updateCacheMax() {
	frames := int64(0)
	if r.bytesPerFrame > 0 {
		frames = r.cacheMaxByteCount / r.bytesPerFrame
	}
	// The window is the anchor plus max frames and never needs to be longer than the
	// sequence.  The anchor sits read-behind frames before the current frame, so
	// read-behind is capped to keep the current frame inside the window.
	n := max(min(frames, r.sequence.FrameCount())-1, 0)
	r.cache.SetReadBehind(int(min(int64(r.cacheReadBehind), n)))
	r.cache.SetMax(int(n))
}

// updateCacheStats refreshes the values returned by the cache accessors.
// Must be called with mu held.
func (r *Read) updateCacheStats() {
	r.cacheByteCount = r.cache.ByteCount()
	r.cachedFrames = r.cache.Frames()
}

// cacheFits reports whether the budget holds at least one frame.  Must be called with mu held.
func (r *Read) cacheFits() bool {
	return r.cacheEnabled && r.bytesPerFrame > 0 && r.cacheMaxByteCount >= r.bytesPerFrame
}

func (r *Read) run() {
	defer close(r.done)

	for {
		items, generation, ok := r.nextBatch()
		if !ok {
			select {
			case <-r.ctx.Done():
				return
			case <-r.wake:
			}
			continue
		}

		r.decodeBatch(items)
		if r.ctx.Err() != nil {
			return
		}
		r.publish(items, generation)
	}
}

// nextBatch picks the frames to decode next: as many as fit in the queue, at most ThreadCount.
func (r *Read) nextBatch() ([]readItem, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.videoQueue.IsFinished() {
		return nil, 0, false
	}
	room := r.videoQueue.Max() - r.videoQueue.Size()
	if room <= 0 {
		return nil, 0, false
	}
	n := min(room, r.ThreadCount())

	size := frame.Index(r.sequence.FrameCount())
	items := make([]readItem, 0, n)
	for len(items) < n && r.pos >= 0 && r.pos < size {
		number, _ := r.sequence.Number(r.pos)
		item := readItem{index: r.pos, number: number}
		if r.cacheEnabled {
			item.image, item.cached = r.cache.Get(r.pos)
		}
		items = append(items, item)
		if r.direction == Forward {
			r.pos++
		} else {
			r.pos--
		}
	}

	if len(items) == 0 {
		r.videoQueue.SetFinished(true)
		signal(r.ready)
		r.logger.Debug("end of sequence", zap.Stringer("direction", r.direction))
		return nil, 0, false
	}
	return items, r.generation, true
}

func (r *Read) decodeBatch(items []readItem) {
	g, ctx := errgroup.WithContext(r.ctx)
	g.SetLimit(len(items))
	for i := range items {
		item := &items[i]
		if item.cached {
			continue
		}
		g.Go(func() error {
			image, err := r.dec.DecodeFrame(ctx, item.number)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					r.logger.Warn("failed to decode frame", zap.Int64("frame", int64(item.number)), zap.Error(err))
				}
				return nil
			}
			item.image = image
			return nil
		})
	}
	_ = g.Wait()
}

// publish queues decoded frames in order.  Frames decoded for an older Seek are dropped
// so they never reach the queue or the cache.
func (r *Read) publish(items []readItem, generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if generation != r.generation {
		r.logger.Debug("dropping stale frames", zap.Int("count", len(items)))
		return
	}

	cache := r.cacheFits()
	for _, item := range items {
		if item.image == nil {
			continue
		}
		r.videoQueue.AddFrame(VideoFrame{Number: item.number, Image: item.image})
		if cache && !item.cached {
			r.cache.Add(item.index, item.image)
		}
	}
	r.updateCacheStats()
	signal(r.ready)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
