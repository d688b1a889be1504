package frameio

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio/fileinfo"
)

// ioBase is the state shared by readers and writers.
type ioBase struct {
	fileInfo fileinfo.Info
	id       uuid.UUID
	logger   *zap.Logger

	// threadCount has two tiers: writes are serialized by threadMu, reads are relaxed
	// loads that may observe a stale value.
	threadMu    sync.Mutex
	threadCount atomic.Int64

	videoQueue *VideoQueue
	audioQueue *AudioQueue
}

func (b *ioBase) init(fi fileinfo.Info, logger *zap.Logger, threadCount, videoQueueSize, audioQueueSize int) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threadCount < 1 {
		threadCount = 1
	}
	b.fileInfo = fi
	b.id = uuid.New()
	b.logger = logger.With(zap.Stringer("id", b.id), zap.Stringer("file", fi))
	b.videoQueue = NewQueue[VideoFrame](videoQueueSize)
	b.audioQueue = NewQueue[AudioFrame](audioQueueSize)
	b.threadCount.Store(int64(threadCount))
}

// FileInfo returns the file being read or written.
func (b *ioBase) FileInfo() fileinfo.Info {
	return b.fileInfo
}

// ID identifies the reader or writer in logs.
func (b *ioBase) ID() uuid.UUID {
	return b.id
}

// ThreadCount returns the number of concurrent decodes or encodes.
// It takes no lock and may return a value that is being replaced.
func (b *ioBase) ThreadCount() int {
	return int(b.threadCount.Load())
}

// SetThreadCount changes the number of concurrent decodes or encodes.
// It applies to work started after the call.
func (b *ioBase) SetThreadCount(n int) {
	if n < 1 {
		n = 1
	}
	b.threadMu.Lock()
	defer b.threadMu.Unlock()
	b.threadCount.Store(int64(n))
}
