package frameio

// Queue is a FIFO of frames handed from a producer to a consumer.
//
// The capacity is advisory: AddFrame never rejects a frame, the producer is expected to
// check IsFull before adding.  Queue has no locking of its own, the reader or writer that
// owns it serializes every access.
type Queue[T any] struct {
	frames   []T
	max      int
	finished bool
}

type (
	VideoQueue = Queue[VideoFrame]
	AudioQueue = Queue[AudioFrame]
)

// NewQueue returns an empty queue with the given advisory capacity.
func NewQueue[T any](n int) *Queue[T] {
	return &Queue[T]{max: n}
}

func (q *Queue[T]) Max() int {
	return q.max
}

// SetMax changes the advisory capacity.  Frames above a smaller capacity are kept.
func (q *Queue[T]) SetMax(n int) {
	q.max = n
}

func (q *Queue[T]) Size() int {
	return len(q.frames)
}

func (q *Queue[T]) IsEmpty() bool {
	return len(q.frames) == 0
}

// IsFull reports whether the queue holds at least Max frames.
func (q *Queue[T]) IsFull() bool {
	return len(q.frames) >= q.max
}

// AddFrame appends f to the tail.
func (q *Queue[T]) AddFrame(f T) {
	q.frames = append(q.frames, f)
}

// PopFrame removes and returns the head.  An empty queue returns the zero frame and false.
func (q *Queue[T]) PopFrame() (T, bool) {
	var out T
	if len(q.frames) == 0 {
		return out, false
	}
	out = q.frames[0]
	var zero T
	q.frames[0] = zero
	q.frames = q.frames[1:]
	if len(q.frames) == 0 {
		q.frames = nil
	}
	return out, true
}

// ClearFrames drops every buffered frame.
func (q *Queue[T]) ClearFrames() {
	q.frames = nil
}

// SetFinished marks that the producer will add no more frames.
func (q *Queue[T]) SetFinished(v bool) {
	q.finished = v
}

func (q *Queue[T]) IsFinished() bool {
	return q.finished
}

// IsEnded reports whether the stream is over: finished and drained.
func (q *Queue[T]) IsEnded() bool {
	return q.finished && len(q.frames) == 0
}
