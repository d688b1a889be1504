package frameio

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaveTheRbtz/frameio/frame"
)

func testImage(byteCount int) *Image {
	return &Image{
		Info: ImageInfo{Width: byteCount, Height: 1, Channels: 1, BitDepth: 8},
		Data: make([]byte, byteCount),
	}
}

func newTestCache(size int, d Direction, readBehind, max int, current frame.Index) *MemoryCache {
	c := NewMemoryCache()
	c.SetSequenceSize(size)
	c.SetDirection(d)
	c.SetReadBehind(readBehind)
	c.SetMax(max)
	c.SetCurrentFrame(current)
	return c
}

func TestMemoryCacheDefaults(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	assert.Equal(t, 0, c.Max())
	assert.Equal(t, 0, c.SequenceSize())
	assert.Equal(t, Forward, c.Direction())
	assert.Equal(t, frame.Index(0), c.CurrentFrame())
	assert.Equal(t, 0, c.ReadBehind())
	assert.Equal(t, frame.NewSequence(frame.NewRange(0)), c.Sequence())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.ByteCount())
	assert.Nil(t, c.Frames())
}

func TestMemoryCacheWindowForward(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	c.SetSequenceSize(10)
	c.SetMax(10)
	for i := frame.Index(0); i < 10; i++ {
		c.Add(i, testImage(1))
	}
	require.Equal(t, 10, c.Len())

	c.SetReadBehind(2)
	c.SetCurrentFrame(5)
	require.Equal(t, 10, c.Len())
	c.SetMax(3)

	assert.Equal(t, frame.NewSequence(frame.Range{Min: 3, Max: 6}), c.Sequence())
	assert.Equal(t, []frame.Range{{Min: 3, Max: 6}}, c.Frames())
	for i := frame.Index(0); i < 10; i++ {
		assert.Equal(t, i >= 3 && i <= 6, c.Contains(i), "frame %d", i)
	}
	_, ok := c.Get(9)
	assert.False(t, ok)
}

func TestMemoryCacheWindowWrap(t *testing.T) {
	t.Parallel()

	c := newTestCache(5, Forward, 0, 4, 4)
	assert.Equal(t,
		frame.NewSequence(frame.NewRange(4), frame.Range{Min: 0, Max: 3}),
		c.Sequence())

	c.Add(4, testImage(1))
	c.Add(0, testImage(1))
	assert.Equal(t, []frame.Range{{Min: 0, Max: 0}, {Min: 4, Max: 4}}, c.Frames())
}

func TestMemoryCacheWindowReverse(t *testing.T) {
	t.Parallel()

	c := newTestCache(10, Reverse, 2, 3, 5)
	// Anchor is 5 stepped forward twice, the window grows backwards from there.
	assert.Equal(t, frame.NewSequence(frame.Range{Min: 4, Max: 7}), c.Sequence())

	c = newTestCache(10, Reverse, 2, 4, 0)
	assert.Equal(t,
		frame.NewSequence(frame.Range{Min: 0, Max: 2}, frame.Range{Min: 8, Max: 9}),
		c.Sequence())

	// Read-behind wraps past the end.
	c = newTestCache(10, Reverse, 3, 1, 8)
	assert.Equal(t, frame.NewSequence(frame.Range{Min: 0, Max: 1}), c.Sequence())
}

func TestMemoryCacheReadBehindWrap(t *testing.T) {
	t.Parallel()

	c := newTestCache(10, Forward, 2, 3, 0)
	assert.Equal(t,
		frame.NewSequence(frame.Range{Min: 8, Max: 9}, frame.Range{Min: 0, Max: 1}),
		c.Sequence())
}

func TestMemoryCacheEmptySequence(t *testing.T) {
	t.Parallel()

	c := newTestCache(0, Forward, 1, 2, 0)
	assert.Equal(t,
		frame.NewSequence(frame.NewRange(0), frame.NewRange(0), frame.NewRange(0)),
		c.Sequence())

	c.Add(0, testImage(1))
	assert.True(t, c.Contains(0))
	c.Add(1, testImage(1))
	assert.False(t, c.Contains(1))
}

func TestMemoryCacheAddOutsideWindow(t *testing.T) {
	t.Parallel()

	c := newTestCache(100, Forward, 0, 5, 10)
	c.Add(50, testImage(8))
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Contains(50))

	img := testImage(8)
	c.Add(12, img)
	got, ok := c.Get(12)
	require.True(t, ok)
	assert.Same(t, img, got)

	// Overwrite keeps a single entry.
	img2 := testImage(16)
	c.Add(12, img2)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(16), c.ByteCount())
}

func TestMemoryCacheIntrospection(t *testing.T) {
	t.Parallel()

	c := newTestCache(10, Forward, 0, 9, 0)
	sizes := map[frame.Index]int{2: 10, 3: 20, 4: 30, 7: 40}
	for i, n := range sizes {
		c.Add(i, testImage(n))
	}
	assert.Equal(t, int64(100), c.ByteCount())
	if diff := cmp.Diff([]frame.Range{{Min: 2, Max: 4}, {Min: 7, Max: 7}}, c.Frames()); diff != "" {
		t.Errorf("Frames() mismatch (-want +got):\n%s", diff)
	}

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, frame.NewSequence(frame.Range{Min: 0, Max: 9}), c.Sequence())
}

func TestMemoryCacheSetterNoop(t *testing.T) {
	t.Parallel()

	c := newTestCache(10, Forward, 0, 9, 0)
	c.Add(3, testImage(1))
	before := c.Sequence()
	c.SetMax(9)
	c.SetSequenceSize(10)
	c.SetDirection(Forward)
	c.SetCurrentFrame(0)
	c.SetReadBehind(0)
	assert.Equal(t, before, c.Sequence())
	assert.True(t, c.Contains(3))
}

// Random parameter changes never leave a key outside of the window.
func TestMemoryCacheContainment(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewSource(1))
	c := NewMemoryCache()
	for step := 0; step < 2000; step++ {
		size := c.SequenceSize()
		switch rnd.Intn(6) {
		case 0:
			c.SetDirection(Direction(rnd.Intn(2)))
		case 1:
			if size > 0 {
				c.SetCurrentFrame(frame.Index(rnd.Intn(size)))
			}
		case 2:
			c.SetMax(rnd.Intn(20))
		case 3:
			c.SetSequenceSize(1 + rnd.Intn(40))
		case 4:
			c.SetReadBehind(rnd.Intn(5))
		case 5:
			if size > 0 {
				c.Add(frame.Index(rnd.Intn(size)), testImage(1))
			}
		}

		window := c.Sequence()
		for _, r := range c.Frames() {
			for i := r.Min; i <= r.Max; i++ {
				require.True(t, window.Contains(i), "step %d: frame %d outside %s", step, i, window)
			}
		}
	}
}
