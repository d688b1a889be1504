package frameio

import (
	"github.com/google/btree"

	"github.com/SaveTheRbtz/frameio/frame"
)

type cacheItem struct {
	index frame.Index
	image *Image
}

func cacheItemLess(a, b cacheItem) bool {
	return a.index < b.index
}

// MemoryCache keeps decoded images around the playback position.
//
// The retained window starts ReadBehind frames behind the current frame, opposite the
// playback direction, and extends Max frames in the playback direction, wrapping around
// the sequence size.  Every setter that changes the window evicts the images outside of it.
//
// MemoryCache is not safe for concurrent use; the reader that owns it serializes access.
type MemoryCache struct {
	max          int
	sequenceSize int
	direction    Direction
	currentFrame frame.Index
	readBehind   int

	sequence frame.Sequence
	items    *btree.BTreeG[cacheItem]
}

// NewMemoryCache returns an empty cache whose window is the single frame 0.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		items: btree.NewG(16, cacheItemLess),
	}
	c.update()
	return c
}

func (c *MemoryCache) Max() int                  { return c.max }
func (c *MemoryCache) SequenceSize() int         { return c.sequenceSize }
func (c *MemoryCache) Direction() Direction      { return c.direction }
func (c *MemoryCache) CurrentFrame() frame.Index { return c.currentFrame }
func (c *MemoryCache) ReadBehind() int           { return c.readBehind }

// Sequence returns the retained window.  Ranges are in traversal order, a window that wraps
// past the end of the sequence has two ranges.
func (c *MemoryCache) Sequence() frame.Sequence {
	return frame.Sequence{Ranges: append([]frame.Range(nil), c.sequence.Ranges...)}
}

// SetMax sets the number of frames kept ahead of the read-behind anchor.
func (c *MemoryCache) SetMax(n int) {
	if n == c.max {
		return
	}
	c.max = n
	c.update()
}

func (c *MemoryCache) SetSequenceSize(n int) {
	if n == c.sequenceSize {
		return
	}
	c.sequenceSize = n
	c.update()
}

func (c *MemoryCache) SetDirection(d Direction) {
	if d == c.direction {
		return
	}
	c.direction = d
	c.update()
}

func (c *MemoryCache) SetCurrentFrame(i frame.Index) {
	if i == c.currentFrame {
		return
	}
	c.currentFrame = i
	c.update()
}

func (c *MemoryCache) SetReadBehind(n int) {
	if n == c.readBehind {
		return
	}
	c.readBehind = n
	c.update()
}

// Contains reports whether an image is cached for index i.
func (c *MemoryCache) Contains(i frame.Index) bool {
	return c.items.Has(cacheItem{index: i})
}

// Get looks up index i without changing the cache.
func (c *MemoryCache) Get(i frame.Index) (*Image, bool) {
	item, ok := c.items.Get(cacheItem{index: i})
	if !ok {
		return nil, false
	}
	return item.image, true
}

// Add stores image under index i and then evicts everything outside the window,
// so adding a frame outside of the window leaves the cache unchanged.
func (c *MemoryCache) Add(i frame.Index, image *Image) {
	c.items.ReplaceOrInsert(cacheItem{index: i, image: image})
	c.evict()
}

// Clear drops every cached image.  The window is kept.
func (c *MemoryCache) Clear() {
	c.items.Clear(false)
}

func (c *MemoryCache) Len() int {
	return c.items.Len()
}

// ByteCount returns the size of all cached images.
func (c *MemoryCache) ByteCount() int64 {
	var out int64
	c.items.Ascend(func(item cacheItem) bool {
		out += item.image.ByteCount()
		return true
	})
	return out
}

// Frames returns the cached indices as ascending runs of consecutive frames.
func (c *MemoryCache) Frames() []frame.Range {
	var out []frame.Range
	c.items.Ascend(func(item cacheItem) bool {
		if last := len(out) - 1; last >= 0 && out[last].Max+1 == item.index {
			out[last].Max = item.index
		} else {
			out = append(out, frame.NewRange(item.index))
		}
		return true
	})
	return out
}

func (c *MemoryCache) update() {
	size := frame.Index(c.sequenceSize)
	last := frame.Index(0)
	if size > 0 {
		last = size - 1
	}

	f := c.currentFrame
	var seq frame.Sequence
	switch c.direction {
	case Forward:
		for i := 0; i < c.readBehind; i++ {
			f--
			if f < 0 {
				f = last
			}
		}
		seq.Ranges = append(seq.Ranges, frame.NewRange(f))
		for i := 0; i < c.max; i++ {
			f++
			if f >= size {
				f = 0
				seq.Ranges = append(seq.Ranges, frame.NewRange(f))
			} else {
				seq.Ranges[len(seq.Ranges)-1].Max = f
			}
		}
	case Reverse:
		for i := 0; i < c.readBehind; i++ {
			f++
			if f >= size {
				f = 0
			}
		}
		seq.Ranges = append(seq.Ranges, frame.NewRange(f))
		for i := 0; i < c.max; i++ {
			f--
			if f < 0 {
				f = last
				seq.Ranges = append(seq.Ranges, frame.NewRange(f))
			} else {
				seq.Ranges[len(seq.Ranges)-1].Min = f
			}
		}
	}
	c.sequence = seq
	c.evict()
}

func (c *MemoryCache) evict() {
	var stale []cacheItem
	c.items.Ascend(func(item cacheItem) bool {
		if !c.sequence.Contains(item.index) {
			stale = append(stale, item)
		}
		return true
	})
	for _, item := range stale {
		c.items.Delete(item)
	}
}
