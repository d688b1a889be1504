// Package frame provides frame numbers, inclusive frame ranges and sequences of ranges.
package frame

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Number identifies a frame within a sequence.  It may be negative while doing wrap arithmetic.
type Number int64

// Index is a frame position normalized to [0, size).
type Index = Number

// Range is an inclusive [Min, Max] span of frames.
type Range struct {
	Min Number
	Max Number
}

// NewRange returns a range holding the single frame n.
func NewRange(n Number) Range {
	return Range{Min: n, Max: n}
}

// Len returns the number of frames in the range.
func (r Range) Len() int64 {
	return int64(r.Max-r.Min) + 1
}

// Contains reports whether n is within the range.
func (r Range) Contains(n Number) bool {
	return n >= r.Min && n <= r.Max
}

func (r Range) String() string {
	if r.Min == r.Max {
		return strconv.FormatInt(int64(r.Min), 10)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

func (r Range) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("Min", int64(r.Min))
	enc.AddInt64("Max", int64(r.Max))
	return nil
}

// Sequence is an ordered list of ranges.
//
// Ranges keep the order they were pushed in, they are not sorted by value.
// Whoever builds a Sequence is responsible for keeping the ranges disjoint.
type Sequence struct {
	Ranges []Range
}

// NewSequence returns a sequence made of the given ranges.
func NewSequence(ranges ...Range) Sequence {
	return Sequence{Ranges: ranges}
}

// Contains reports whether any range holds n.  Ranges are checked in stored order.
func (s Sequence) Contains(n Number) bool {
	for _, r := range s.Ranges {
		if r.Contains(n) {
			return true
		}
	}
	return false
}

// FrameCount returns the total number of frames over all ranges.
func (s Sequence) FrameCount() int64 {
	var out int64
	for _, r := range s.Ranges {
		out += r.Len()
	}
	return out
}

// IsEmpty reports whether the sequence has no ranges.
func (s Sequence) IsEmpty() bool {
	return len(s.Ranges) == 0
}

// Index returns the position of n counted across the ranges in stored order.
func (s Sequence) Index(n Number) (Index, bool) {
	var offset int64
	for _, r := range s.Ranges {
		if r.Contains(n) {
			return Index(offset + int64(n-r.Min)), true
		}
		offset += r.Len()
	}
	return 0, false
}

// Number returns the frame number at position i.  It is the inverse of Index.
func (s Sequence) Number(i Index) (Number, bool) {
	if i < 0 {
		return 0, false
	}
	rest := int64(i)
	for _, r := range s.Ranges {
		if rest < r.Len() {
			return r.Min + Number(rest), true
		}
		rest -= r.Len()
	}
	return 0, false
}

// Equal reports whether both sequences hold the same ranges in the same order.
func (s Sequence) Equal(other Sequence) bool {
	if len(s.Ranges) != len(other.Ranges) {
		return false
	}
	for i := range s.Ranges {
		if s.Ranges[i] != other.Ranges[i] {
			return false
		}
	}
	return true
}

// String formats the sequence as comma separated ranges, e.g. "1-10,20".
func (s Sequence) String() string {
	parts := make([]string, 0, len(s.Ranges))
	for _, r := range s.Ranges {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ",")
}

func (s Sequence) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("Ranges", s.String())
	enc.AddInt64("FrameCount", s.FrameCount())
	return nil
}

// Parse reads a sequence in the format produced by String.
// Negative frame numbers are not supported since "-" separates the range bounds.
func Parse(s string) (Sequence, error) {
	var out Sequence
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		min, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
		if err != nil {
			return Sequence{}, fmt.Errorf("invalid frame %q: %w", lo, err)
		}
		max := min
		if isRange {
			max, err = strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
			if err != nil {
				return Sequence{}, fmt.Errorf("invalid frame %q: %w", hi, err)
			}
		}
		if max < min {
			return Sequence{}, fmt.Errorf("invalid range %q: %d > %d", part, min, max)
		}
		out.Ranges = append(out.Ranges, Range{Min: Number(min), Max: Number(max)})
	}
	return out, nil
}
