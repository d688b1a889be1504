// Package frameio reads and writes image and video frame sequences through format plugins.
//
// A System owns the installed plugins and dispatches each open request to the first
// plugin that claims the file.  Readers decode frames in the background into a bounded
// video queue and keep recently decoded frames in a direction-aware MemoryCache so that
// scrubbing and looping do not decode the same frame twice.  Callers never block on the
// decoder: they poll the queues and the cache.
package frameio

import (
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap/zapcore"

	"github.com/SaveTheRbtz/frameio/frame"
)

// Direction is the playback direction.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Speed is a frame rate expressed as a rational number.
type Speed struct {
	Num int64
	Den int64
}

// DefaultSpeed is 24 frames per second.
var DefaultSpeed = Speed{Num: 24, Den: 1}

// FPS returns the speed as frames per second, or 0 for an invalid speed.
func (s Speed) FPS() float64 {
	if s.Den == 0 {
		return 0
	}
	return float64(s.Num) / float64(s.Den)
}

func (s Speed) String() string {
	return fmt.Sprintf("%.3g fps", s.FPS())
}

// VideoInfo describes one video stream.
type VideoInfo struct {
	Image    ImageInfo
	Speed    Speed
	Sequence frame.Sequence
}

func (v VideoInfo) Equal(other VideoInfo) bool {
	return v.Image == other.Image && v.Speed == other.Speed && v.Sequence.Equal(other.Sequence)
}

func (v VideoInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if err := enc.AddObject("Image", v.Image); err != nil {
		return err
	}
	enc.AddString("Speed", v.Speed.String())
	return enc.AddObject("Sequence", v.Sequence)
}

// AudioInfo describes one audio stream.
type AudioInfo struct {
	Data        AudioDataInfo
	SampleCount int64
}

// Info describes the contents of a file.
type Info struct {
	FileName string
	Video    []VideoInfo
	Audio    []AudioInfo
	Tags     map[string]string
}

// Equal compares two Infos structurally.
func (i Info) Equal(other Info) bool {
	return i.FileName == other.FileName &&
		slices.EqualFunc(i.Video, other.Video, VideoInfo.Equal) &&
		slices.Equal(i.Audio, other.Audio) &&
		maps.Equal(i.Tags, other.Tags)
}

func (i Info) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("FileName", i.FileName)
	for n, v := range i.Video {
		if err := enc.AddObject(fmt.Sprintf("Video%d", n), v); err != nil {
			return err
		}
	}
	enc.AddInt("AudioStreams", len(i.Audio))
	return nil
}

// VideoFrame is a decoded image and the frame number it belongs to.
// The zero value, with a nil Image, is the empty frame.
type VideoFrame struct {
	Number frame.Number
	Image  *Image
}

// AudioFrame is a decoded chunk of audio.  The zero value is the empty frame.
type AudioFrame struct {
	Audio *Audio
}
