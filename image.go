package frameio

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// ImageInfo describes the layout of a decoded image: interleaved channels, rows top to bottom,
// 16-bit samples in big-endian order.
type ImageInfo struct {
	Width    int
	Height   int
	Channels int
	// BitDepth is 8 or 16.
	BitDepth int
}

// Validate reports layouts the readers and writers do not handle.
func (i ImageInfo) Validate() error {
	if i.Width <= 0 || i.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", i.Width, i.Height)
	}
	if i.Channels < 1 || i.Channels > 4 {
		return fmt.Errorf("invalid channel count %d", i.Channels)
	}
	if i.BitDepth != 8 && i.BitDepth != 16 {
		return fmt.Errorf("invalid bit depth %d", i.BitDepth)
	}
	return nil
}

// ByteCount returns the size of the pixel data.
func (i ImageInfo) ByteCount() int64 {
	return int64(i.Width) * int64(i.Height) * int64(i.Channels) * int64(i.BitDepth/8)
}

func (i ImageInfo) String() string {
	return fmt.Sprintf("%dx%d:%d/%d", i.Width, i.Height, i.Channels, i.BitDepth)
}

func (i ImageInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("Width", i.Width)
	enc.AddInt("Height", i.Height)
	enc.AddInt("Channels", i.Channels)
	enc.AddInt("BitDepth", i.BitDepth)
	return nil
}

// Image is decoded pixel data.  Images are shared between queues, caches and callers,
// so nothing modifies Data after the image has been handed out.
type Image struct {
	Info ImageInfo
	Data []byte
	Tags map[string]string
}

// NewImage allocates zeroed pixel data for info.
func NewImage(info ImageInfo) *Image {
	return &Image{Info: info, Data: make([]byte, info.ByteCount())}
}

// ByteCount returns the size of the pixel data actually held.
func (i *Image) ByteCount() int64 {
	if i == nil {
		return 0
	}
	return int64(len(i.Data))
}

// AudioDataInfo describes interleaved PCM samples.
type AudioDataInfo struct {
	Channels   int
	SampleRate int
	BitDepth   int
}

// Audio is a chunk of decoded PCM samples.
type Audio struct {
	Info AudioDataInfo
	Data []byte
}

// ByteCount returns the size of the sample data.
func (a *Audio) ByteCount() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}
