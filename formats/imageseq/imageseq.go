package imageseq

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/frame"
)

// DecodeFunc decodes one file.
type DecodeFunc func(r io.Reader) (image.Image, error)

// EncodeFunc encodes one image.
type EncodeFunc func(w io.Writer, img image.Image) error

var (
	_ frameio.Decoder = (*Decoder)(nil)
	_ frameio.Encoder = (*Encoder)(nil)
)

// Decoder reads the files of a numbered sequence, one frame per file.
type Decoder struct {
	fi     fileinfo.Info
	decode DecodeFunc
	logger *zap.Logger

	image frameio.ImageInfo
}

func NewDecoder(fi fileinfo.Info, decode DecodeFunc, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{fi: fi, decode: decode, logger: logger}
}

// Frames returns the frames fi refers to: its sequence, or the single number in its name.
func Frames(fi fileinfo.Info) frame.Sequence {
	if fi.Type == fileinfo.Sequence && !fi.Sequence.IsEmpty() {
		return fi.Sequence
	}
	n, err := strconv.ParseInt(fi.Path.Number, 10, 64)
	if err != nil {
		n = 0
	}
	return frame.NewSequence(frame.NewRange(frame.Number(n)))
}

// ReadInfo decodes the first frame to learn the image layout.
func (d *Decoder) ReadInfo(ctx context.Context) (frameio.Info, error) {
	seq := Frames(d.fi)
	first := seq.Ranges[0].Min
	img, err := d.read(first)
	if err != nil {
		return frameio.Info{}, err
	}
	d.image = img.Info

	return frameio.Info{
		FileName: d.fi.String(),
		Video: []frameio.VideoInfo{{
			Image:    img.Info,
			Speed:    frameio.DefaultSpeed,
			Sequence: seq,
		}},
	}, nil
}

func (d *Decoder) DecodeFrame(_ context.Context, n frame.Number) (*frameio.Image, error) {
	img, err := d.read(n)
	if err != nil {
		return nil, err
	}
	if img.Info != d.image {
		return nil, fmt.Errorf("frame %d: image %s does not match sequence %s", n, img.Info, d.image)
	}
	return img, nil
}

func (d *Decoder) read(n frame.Number) (*frameio.Image, error) {
	name := d.fi.FileName(n)
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoded, err := d.decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	d.logger.Debug("decoded", zap.String("file", name))
	return FromImage(decoded)
}

func (d *Decoder) Close() error {
	return nil
}

// Encoder writes every frame to its own file.  Files are replaced atomically.
type Encoder struct {
	fi     fileinfo.Info
	encode EncodeFunc
	logger *zap.Logger
}

// NewEncoder writes the frames of fi.  A numbered file name is treated as the first file of
// a sequence.
func NewEncoder(fi fileinfo.Info, encode EncodeFunc, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fi.Type == fileinfo.File && fi.Path.Number != "" {
		fi.Type = fileinfo.Sequence
	}
	return &Encoder{fi: fi, encode: encode, logger: logger}
}

func (e *Encoder) EncodeFrame(_ context.Context, f frameio.VideoFrame) ([]byte, error) {
	if f.Image == nil {
		return nil, fmt.Errorf("frame %d has no image", f.Number)
	}
	img, err := ToImage(f.Image)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", f.Number, err)
	}
	var b bytes.Buffer
	if err := e.encode(&b, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame %d: %w", f.Number, err)
	}
	return b.Bytes(), nil
}

func (e *Encoder) WriteFrame(f frameio.VideoFrame, data []byte) error {
	name := e.fi.FileName(f.Number)
	if err := atomic.WriteFile(name, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	e.logger.Debug("wrote", zap.String("file", name), zap.Int("bytes", len(data)))
	return nil
}

func (e *Encoder) Close() error {
	return nil
}
