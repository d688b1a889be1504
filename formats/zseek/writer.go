package zseek

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/natefinch/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/frame"
)

// ZSTDEncoder is the compressor.  Tested with github.com/klauspost/compress/zstd.
type ZSTDEncoder interface {
	EncodeAll(src, dst []byte) []byte
}

var _ frameio.Encoder = (*encoder)(nil)

// encoder writes video frames into a .zfs file.  EncodeFrame may be called concurrently,
// WriteFrame and Close may not.
type encoder struct {
	w         io.Writer
	enc       ZSTDEncoder
	logger    *zap.Logger
	image     frameio.ImageInfo
	checksums bool

	frameEntries []seekTableEntry
	numbers      frame.Sequence
	// finish runs after the seek table was written.
	finish func(err error) error
}

func newEncoder(w io.Writer, enc ZSTDEncoder, info frameio.Info, checksums bool, logger *zap.Logger) (*encoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(info.Video) != 1 {
		return nil, fmt.Errorf("expected one video stream, got %d", len(info.Video))
	}
	if err := info.Video[0].Image.Validate(); err != nil {
		return nil, err
	}

	e := &encoder{
		w:         w,
		enc:       enc,
		logger:    logger,
		image:     info.Video[0].Image,
		checksums: checksums,
	}

	h, err := newHeader(info).marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}
	if err := e.write(h); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return e, nil
}

func (e *encoder) EncodeFrame(_ context.Context, f frameio.VideoFrame) ([]byte, error) {
	if f.Image == nil {
		return nil, fmt.Errorf("frame %d has no image", f.Number)
	}
	if f.Image.Info != e.image {
		return nil, fmt.Errorf("frame %d: image %s does not match stream %s", f.Number, f.Image.Info, e.image)
	}
	if int64(len(f.Image.Data)) != e.image.ByteCount() {
		return nil, fmt.Errorf("frame %d: %d bytes of data, expected %d", f.Number, len(f.Image.Data), e.image.ByteCount())
	}
	if int64(len(f.Image.Data)) > maxChunkSize {
		return nil, fmt.Errorf("chunk size too big for seekable format: %d > %d",
			len(f.Image.Data), maxChunkSize)
	}

	dst := e.enc.EncodeAll(f.Image.Data, nil)

	if int64(len(dst)) > maxChunkSize {
		return nil, fmt.Errorf("result size too big for seekable format: %d > %d",
			len(dst), maxChunkSize)
	}
	return dst, nil
}

func (e *encoder) WriteFrame(f frameio.VideoFrame, data []byte) error {
	if err := e.write(data); err != nil {
		return err
	}

	entry := seekTableEntry{
		CompressedSize:   uint32(len(data)),
		DecompressedSize: uint32(len(f.Image.Data)),
	}
	if e.checksums {
		entry.Checksum = uint32((xxhash.Sum64(f.Image.Data) << 32) >> 32)
	}
	e.logger.Debug("appending frame", zap.Int64("frame", int64(f.Number)), zap.Object("entry", &entry))
	e.frameEntries = append(e.frameEntries, entry)
	e.numbers = appendNumber(e.numbers, f.Number)
	return nil
}

func (e *encoder) Close() (err error) {
	err = e.writeFrameNumbers()
	if err == nil {
		err = e.writeSeekTable()
	}
	e.frameEntries = nil
	if e.finish != nil {
		err = e.finish(err)
	}
	return
}

func (e *encoder) writeFrameNumbers() error {
	p, err := marshalFrameNumbers(e.numbers)
	if err != nil {
		return err
	}
	return e.write(p)
}

func (e *encoder) writeSeekTable() error {
	seekTable, err := endStream(e.frameEntries, e.checksums)
	if err != nil {
		return err
	}
	return e.write(seekTable)
}

func (e *encoder) write(p []byte) error {
	n, err := e.w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("partial write: %d out of %d", n, len(p))
	}
	return nil
}

// createEncoder writes to a temporary file next to path that replaces path on Close, so an
// interrupted write never leaves a truncated file behind.
func createEncoder(path string, info frameio.Info, o Options, logger *zap.Logger) (*encoder, error) {
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(o.Level)))
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, multierr.Append(err, zenc.Close())
	}

	e, err := newEncoder(f, zenc, info, o.Checksums, logger)
	if err != nil {
		err = multierr.Combine(err, zenc.Close(), f.Close(), os.Remove(f.Name()))
		return nil, err
	}

	e.finish = func(err error) error {
		err = multierr.Combine(err, zenc.Close(), f.Close())
		if err == nil {
			err = atomic.ReplaceFile(f.Name(), path)
		}
		if err != nil {
			err = multierr.Append(err, os.Remove(f.Name()))
		}
		return err
	}
	return e, nil
}
