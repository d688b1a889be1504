package zseek

import (
	"context"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/frame"
)

// ZSTDDecoder is the decompressor.  Tested with github.com/klauspost/compress/zstd.
type ZSTDDecoder interface {
	DecodeAll(input, dst []byte) ([]byte, error)
}

var _ frameio.Decoder = (*decoder)(nil)

// decoder reads video frames from a .zfs file.  It is safe for concurrent use.
type decoder struct {
	r        io.ReaderAt
	size     int64
	closer   io.Closer
	dec      ZSTDDecoder
	logger   *zap.Logger
	fileName string

	header header
	index  *seekIndex
	// sequence holds the number of every stored frame in file order.
	sequence frame.Sequence
}

// newDecoder parses the header and the seek table of r.  closer, if not nil, is closed
// by Close.
func newDecoder(r io.ReaderAt, size int64, closer io.Closer, dec ZSTDDecoder, fileName string, logger *zap.Logger) (*decoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &decoder{
		r:        r,
		size:     size,
		closer:   closer,
		dec:      dec,
		logger:   logger,
		fileName: fileName,
	}

	h, dataStart, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	d.header = h

	index, err := readSeekTable(r, size, dataStart)
	if err != nil {
		return nil, fmt.Errorf("failed to read seek table: %w", err)
	}
	d.index = index

	if d.sequence, err = readFrameNumbers(r, h, index); err != nil {
		return nil, err
	}

	logger.Debug("indexed file",
		zap.Object("footer", &index.footer),
		zap.Int64("dataStart", dataStart))
	return d, nil
}

func (d *decoder) ReadInfo(context.Context) (frameio.Info, error) {
	return d.header.info(d.fileName, d.sequence), nil
}

func (d *decoder) DecodeFrame(_ context.Context, n frame.Number) (*frameio.Image, error) {
	id, ok := d.sequence.Index(n)
	if !ok {
		return nil, fmt.Errorf("frame %d is not in the file", n)
	}
	index, ok := d.index.Get(int64(id))
	if !ok {
		return nil, fmt.Errorf("frame %d is not in the file", n)
	}

	info := d.header.imageInfo()
	if int64(index.DecompSize) != info.ByteCount() {
		return nil, fmt.Errorf("frame %d: decompressed size %d does not match image %s",
			n, index.DecompSize, info)
	}
	if index.CompSize > maxDecoderFrameSize {
		return nil, fmt.Errorf("frame %d: compressed size %d > %d", n, index.CompSize, maxDecoderFrameSize)
	}

	src := make([]byte, index.CompSize)
	if _, err := d.r.ReadAt(src, int64(index.CompOffset)); err != nil {
		return nil, fmt.Errorf("failed to read compressed data at: %d, %w", index.CompOffset, err)
	}

	image := &frameio.Image{Info: info}
	var err error
	image.Data, err = d.dec.DecodeAll(src, make([]byte, 0, index.DecompSize))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data at: %d, %w", index.CompOffset, err)
	}
	if len(image.Data) != int(index.DecompSize) {
		return nil, fmt.Errorf("frame %d: decompressed %d bytes, expected %d", n, len(image.Data), index.DecompSize)
	}

	if d.index.checksums {
		checksum := uint32((xxhash.Sum64(image.Data) << 32) >> 32)
		if index.Checksum != checksum {
			return nil, fmt.Errorf("checksum verification failed at: %d: expected: %d, actual: %d",
				index.CompOffset, index.Checksum, checksum)
		}
	}

	d.logger.Debug("decoded frame", zap.Int64("frame", int64(n)), zap.Object("index", index))
	return image, nil
}

func (d *decoder) Close() (err error) {
	d.index.frames.Clear(false)
	if d.closer != nil {
		err = multierr.Append(err, d.closer.Close())
	}
	return
}
