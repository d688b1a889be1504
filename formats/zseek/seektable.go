package zseek

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/google/btree"
	"go.uber.org/zap/zapcore"
)

/*
A .zfs file is a sequence of ZSTD frames:

	|`Header`|`Video_Frame` * N|`Seek_Table`|

Header is a skippable frame (tag 0x0) holding the JSON encoded stream description.
Every video frame is compressed into exactly one ZSTD frame.  Seek_Table is a skippable
frame (tag 0xE) in the ZSTD seekable format:

	|`Skippable_Magic_Number`|`Frame_Size`|`[Seek_Table_Entries]`|`Seek_Table_Footer`|
	|------------------------|------------|----------------------|-------------------|
	| 4 bytes                | 4 bytes    | 8-12 bytes each      | 9 bytes           |

https://github.com/facebook/zstd/blob/dev/contrib/seekable_format/zstd_seekable_compression_format.md
*/
const (
	skippableFrameMagic uint32 = 0x184D2A50
	seekableMagicNumber uint32 = 0x8F92EAB1

	headerTag   = 0x0
	framesTag   = 0x1
	seekableTag = 0xE

	skippableHeaderSize   = 8
	seekTableFooterOffset = 9

	// maxDecoderFrameSize bounds the compressed frames read from untrusted files.
	maxDecoderFrameSize = 512 << 20

	maxChunkSize      int64 = math.MaxUint32
	maxNumberOfFrames int64 = math.MaxUint32
)

// seekTableDescriptor is the bitfield following Number_Of_Frames.  Bit 7 is Checksum_Flag,
// bits 6-2 are reserved and must be 0.
type seekTableDescriptor struct {
	ChecksumFlag bool
}

func (d *seekTableDescriptor) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("ChecksumFlag", d.ChecksumFlag)
	return nil
}

/*
seekTableFooter is the footer of the seek table.

	|`Number_Of_Frames`|`Seek_Table_Descriptor`|`Seekable_Magic_Number`|
	|------------------|-----------------------|-----------------------|
	| 4 bytes          | 1 byte                | 4 bytes               |
*/
type seekTableFooter struct {
	NumberOfFrames      uint32
	SeekTableDescriptor seekTableDescriptor
	SeekableMagicNumber uint32
}

func (f *seekTableFooter) marshalBinaryInline(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], f.NumberOfFrames)
	if f.SeekTableDescriptor.ChecksumFlag {
		dst[4] |= 1 << 7
	}
	binary.LittleEndian.PutUint32(dst[5:], seekableMagicNumber)
}

func (f *seekTableFooter) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint32("NumberOfFrames", f.NumberOfFrames)
	if err := enc.AddObject("SeekTableDescriptor", &f.SeekTableDescriptor); err != nil {
		return err
	}
	enc.AddUint32("SeekableMagicNumber", f.SeekableMagicNumber)
	return nil
}

func (f *seekTableFooter) UnmarshalBinary(p []byte) error {
	if len(p) != seekTableFooterOffset {
		return fmt.Errorf("footer length mismatch %d vs %d", len(p), seekTableFooterOffset)
	}
	if reservedBits := (p[4] << 1) >> 3; reservedBits != 0 {
		return fmt.Errorf("footer reserved bits %d != 0", reservedBits)
	}
	f.NumberOfFrames = binary.LittleEndian.Uint32(p[0:])
	f.SeekTableDescriptor.ChecksumFlag = (p[4] & (1 << 7)) > 0
	f.SeekableMagicNumber = binary.LittleEndian.Uint32(p[5:])
	if f.SeekableMagicNumber != seekableMagicNumber {
		return fmt.Errorf("footer magic mismatch %d vs %d", f.SeekableMagicNumber, seekableMagicNumber)
	}
	return nil
}

func (f *seekTableFooter) entrySize() int64 {
	if f.SeekTableDescriptor.ChecksumFlag {
		return 12
	}
	return 8
}

/*
seekTableEntry describes one compressed video frame.

	|`Compressed_Size`|`Decompressed_Size`|`[Checksum]`|
	|-----------------|-------------------|------------|
	| 4 bytes         | 4 bytes           | 4 bytes    |

Checksum is the least significant 32 bits of the XXH64 digest of the pixel data and is
only present when Checksum_Flag is set.
*/
type seekTableEntry struct {
	CompressedSize   uint32
	DecompressedSize uint32
	Checksum         uint32
}

func (e *seekTableEntry) marshalBinaryInline(dst []byte, checksum bool) {
	binary.LittleEndian.PutUint32(dst[0:], e.CompressedSize)
	binary.LittleEndian.PutUint32(dst[4:], e.DecompressedSize)
	if checksum {
		binary.LittleEndian.PutUint32(dst[8:], e.Checksum)
	}
}

func (e *seekTableEntry) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint32("CompressedSize", e.CompressedSize)
	enc.AddUint32("DecompressedSize", e.DecompressedSize)
	enc.AddUint32("Checksum", e.Checksum)
	return nil
}

func (e *seekTableEntry) UnmarshalBinary(p []byte) error {
	if len(p) < 8 {
		return fmt.Errorf("entry length mismatch %d vs %d", len(p), 8)
	}
	e.CompressedSize = binary.LittleEndian.Uint32(p[0:])
	e.DecompressedSize = binary.LittleEndian.Uint32(p[4:])
	e.Checksum = 0
	if len(p) >= 12 {
		e.Checksum = binary.LittleEndian.Uint32(p[8:])
	}
	return nil
}

// createSkippableFrame wraps payload into a ZSTD skippable frame with the given tag.
//
//	| `Magic_Number` | `Frame_Size` | `User_Data` |
//	|:--------------:|:------------:|:-----------:|
//	|   4 bytes      |  4 bytes     |   n bytes   |
func createSkippableFrame(tag uint32, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	if tag > 0xf {
		return nil, fmt.Errorf("requested tag (%d) > 0xf", tag)
	}
	if int64(len(payload)) > maxChunkSize {
		return nil, fmt.Errorf("requested skippable frame size (%d) > max uint32", len(payload))
	}

	dst := make([]byte, skippableHeaderSize, len(payload)+skippableHeaderSize)
	binary.LittleEndian.PutUint32(dst[0:], skippableFrameMagic+tag)
	binary.LittleEndian.PutUint32(dst[4:], uint32(len(payload)))
	return append(dst, payload...), nil
}

// readSkippableFrame reads the skippable frame with the given tag at off and returns its
// payload.
func readSkippableFrame(r io.ReaderAt, off int64, tag uint32) ([]byte, error) {
	buf := make([]byte, skippableHeaderSize)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("failed to read skippable frame at %d: %w", off, err)
	}
	if magic := binary.LittleEndian.Uint32(buf[0:]); magic != skippableFrameMagic+tag {
		return nil, fmt.Errorf("skippable frame magic mismatch %d vs %d", magic, skippableFrameMagic+tag)
	}
	size := binary.LittleEndian.Uint32(buf[4:])
	if size > maxDecoderFrameSize {
		return nil, fmt.Errorf("skippable frame too big: %d > %d", size, maxDecoderFrameSize)
	}
	payload := make([]byte, size)
	if _, err := r.ReadAt(payload, off+skippableHeaderSize); err != nil {
		return nil, fmt.Errorf("failed to read skippable frame payload at %d: %w", off, err)
	}
	return payload, nil
}

// endStream returns the seek table of entries as a skippable frame.
func endStream(entries []seekTableEntry, checksum bool) ([]byte, error) {
	if int64(len(entries)) > maxNumberOfFrames {
		return nil, fmt.Errorf("number of frames for seekable format: %d > %d",
			len(entries), maxNumberOfFrames)
	}

	footer := seekTableFooter{
		NumberOfFrames:      uint32(len(entries)),
		SeekTableDescriptor: seekTableDescriptor{ChecksumFlag: checksum},
		SeekableMagicNumber: seekableMagicNumber,
	}
	size := int(footer.entrySize())

	seekTable := make([]byte, len(entries)*size+seekTableFooterOffset)
	for i := range entries {
		entries[i].marshalBinaryInline(seekTable[i*size:(i+1)*size], checksum)
	}
	footer.marshalBinaryInline(seekTable[len(entries)*size:])
	return createSkippableFrame(seekableTag, seekTable)
}

// frameOffset locates one compressed video frame in the file.
type frameOffset struct {
	// ID is the position of the frame in the file, starting at 0.
	ID int64

	CompOffset uint64
	CompSize   uint32
	DecompSize uint32
	Checksum   uint32
}

func (o frameOffset) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("ID", o.ID)
	enc.AddUint64("CompOffset", o.CompOffset)
	enc.AddUint32("CompSize", o.CompSize)
	enc.AddUint32("DecompSize", o.DecompSize)
	enc.AddUint32("Checksum", o.Checksum)
	return nil
}

func frameOffsetLess(a, b frameOffset) bool {
	return a.ID < b.ID
}

// seekIndex is the parsed seek table.
type seekIndex struct {
	frames    *btree.BTreeG[frameOffset]
	footer    seekTableFooter
	checksums bool

	// dataEnd is where the last video frame ends, tableStart where the seek table begins.
	// The frame numbers frame, if any, sits between them.
	dataEnd    int64
	tableStart int64
}

func (s *seekIndex) Get(id int64) (frameOffset, bool) {
	return s.frames.Get(frameOffset{ID: id})
}

func (s *seekIndex) Len() int64 {
	return int64(s.frames.Len())
}

// readSeekTable parses the seek table at the end of a file of the given size.  Video frames
// start at dataStart and end at or before the start of the seek table.
func readSeekTable(r io.ReaderAt, size, dataStart int64) (*seekIndex, error) {
	if size < dataStart+skippableHeaderSize+seekTableFooterOffset {
		return nil, fmt.Errorf("file too short: %d bytes", size)
	}

	buf := make([]byte, seekTableFooterOffset)
	if _, err := r.ReadAt(buf, size-seekTableFooterOffset); err != nil {
		return nil, fmt.Errorf("failed to read footer: %w", err)
	}
	var footer seekTableFooter
	if err := footer.UnmarshalBinary(buf); err != nil {
		return nil, err
	}

	entrySize := footer.entrySize()
	tableSize := entrySize*int64(footer.NumberOfFrames) + seekTableFooterOffset
	tableOffset := size - tableSize - skippableHeaderSize
	if tableOffset < dataStart {
		return nil, fmt.Errorf("seek table of %d frames does not fit in %d bytes", footer.NumberOfFrames, size)
	}

	payload, err := readSkippableFrame(r, tableOffset, seekableTag)
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) != tableSize {
		return nil, fmt.Errorf("skippable frame size mismatch %d vs %d", len(payload), tableSize)
	}

	index := &seekIndex{
		frames:    btree.NewG(16, frameOffsetLess),
		footer:    footer,
		checksums: footer.SeekTableDescriptor.ChecksumFlag,
	}
	var entry seekTableEntry
	compOffset := uint64(dataStart)
	for i := int64(0); i < int64(footer.NumberOfFrames); i++ {
		if err := entry.UnmarshalBinary(payload[i*entrySize : (i+1)*entrySize]); err != nil {
			return nil, err
		}
		index.frames.ReplaceOrInsert(frameOffset{
			ID:         i,
			CompOffset: compOffset,
			CompSize:   entry.CompressedSize,
			DecompSize: entry.DecompressedSize,
			Checksum:   entry.Checksum,
		})
		compOffset += uint64(entry.CompressedSize)
	}
	if compOffset > uint64(tableOffset) {
		return nil, fmt.Errorf("frames end at %d, seek table starts at %d", compOffset, tableOffset)
	}
	index.dataEnd = int64(compOffset)
	index.tableStart = tableOffset
	return index, nil
}
