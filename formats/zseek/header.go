package zseek

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/frame"
)

// header is the stream description stored in the first skippable frame.
type header struct {
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Channels int               `json:"channels"`
	BitDepth int               `json:"bitDepth"`
	SpeedNum int64             `json:"speedNum"`
	SpeedDen int64             `json:"speedDen"`
	Start    frame.Number      `json:"start"`
	Tags     map[string]string `json:"tags,omitempty"`
}

func newHeader(info frameio.Info) header {
	video := info.Video[0]
	h := header{
		Width:    video.Image.Width,
		Height:   video.Image.Height,
		Channels: video.Image.Channels,
		BitDepth: video.Image.BitDepth,
		SpeedNum: video.Speed.Num,
		SpeedDen: video.Speed.Den,
		Tags:     info.Tags,
	}
	if len(video.Sequence.Ranges) > 0 {
		h.Start = video.Sequence.Ranges[0].Min
	}
	return h
}

func (h header) imageInfo() frameio.ImageInfo {
	return frameio.ImageInfo{Width: h.Width, Height: h.Height, Channels: h.Channels, BitDepth: h.BitDepth}
}

// info returns the file information of a file holding the frames of seq.
func (h header) info(fileName string, seq frame.Sequence) frameio.Info {
	video := frameio.VideoInfo{
		Image:    h.imageInfo(),
		Speed:    frameio.Speed{Num: h.SpeedNum, Den: h.SpeedDen},
		Sequence: seq,
	}
	return frameio.Info{
		FileName: fileName,
		Video:    []frameio.VideoInfo{video},
		Tags:     h.Tags,
	}
}

func (h header) marshal() ([]byte, error) {
	payload, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return createSkippableFrame(headerTag, payload)
}

// readHeader reads the header frame at the start of r and returns it with its size.
func readHeader(r io.ReaderAt) (header, int64, error) {
	payload, err := readSkippableFrame(r, 0, headerTag)
	if err != nil {
		return header{}, 0, fmt.Errorf("failed to read header: %w", err)
	}
	var h header
	if err := json.Unmarshal(payload, &h); err != nil {
		return header{}, 0, fmt.Errorf("failed to parse header: %w", err)
	}
	if err := h.imageInfo().Validate(); err != nil {
		return header{}, 0, fmt.Errorf("invalid header: %w", err)
	}
	return h, skippableHeaderSize + int64(len(payload)), nil
}

// appendNumber adds n to the end of seq, extending the last range when n follows it.
func appendNumber(seq frame.Sequence, n frame.Number) frame.Sequence {
	if last := len(seq.Ranges) - 1; last >= 0 && seq.Ranges[last].Max+1 == n {
		seq.Ranges[last].Max = n
		return seq
	}
	seq.Ranges = append(seq.Ranges, frame.NewRange(n))
	return seq
}

// marshalFrameNumbers returns seq as the skippable frame stored before the seek table.
func marshalFrameNumbers(seq frame.Sequence) ([]byte, error) {
	if seq.IsEmpty() {
		return nil, nil
	}
	payload, err := json.Marshal(seq.Ranges)
	if err != nil {
		return nil, err
	}
	return createSkippableFrame(framesTag, payload)
}

// readFrameNumbers returns the numbers of the stored frames in file order.  They are kept
// in a skippable frame between the video frames and the seek table; files without one hold
// a contiguous run starting at the header's start frame.
func readFrameNumbers(r io.ReaderAt, h header, index *seekIndex) (frame.Sequence, error) {
	n := index.Len()
	if index.dataEnd == index.tableStart {
		if n == 0 {
			return frame.Sequence{}, nil
		}
		return frame.NewSequence(frame.Range{Min: h.Start, Max: h.Start + frame.Number(n) - 1}), nil
	}

	payload, err := readSkippableFrame(r, index.dataEnd, framesTag)
	if err != nil {
		return frame.Sequence{}, fmt.Errorf("failed to read frame numbers: %w", err)
	}
	if end := index.dataEnd + skippableHeaderSize + int64(len(payload)); end != index.tableStart {
		return frame.Sequence{}, fmt.Errorf("frame numbers end at %d, seek table starts at %d", end, index.tableStart)
	}
	var seq frame.Sequence
	if err := json.Unmarshal(payload, &seq.Ranges); err != nil {
		return frame.Sequence{}, fmt.Errorf("failed to parse frame numbers: %w", err)
	}
	if seq.FrameCount() != n {
		return frame.Sequence{}, fmt.Errorf("%d frame numbers for %d frames", seq.FrameCount(), n)
	}
	return seq, nil
}
