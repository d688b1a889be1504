package formats

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/frame"
	"github.com/SaveTheRbtz/frameio/options"
)

func TestNew(t *testing.T) {
	t.Parallel()

	plugins, err := New(nil, nil)
	require.NoError(t, err)
	require.Len(t, plugins, 3)
	assert.Equal(t, []string{"zseek", "png", "jpeg"}, Names())

	plugins, err = New([]string{"jpeg", "zseek"}, nil)
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	assert.Equal(t, "zseek", plugins[0].Name(), "registration order does not depend on the name order")
	assert.Equal(t, "jpeg", plugins[1].Name())

	_, err = New([]string{"exr"}, nil)
	assert.ErrorContains(t, err, `unknown plugin "exr"`)
}

func TestSystem(t *testing.T) {
	t.Parallel()

	sys, err := NewSystem(nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{".png", ".jpeg", ".jpg", ".jfif"}, sys.SequenceExtensions())
	assert.Equal(t, []string{".zfs", ".png", ".jpeg", ".jpg", ".jfif"}, sys.FileExtensions())
	assert.True(t, sys.CanSequence(fileinfo.New("a.0001.JPG")))
	assert.False(t, sys.CanSequence(fileinfo.New("a.zfs")))
}

func gradient(info frameio.ImageInfo, n frame.Number) *frameio.Image {
	img := frameio.NewImage(info)
	for i := range img.Data {
		img.Data[i] = byte(i*3 + int(n))
	}
	if info.Channels == 4 {
		// Keep alpha below 255 so the image is not reported as opaque.
		for i := info.BitDepth / 8 * 3; i < len(img.Data); i += info.Channels * info.BitDepth / 8 {
			img.Data[i] = 0x7f
		}
	}
	return img
}

// Frames written through one format come back unchanged.
func TestLosslessRoundTrip(t *testing.T) {
	t.Parallel()

	for i, tc := range []struct {
		name string
		info frameio.ImageInfo
	}{
		{"render.0008.png", frameio.ImageInfo{Width: 5, Height: 3, Channels: 1, BitDepth: 8}},
		{"render.0008.png", frameio.ImageInfo{Width: 5, Height: 3, Channels: 1, BitDepth: 16}},
		{"render.0008.png", frameio.ImageInfo{Width: 5, Height: 3, Channels: 3, BitDepth: 8}},
		{"render.0008.png", frameio.ImageInfo{Width: 5, Height: 3, Channels: 4, BitDepth: 8}},
		{"render.0008.png", frameio.ImageInfo{Width: 5, Height: 3, Channels: 3, BitDepth: 16}},
		{"render.0008.png", frameio.ImageInfo{Width: 5, Height: 3, Channels: 4, BitDepth: 16}},
		{"render.zfs", frameio.ImageInfo{Width: 5, Height: 3, Channels: 2, BitDepth: 16}},
	} {
		tc := tc
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			t.Parallel()

			logger := zaptest.NewLogger(t)
			sys, err := NewSystem(nil, logger)
			require.NoError(t, err)

			seq := frame.NewSequence(frame.Range{Min: 8, Max: 12})
			path := filepath.Join(t.TempDir(), tc.name)
			info := frameio.Info{
				FileName: path,
				Video:    []frameio.VideoInfo{{Image: tc.info, Speed: frameio.DefaultSpeed, Sequence: seq}},
			}

			wo, err := options.NewWriteOptions(options.WithWLogger(logger))
			require.NoError(t, err)
			w, err := sys.Write(fileinfo.New(path), info, wo)
			require.NoError(t, err)
			for n := frame.Number(8); n <= 12; n++ {
				require.NoError(t, w.AddVideoFrame(frameio.VideoFrame{Number: n, Image: gradient(tc.info, n)}))
			}
			require.NoError(t, w.Close())

			fi, err := fileinfo.Scan(path)
			require.NoError(t, err)
			if fi.Extension() == ".png" {
				assert.Equal(t, fileinfo.Sequence, fi.Type)
				assert.True(t, seq.Equal(fi.Sequence), "%s", fi.Sequence)
			}

			ro, err := options.NewReadOptions(options.WithRLogger(logger))
			require.NoError(t, err)
			r, err := sys.Read(fi, ro)
			require.NoError(t, err)
			defer r.Close()

			require.Len(t, r.Info().Video, 1)
			assert.Equal(t, tc.info, r.Info().Video[0].Image)
			assert.True(t, seq.Equal(r.Info().Video[0].Sequence))

			var got []frame.Number
			require.Eventually(t, func() bool {
				for {
					f, ok := r.PopVideoFrame()
					if !ok {
						return r.IsVideoEnded()
					}
					assert.Equal(t, gradient(tc.info, f.Number).Data, f.Image.Data, "frame %d", f.Number)
					got = append(got, f.Number)
				}
			}, 10*time.Second, time.Millisecond)
			assert.Equal(t, []frame.Number{8, 9, 10, 11, 12}, got)
		})
	}
}

func TestJPEGRoundTrip(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	sys, err := NewSystem([]string{"jpeg"}, logger)
	require.NoError(t, err)

	info := frameio.Info{Video: []frameio.VideoInfo{{
		Image:    frameio.ImageInfo{Width: 16, Height: 16, Channels: 3, BitDepth: 8},
		Sequence: frame.NewSequence(frame.NewRange(1)),
	}}}
	path := filepath.Join(t.TempDir(), "still.jpg")

	assert.False(t, sys.CanWrite(fileinfo.New(path), frameio.Info{Video: []frameio.VideoInfo{{
		Image: frameio.ImageInfo{Width: 16, Height: 16, Channels: 4, BitDepth: 8},
	}}}))

	w, err := sys.Write(fileinfo.New(path), info, options.WriteOptions{Logger: logger, VideoQueueSize: 1, ThreadCount: 1})
	require.NoError(t, err)
	img := frameio.NewImage(info.Video[0].Image)
	for i := range img.Data {
		img.Data[i] = 0x80
	}
	require.NoError(t, w.AddVideoFrame(frameio.VideoFrame{Number: 1, Image: img}))
	require.NoError(t, w.Close())

	ro, err := options.NewReadOptions(options.WithRLogger(logger))
	require.NoError(t, err)
	r, err := sys.Read(fileinfo.New(path), ro)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, info.Video[0].Image, r.Info().Video[0].Image)

	var f frameio.VideoFrame
	require.Eventually(t, func() bool {
		var ok bool
		f, ok = r.PopVideoFrame()
		return ok
	}, 10*time.Second, time.Millisecond)
	for _, b := range f.Image.Data {
		assert.InDelta(t, 0x80, int(b), 2)
	}
}
