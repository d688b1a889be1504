package zseek

import (
	"encoding/json"
	"os"
	"path/filepath"
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

func TestPluginOptions(t *testing.T) {
	t.Parallel()

	p := New(zaptest.NewLogger(t))
	assert.Equal(t, Name, p.Name())
	assert.Equal(t, []string{".zfs"}, p.FileExtensions())
	assert.False(t, p.CanSequence())
	assert.JSONEq(t, `{"level":1,"checksums":true}`, string(p.Options()))

	require.NoError(t, p.SetOptions(json.RawMessage(`{"level":19}`)))
	assert.JSONEq(t, `{"level":19,"checksums":true}`, string(p.Options()))

	assert.Error(t, p.SetOptions(json.RawMessage(`{"level":0}`)))
	assert.Error(t, p.SetOptions(json.RawMessage(`{"quality":90}`)))
	assert.Error(t, p.SetOptions(json.RawMessage(`[`)))
	assert.JSONEq(t, `{"level":19,"checksums":true}`, string(p.Options()))
}

func TestPluginCanWrite(t *testing.T) {
	t.Parallel()

	p := New(nil)
	fi := fileinfo.New("/out/clip.ZFS")
	assert.True(t, p.CanRead(fi))
	assert.True(t, p.CanWrite(fi, testInfo(0, 1)))
	assert.False(t, p.CanWrite(fi, frameio.Info{}))
	assert.False(t, p.CanWrite(fileinfo.New("clip.png"), testInfo(0, 1)))
}

func TestPluginRoundTrip(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	sys, err := frameio.NewSystem([]frameio.Plugin{New(logger)}, frameio.WithSLogger(logger))
	require.NoError(t, err)
	require.NoError(t, sys.SetOptions(Name, json.RawMessage(`{"level":3}`)))

	path := filepath.Join(t.TempDir(), "clip.zfs")
	fi := fileinfo.New(path)
	info := testInfo(1001, 24)

	wo, err := options.NewWriteOptions(options.WithWLogger(logger), options.WithWThreadCount(4))
	require.NoError(t, err)
	w, err := sys.Write(fi, info, wo)
	require.NoError(t, err)
	for n := frame.Number(1001); n <= 1024; n++ {
		require.NoError(t, w.AddVideoFrame(testFrame(n)))
	}
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "the file appears on close")
	require.NoError(t, w.Close())

	ro, err := options.NewReadOptions(options.WithRLogger(logger), options.WithCache(1<<20, 2))
	require.NoError(t, err)
	r, err := sys.Read(fi, ro)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()

	got := r.Info()
	got.FileName = info.FileName
	assert.True(t, info.Equal(got), "%+v", got)

	r.Seek(20, frameio.Forward)
	var numbers []frame.Number
	deadline := time.Now().Add(10 * time.Second)
	for !r.IsVideoEnded() {
		require.True(t, time.Now().Before(deadline))
		f, ok := r.PopVideoFrame()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		assert.Equal(t, testFrame(f.Number).Image, f.Image)
		numbers = append(numbers, f.Number)
	}
	assert.Equal(t, []frame.Number{1021, 1022, 1023, 1024}, numbers)
	assert.Equal(t, []frame.Range{{Min: 20, Max: 23}}, r.CachedFrames())
}

func TestPluginReadMissing(t *testing.T) {
	t.Parallel()

	p := New(nil)
	_, err := p.Read(fileinfo.New(filepath.Join(t.TempDir(), "missing.zfs")), options.ReadOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "garbage.zfs")
	require.NoError(t, os.WriteFile(path, []byte("not a zfs file at all"), 0o644))
	_, err = p.Read(fileinfo.New(path), options.ReadOptions{})
	assert.Error(t, err)
}
