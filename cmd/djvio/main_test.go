package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSequence(t *testing.T, dir string, from, to int) string {
	t.Helper()
	for n := from; n <= to; n++ {
		img := image.NewGray(image.Rect(0, 0, 4, 2))
		img.SetGray(0, 0, color.Gray{Y: uint8(n)})
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("shot.%04d.png", n)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	return filepath.Join(dir, fmt.Sprintf("shot.%04d.png", from))
}

func runTest(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	t.Log(stderr.String())
	return stdout.String(), code
}

func TestRunUsage(t *testing.T) {
	t.Parallel()

	_, code := runTest(t)
	assert.Equal(t, 2, code)
	_, code = runTest(t, "play")
	assert.Equal(t, 2, code)
	_, code = runTest(t, "--help")
	assert.Equal(t, 0, code)
}

func TestRunPlugins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.json")

	out, code := runTest(t, "--settings", settingsPath, "plugins", "--set", `jpeg={"quality": 70}`)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "zseek\tSeekable ZSTD frame container.")
	assert.Contains(t, out, "\textensions: .jpeg .jpg .jfif\n")
	assert.Contains(t, out, `options: {"quality":70}`)

	out, code = runTest(t, "--settings", settingsPath, "plugins")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `options: {"quality":70}`, "options are loaded from the settings file")

	_, code = runTest(t, "plugins", "--set", `jpeg={"quality": 70}`)
	assert.Equal(t, 1, code, "nowhere to save")
	_, code = runTest(t, "--settings", settingsPath, "plugins", "--set", `exr={}`)
	assert.Equal(t, 1, code)
}

func TestRunConvert(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeSequence(t, dir, 1, 12)
	movie := filepath.Join(dir, "shot.zfs")

	_, code := runTest(t, "-v", "--threads", "3", "convert", first, movie)
	require.Equal(t, 0, code)

	out, code := runTest(t, "info", movie)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "video 0: 4x2:1/8, 24 fps, frames 1-12 (12)")

	out, code = runTest(t, "cache", "--read-behind", "0", movie)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "frames: 12 in ")
	assert.Contains(t, out, "cache: 96 of 1073741824 bytes\n")
	assert.Contains(t, out, "cached: 0-11\n")

	// And back to a sequence with a different padding.
	_, code = runTest(t, "convert", movie, filepath.Join(dir, "copy.01.png"))
	require.Equal(t, 0, code)
	for _, name := range []string{"copy.01.png", "copy.12.png"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestRunConvertGap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeSequence(t, dir, 1, 12)
	require.NoError(t, os.Remove(filepath.Join(dir, "shot.0005.png")))
	movie := filepath.Join(dir, "shot.zfs")

	_, code := runTest(t, "convert", first, movie)
	require.Equal(t, 0, code)

	out, code := runTest(t, "info", movie)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "frames 1-4,6-12 (11)")

	_, code = runTest(t, "convert", movie, filepath.Join(dir, "back.0001.png"))
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(dir, "back.0006.png"))
	assert.NoFileExists(t, filepath.Join(dir, "back.0005.png"))
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"), true)
	assert.ErrorContains(t, err, "failed to read config file")

	path := filepath.Join(dir, "djvio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plugins: [png, zseek]
threads: 2
read:
  cache:
    enabled: true
    max_bytes: 1024
`), 0o644))
	cfg, err = LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"png", "zseek"}, cfg.Plugins)
	assert.Equal(t, DefaultConfig().Read.VideoQueueSize, cfg.Read.VideoQueueSize)

	ro, err := cfg.ReadOptions(zap.NewNop())
	require.NoError(t, err)
	assert.True(t, ro.CacheEnabled)
	assert.EqualValues(t, 1024, ro.CacheMaxByteCount)
	assert.Equal(t, 2, ro.ThreadCount)

	require.NoError(t, os.WriteFile(path, []byte("threads: -1\n"), 0o644))
	_, err = LoadConfig(path, true)
	assert.ErrorContains(t, err, "invalid configuration")
}
