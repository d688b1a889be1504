package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/formats"
)

func newSystem(t *testing.T) *frameio.System {
	t.Helper()
	sys, err := formats.NewSystem(nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	return sys
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	sys := newSystem(t)
	before := string(sys.Options("png"))
	require.NoError(t, Load(filepath.Join(t.TempDir(), "missing.json"), sys))
	assert.Equal(t, before, string(sys.Options("png")))
	assert.False(t, sys.ObserveOptionsChanged().Get())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	// Smaller files.
	"plugins": {
		"png": {"compression": "best"},
		"jpeg": {"quality": 75,},
		"exr": {"dwa": 45},
	},
}`), 0o644))

	sys := newSystem(t)
	require.NoError(t, Load(path, sys))
	assert.JSONEq(t, `{"compression": "best"}`, string(sys.Options("png")))
	assert.JSONEq(t, `{"quality": 75}`, string(sys.Options("jpeg")))
	assert.JSONEq(t, `{"level": 1, "checksums": true}`, string(sys.Options("zseek")))
	assert.True(t, sys.ObserveOptionsChanged().Get())
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"plugins": `), 0o644))
	assert.ErrorContains(t, Load(broken, newSystem(t)), "failed to parse")

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"plugins": {
		"png": {"compression": "fastest"},
		"jpeg": {"quality": 0},
		"zseek": {"level": 5},
	}}`), 0o644))
	sys := newSystem(t)
	err := Load(invalid, sys)
	assert.ErrorContains(t, err, "plugin png")
	assert.ErrorContains(t, err, "plugin jpeg")
	assert.JSONEq(t, `{"level": 5, "checksums": true}`, string(sys.Options("zseek")), "valid entries still apply")
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")

	sys := newSystem(t)
	require.NoError(t, sys.SetOptions("zseek", []byte(`{"level": 9, "checksums": false}`)))
	require.NoError(t, Save(path, sys))

	loaded := newSystem(t)
	require.NoError(t, Load(path, loaded))
	for _, name := range sys.PluginNames() {
		assert.JSONEq(t, string(sys.Options(name)), string(loaded.Options(name)), name)
	}
}
