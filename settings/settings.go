// Package settings persists the plugin options of a frameio.System.
//
// The settings file is JSON with comments and trailing commas allowed:
//
//	{
//		// Plugin options by plugin name.
//		"plugins": {
//			"png": {"compression": "best"},
//			"zseek": {"level": 3},
//		},
//	}
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
	"go.uber.org/multierr"

	"github.com/SaveTheRbtz/frameio"
)

type document struct {
	Plugins map[string]json.RawMessage `json:"plugins"`
}

// Load applies the plugin options stored at path.  A missing file leaves the options untouched.
// Every plugin entry is applied even if an earlier one fails; the errors are combined.
func Load(path string, sys *frameio.System) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	doc, err := parse(b)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for _, name := range sys.PluginNames() {
		v, ok := doc.Plugins[name]
		if !ok {
			continue
		}
		if setErr := sys.SetOptions(name, v); setErr != nil {
			err = multierr.Append(err, fmt.Errorf("plugin %s: %w", name, setErr))
		}
	}
	return err
}

func parse(b []byte) (document, error) {
	std, err := hujson.Standardize(b)
	if err != nil {
		return document{}, err
	}
	var doc document
	if err := json.Unmarshal(std, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

// Save writes the options of every plugin to path, replacing the file atomically.
func Save(path string, sys *frameio.System) error {
	doc := document{Plugins: make(map[string]json.RawMessage)}
	for _, name := range sys.PluginNames() {
		if v := sys.Options(name); len(v) > 0 {
			doc.Plugins[name] = v
		}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	b, err = hujson.Format(b)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
