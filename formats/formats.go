// Package formats lists the plugins built into frameio.
package formats

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/formats/jpeg"
	"github.com/SaveTheRbtz/frameio/formats/png"
	"github.com/SaveTheRbtz/frameio/formats/zseek"
)

// Factory creates a plugin.
type Factory struct {
	Name string
	New  func(logger *zap.Logger) frameio.Plugin
}

// Factories returns the built-in plugins in registration order.
func Factories() []Factory {
	return []Factory{
		{Name: zseek.Name, New: func(l *zap.Logger) frameio.Plugin { return zseek.New(l) }},
		{Name: png.Name, New: func(l *zap.Logger) frameio.Plugin { return png.New(l) }},
		{Name: jpeg.Name, New: func(l *zap.Logger) frameio.Plugin { return jpeg.New(l) }},
	}
}

// Names returns the names of the built-in plugins.
func Names() []string {
	var names []string
	for _, f := range Factories() {
		names = append(names, f.Name)
	}
	return names
}

// New creates the named plugins in registration order.  An empty list enables every plugin.
func New(names []string, logger *zap.Logger) ([]frameio.Plugin, error) {
	enabled := make(map[string]bool, len(names))
	for _, n := range names {
		enabled[n] = true
	}

	var plugins []frameio.Plugin
	for _, f := range Factories() {
		if len(names) > 0 && !enabled[f.Name] {
			continue
		}
		delete(enabled, f.Name)
		plugins = append(plugins, f.New(logger))
	}
	if len(names) > 0 {
		for n := range enabled {
			return nil, fmt.Errorf("unknown plugin %q, available: %v", n, Names())
		}
	}
	return plugins, nil
}

// NewSystem creates a System with the named plugins.
func NewSystem(names []string, logger *zap.Logger) (*frameio.System, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	plugins, err := New(names, logger)
	if err != nil {
		return nil, err
	}
	return frameio.NewSystem(plugins, frameio.WithSLogger(logger))
}
