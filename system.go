package frameio

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/observer"
	"github.com/SaveTheRbtz/frameio/options"
)

type systemOptions struct {
	logger *zap.Logger
}

type SOption func(*systemOptions) error

func WithSLogger(l *zap.Logger) SOption {
	return func(o *systemOptions) error { o.logger = l; return nil }
}

// System routes files to the registered plugins.
//
// Plugins are queried in registration order and the first one that claims a file handles
// it.  Plugin options are addressed by plugin name.
type System struct {
	logger             *zap.Logger
	plugins            []Plugin
	byName             map[string]Plugin
	sequenceExtensions []string
	optionsChanged     *observer.ValueSubject[bool]
}

// NewSystem registers plugins in the given order.
func NewSystem(plugins []Plugin, opts ...SOption) (*System, error) {
	so := systemOptions{logger: zap.NewNop()}
	for _, o := range opts {
		if err := o(&so); err != nil {
			return nil, err
		}
	}
	if so.logger == nil {
		so.logger = zap.NewNop()
	}

	s := &System{
		logger:         so.logger,
		byName:         make(map[string]Plugin, len(plugins)),
		optionsChanged: observer.NewValueSubject(false),
	}
	for _, p := range plugins {
		name := p.Name()
		if _, ok := s.byName[name]; ok {
			return nil, fmt.Errorf("duplicate plugin: %q", name)
		}
		s.byName[name] = p
		s.plugins = append(s.plugins, p)

		s.logger.Info("plugin",
			zap.String("name", name),
			zap.String("description", p.Description()),
			zap.Strings("extensions", p.FileExtensions()),
			zap.Bool("sequence", p.CanSequence()))

		if p.CanSequence() {
			for _, ext := range p.FileExtensions() {
				ext = strings.ToLower(ext)
				if !slices.Contains(s.sequenceExtensions, ext) {
					s.sequenceExtensions = append(s.sequenceExtensions, ext)
				}
			}
		}
	}
	return s, nil
}

// PluginNames returns the plugin names in registration order.
func (s *System) PluginNames() []string {
	names := make([]string, len(s.plugins))
	for i, p := range s.plugins {
		names[i] = p.Name()
	}
	return names
}

// FileExtensions returns the extensions of all plugins without duplicates.
func (s *System) FileExtensions() []string {
	var exts []string
	for _, p := range s.plugins {
		for _, ext := range p.FileExtensions() {
			if !slices.Contains(exts, ext) {
				exts = append(exts, ext)
			}
		}
	}
	return exts
}

func (s *System) SequenceExtensions() []string {
	return slices.Clone(s.sequenceExtensions)
}

func (s *System) Plugin(name string) (Plugin, bool) {
	p, ok := s.byName[name]
	return p, ok
}

func (s *System) CanSequence(fi fileinfo.Info) bool {
	return slices.Contains(s.sequenceExtensions, fi.Extension())
}

func (s *System) CanRead(fi fileinfo.Info) bool {
	return slices.ContainsFunc(s.plugins, func(p Plugin) bool { return p.CanRead(fi) })
}

func (s *System) CanWrite(fi fileinfo.Info, info Info) bool {
	return slices.ContainsFunc(s.plugins, func(p Plugin) bool { return p.CanWrite(fi, info) })
}

// Read opens fi with the first plugin that can read it.
func (s *System) Read(fi fileinfo.Info, opts options.ReadOptions) (Reader, error) {
	for _, p := range s.plugins {
		if !p.CanRead(fi) {
			continue
		}
		s.logger.Debug("read", zap.Stringer("file", fi), zap.String("plugin", p.Name()))
		r, err := p.Read(fi, opts)
		if err != nil {
			return nil, &FileError{Op: OpRead, Path: fi.String(), Err: err}
		}
		if r == nil {
			return nil, &FileError{Op: OpRead, Path: fi.String(), Err: ErrUnsupported}
		}
		return r, nil
	}
	return nil, &FileError{Op: OpRead, Path: fi.String(), Err: ErrUnsupportedFile}
}

// Write opens fi with the first plugin that can write info to it.
func (s *System) Write(fi fileinfo.Info, info Info, opts options.WriteOptions) (Writer, error) {
	for _, p := range s.plugins {
		if !p.CanWrite(fi, info) {
			continue
		}
		s.logger.Debug("write", zap.Stringer("file", fi), zap.String("plugin", p.Name()))
		w, err := p.Write(fi, info, opts)
		if err != nil {
			return nil, &FileError{Op: OpWrite, Path: fi.String(), Err: err}
		}
		if w == nil {
			return nil, &FileError{Op: OpWrite, Path: fi.String(), Err: ErrUnsupported}
		}
		return w, nil
	}
	return nil, &FileError{Op: OpWrite, Path: fi.String(), Err: ErrUnsupportedFile}
}

// Options returns the options of the named plugin, or nil if there is no such plugin.
func (s *System) Options(name string) json.RawMessage {
	if p, ok := s.byName[name]; ok {
		return p.Options()
	}
	return nil
}

// SetOptions passes v to the named plugin and notifies the options observers.
// Unknown names are ignored.
func (s *System) SetOptions(name string, v json.RawMessage) error {
	p, ok := s.byName[name]
	if !ok {
		return nil
	}
	if err := p.SetOptions(v); err != nil {
		return fmt.Errorf("failed to set %s options: %w", name, err)
	}
	s.optionsChanged.SetAlways(true)
	return nil
}

// ObserveOptionsChanged returns the subject that is set every time plugin options change.
func (s *System) ObserveOptionsChanged() *observer.ValueSubject[bool] {
	return s.optionsChanged
}
