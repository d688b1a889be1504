// Package zseek stores video as a seekable ZSTD stream, one compressed frame per video
// frame, so any frame can be decoded without reading the ones before it.
package zseek

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/options"
)

const Name = "zseek"

// Options are the plugin options.
type Options struct {
	// Level is the zstd compression level, 1 to 22.
	Level int `json:"level"`
	// Checksums stores and verifies an xxhash checksum of every frame.
	Checksums bool `json:"checksums"`
}

func DefaultOptions() Options {
	return Options{Level: 1, Checksums: true}
}

func (o Options) Validate() error {
	if o.Level < 1 || o.Level > 22 {
		return fmt.Errorf("invalid compression level %d", o.Level)
	}
	return nil
}

type Plugin struct {
	frameio.PluginBase

	mu      sync.Mutex
	options Options
}

var _ frameio.Plugin = (*Plugin)(nil)

func New(logger *zap.Logger) *Plugin {
	return &Plugin{
		PluginBase: frameio.NewPluginBase(Name, "Seekable ZSTD frame container.", logger, ".zfs"),
		options:    DefaultOptions(),
	}
}

func (p *Plugin) CanWrite(fi fileinfo.Info, info frameio.Info) bool {
	return p.PluginBase.CanWrite(fi, info) &&
		len(info.Video) == 1 &&
		info.Video[0].Image.Validate() == nil
}

func (p *Plugin) Options() json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, _ := json.Marshal(p.options)
	return v
}

// SetOptions merges v over the current options.
func (p *Plugin) SetOptions(v json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o := p.options
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return fmt.Errorf("failed to parse options: %w", err)
	}
	if err := o.Validate(); err != nil {
		return err
	}
	p.options = o
	p.Logger.Debug("options changed", zap.Int("level", o.Level), zap.Bool("checksums", o.Checksums))
	return nil
}

func (p *Plugin) currentOptions() Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.options
}

func (p *Plugin) Read(fi fileinfo.Info, opts options.ReadOptions) (frameio.Reader, error) {
	name := fi.FileName(0)
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}

	zdec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}

	logger := opts.Logger
	if logger == nil {
		logger = p.Logger
	}
	closer := &fileCloser{f: f, dec: zdec}
	dec, err := newDecoder(f, st.Size(), closer, zdec, name, logger)
	if err != nil {
		return nil, multierr.Append(err, closer.Close())
	}
	r, err := frameio.NewRead(fi, dec, opts)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p *Plugin) Write(fi fileinfo.Info, info frameio.Info, opts options.WriteOptions) (frameio.Writer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = p.Logger
	}
	enc, err := createEncoder(fi.FileName(0), info, p.currentOptions(), logger)
	if err != nil {
		return nil, err
	}
	w, err := frameio.NewWrite(fi, info, enc, opts)
	if err != nil {
		return nil, multierr.Append(err, enc.Close())
	}
	return w, nil
}

type fileCloser struct {
	f   *os.File
	dec *zstd.Decoder
}

func (c *fileCloser) Close() error {
	c.dec.Close()
	return c.f.Close()
}
