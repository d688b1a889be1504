// Package png reads and writes numbered PNG sequences.
package png

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	stdpng "image/png"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/formats/imageseq"
	"github.com/SaveTheRbtz/frameio/options"
)

const Name = "png"

// Compression names the PNG compression levels.
type Compression string

const (
	CompressionDefault Compression = "default"
	CompressionNone    Compression = "none"
	CompressionSpeed   Compression = "speed"
	CompressionBest    Compression = "best"
)

var compressionLevels = map[Compression]stdpng.CompressionLevel{
	CompressionDefault: stdpng.DefaultCompression,
	CompressionNone:    stdpng.NoCompression,
	CompressionSpeed:   stdpng.BestSpeed,
	CompressionBest:    stdpng.BestCompression,
}

type Options struct {
	Compression Compression `json:"compression"`
}

func DefaultOptions() Options {
	return Options{Compression: CompressionDefault}
}

type Plugin struct {
	frameio.PluginBase

	mu      sync.Mutex
	options Options
}

var _ frameio.Plugin = (*Plugin)(nil)

func New(logger *zap.Logger) *Plugin {
	return &Plugin{
		PluginBase: frameio.NewPluginBase(Name, "Portable Network Graphics image sequences.", logger, ".png"),
		options:    DefaultOptions(),
	}
}

func (p *Plugin) CanSequence() bool { return true }

func (p *Plugin) CanWrite(fi fileinfo.Info, info frameio.Info) bool {
	return p.PluginBase.CanWrite(fi, info) &&
		len(info.Video) > 0 &&
		info.Video[0].Image.Validate() == nil
}

func (p *Plugin) Options() json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, _ := json.Marshal(p.options)
	return v
}

func (p *Plugin) SetOptions(v json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o := p.options
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return fmt.Errorf("failed to parse options: %w", err)
	}
	if _, ok := compressionLevels[o.Compression]; !ok {
		return fmt.Errorf("unknown compression %q", o.Compression)
	}
	p.options = o
	return nil
}

func (p *Plugin) Read(fi fileinfo.Info, opts options.ReadOptions) (frameio.Reader, error) {
	dec := imageseq.NewDecoder(fi, stdpng.Decode, p.logger(opts.Logger))
	r, err := frameio.NewRead(fi, dec, opts)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p *Plugin) Write(fi fileinfo.Info, info frameio.Info, opts options.WriteOptions) (frameio.Writer, error) {
	p.mu.Lock()
	enc := &stdpng.Encoder{CompressionLevel: compressionLevels[p.options.Compression]}
	p.mu.Unlock()

	encode := func(w io.Writer, img image.Image) error { return enc.Encode(w, img) }
	w, err := frameio.NewWrite(fi, info, imageseq.NewEncoder(fi, encode, p.logger(opts.Logger)), opts)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (p *Plugin) logger(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return p.Logger
}
