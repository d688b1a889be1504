// Package jpeg reads and writes numbered JPEG sequences.
package jpeg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	stdjpeg "image/jpeg"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/formats/imageseq"
	"github.com/SaveTheRbtz/frameio/options"
)

const Name = "jpeg"

type Options struct {
	// Quality is 1 to 100.
	Quality int `json:"quality"`
}

func DefaultOptions() Options {
	return Options{Quality: 90}
}

func (o Options) Validate() error {
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("invalid quality %d", o.Quality)
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
		PluginBase: frameio.NewPluginBase(Name, "Joint Photographic Experts Group image sequences.", logger,
			".jpeg", ".jpg", ".jfif"),
		options: DefaultOptions(),
	}
}

func (p *Plugin) CanSequence() bool { return true }

// CanWrite accepts 8-bit gray and RGB images.
func (p *Plugin) CanWrite(fi fileinfo.Info, info frameio.Info) bool {
	if !p.PluginBase.CanWrite(fi, info) || len(info.Video) == 0 {
		return false
	}
	img := info.Video[0].Image
	return img.Validate() == nil && img.BitDepth == 8 && (img.Channels == 1 || img.Channels == 3)
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
	if err := o.Validate(); err != nil {
		return err
	}
	p.options = o
	return nil
}

func (p *Plugin) Read(fi fileinfo.Info, opts options.ReadOptions) (frameio.Reader, error) {
	logger := opts.Logger
	if logger == nil {
		logger = p.Logger
	}
	r, err := frameio.NewRead(fi, imageseq.NewDecoder(fi, stdjpeg.Decode, logger), opts)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p *Plugin) Write(fi fileinfo.Info, info frameio.Info, opts options.WriteOptions) (frameio.Writer, error) {
	p.mu.Lock()
	o := &stdjpeg.Options{Quality: p.options.Quality}
	p.mu.Unlock()

	logger := opts.Logger
	if logger == nil {
		logger = p.Logger
	}
	encode := func(w io.Writer, img image.Image) error { return stdjpeg.Encode(w, img, o) }
	w, err := frameio.NewWrite(fi, info, imageseq.NewEncoder(fi, encode, logger), opts)
	if err != nil {
		return nil, err
	}
	return w, nil
}
