package frameio

import (
	"encoding/json"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/options"
)

// Plugin reads and writes one file format.
type Plugin interface {
	Name() string
	Description() string
	// FileExtensions returns the lower case extensions, including the dot.
	FileExtensions() []string
	// CanSequence reports whether numbered files of this format form a sequence.
	CanSequence() bool
	CanRead(fi fileinfo.Info) bool
	CanWrite(fi fileinfo.Info, info Info) bool

	// Options returns the plugin options as a JSON document.
	Options() json.RawMessage
	// SetOptions replaces the plugin options.
	SetOptions(v json.RawMessage) error

	Read(fi fileinfo.Info, opts options.ReadOptions) (Reader, error)
	Write(fi fileinfo.Info, info Info, opts options.WriteOptions) (Writer, error)
}

// PluginBase implements the parts of Plugin most formats share.  Formats embed it and
// override what they support.
type PluginBase struct {
	PluginName        string
	PluginDescription string
	Extensions        []string
	Logger            *zap.Logger
}

func NewPluginBase(name, description string, logger *zap.Logger, extensions ...string) PluginBase {
	if logger == nil {
		logger = zap.NewNop()
	}
	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = strings.ToLower(e)
	}
	return PluginBase{
		PluginName:        name,
		PluginDescription: description,
		Extensions:        exts,
		Logger:            logger.With(zap.String("plugin", name)),
	}
}

func (p *PluginBase) Name() string        { return p.PluginName }
func (p *PluginBase) Description() string { return p.PluginDescription }

func (p *PluginBase) FileExtensions() []string {
	return slices.Clone(p.Extensions)
}

func (p *PluginBase) CanSequence() bool { return false }

// CanRead matches the file extension, ignoring case.
func (p *PluginBase) CanRead(fi fileinfo.Info) bool {
	return slices.Contains(p.Extensions, fi.Extension())
}

func (p *PluginBase) CanWrite(fi fileinfo.Info, _ Info) bool {
	return slices.Contains(p.Extensions, fi.Extension())
}

func (p *PluginBase) Options() json.RawMessage { return nil }

func (p *PluginBase) SetOptions(json.RawMessage) error { return nil }

func (p *PluginBase) Read(fileinfo.Info, options.ReadOptions) (Reader, error) {
	return nil, ErrUnsupported
}

func (p *PluginBase) Write(fileinfo.Info, Info, options.WriteOptions) (Writer, error) {
	return nil, ErrUnsupported
}
