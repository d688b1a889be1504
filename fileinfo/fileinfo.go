// Package fileinfo describes files handed to the I/O plugins: plain files and numbered
// image sequences such as render.0001.exr.
package fileinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/SaveTheRbtz/frameio/frame"
)

// Path is a file path split into its components.
//
//	/shots/a/render.0001.exr
//	Dir:       "/shots/a/"
//	Base:      "render."
//	Number:    "0001"
//	Extension: ".exr"
type Path struct {
	Dir       string
	Base      string
	Number    string
	Extension string
}

// Split splits a file path into its components.
func Split(p string) Path {
	var out Path
	dir, file := filepath.Split(p)
	out.Dir = dir

	ext := filepath.Ext(file)
	// A name that is only digits after the dot is a frame number, not an extension.
	if ext != "" && isDigits(ext[1:]) {
		ext = ""
	}
	out.Extension = ext
	stem := strings.TrimSuffix(file, ext)

	i := len(stem)
	for i > 0 && stem[i-1] >= '0' && stem[i-1] <= '9' {
		i--
	}
	out.Base = stem[:i]
	out.Number = stem[i:]
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// String joins the components back into a path.
func (p Path) String() string {
	return p.Dir + p.Base + p.Number + p.Extension
}

// LowerExtension returns the extension in lower case, which is how plugins match it.
func (p Path) LowerExtension() string {
	return strings.ToLower(p.Extension)
}

// Pad returns the zero padding width implied by the frame number, or 0 when unpadded.
func (p Path) Pad() int {
	return padWidth(p.Number)
}

func padWidth(number string) int {
	if len(number) > 1 && number[0] == '0' {
		return len(number)
	}
	return 0
}

// Type tells plain files and numbered sequences apart.
type Type int

const (
	File Type = iota
	Sequence
)

func (t Type) String() string {
	switch t {
	case File:
		return "file"
	case Sequence:
		return "sequence"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Info identifies the file (or the sequence of files) being read or written.
type Info struct {
	Path     Path
	Type     Type
	Sequence frame.Sequence
	// Pad is the zero padding width of sequence file names, 0 when unpadded.
	Pad int
}

// New returns the Info of a single file.
func New(p string) Info {
	path := Split(p)
	return Info{Path: path, Type: File, Pad: path.Pad()}
}

// NewSequence returns the Info of a numbered sequence covering frames.
func NewSequence(p string, frames frame.Sequence) Info {
	path := Split(p)
	return Info{Path: path, Type: Sequence, Sequence: frames, Pad: path.Pad()}
}

func (i Info) String() string {
	if i.Type == Sequence && !i.Sequence.IsEmpty() {
		return fmt.Sprintf("%s%s%s%s", i.Path.Dir, i.Path.Base, i.Sequence.String(), i.Path.Extension)
	}
	return i.Path.String()
}

// Extension returns the lower case file extension.
func (i Info) Extension() string {
	return i.Path.LowerExtension()
}

// FileName returns the name of the file holding frame n.  For plain files it is the path itself.
func (i Info) FileName(n frame.Number) string {
	if i.Type != Sequence {
		return i.Path.String()
	}
	num := strconv.FormatInt(int64(n), 10)
	if pad := i.Pad; pad > len(num) && n >= 0 {
		num = strings.Repeat("0", pad-len(num)) + num
	}
	return i.Path.Dir + i.Path.Base + num + i.Path.Extension
}

// Scan looks for the other members of the numbered sequence p belongs to.
// A path without a frame number is returned as a plain file.
func Scan(p string) (Info, error) {
	path := Split(p)
	if path.Number == "" {
		return New(p), nil
	}

	dir := path.Dir
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Info{}, fmt.Errorf("failed to scan %q: %w", dir, err)
	}

	var numbers []int64
	pad := path.Pad()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		other := Split(e.Name())
		if other.Number == "" || other.Base != path.Base || other.Extension != path.Extension {
			continue
		}
		n, err := strconv.ParseInt(other.Number, 10, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
		pad = max(pad, padWidth(other.Number))
	}
	if len(numbers) == 0 {
		return New(p), nil
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	var seq frame.Sequence
	for i, n := range numbers {
		if i > 0 && n == numbers[i-1] {
			continue
		}
		last := len(seq.Ranges) - 1
		if last >= 0 && int64(seq.Ranges[last].Max)+1 == n {
			seq.Ranges[last].Max = frame.Number(n)
			continue
		}
		seq.Ranges = append(seq.Ranges, frame.NewRange(frame.Number(n)))
	}
	return Info{Path: path, Type: Sequence, Sequence: seq, Pad: pad}, nil
}
