package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/fileinfo"
	"github.com/SaveTheRbtz/frameio/frame"
	"github.com/SaveTheRbtz/frameio/settings"
)

func runPlugins(_ context.Context, a *app, args []string) error {
	var sets []string
	fs := flag.NewFlagSet("plugins", flag.ContinueOnError)
	fs.StringArrayVar(&sets, "set", nil, "set plugin options, NAME=JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, s := range sets {
		name, v, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q, want NAME=JSON", s)
		}
		if _, ok := a.sys.Plugin(name); !ok {
			return fmt.Errorf("unknown plugin %q", name)
		}
		if err := a.sys.SetOptions(name, json.RawMessage(v)); err != nil {
			return err
		}
	}
	if len(sets) > 0 {
		if a.cfg.Settings == "" {
			return errors.New("--set needs a settings file to save to")
		}
		if err := settings.Save(a.cfg.Settings, a.sys); err != nil {
			return err
		}
		a.logger.Info("saved settings", zap.String("path", a.cfg.Settings))
	}

	for _, name := range a.sys.PluginNames() {
		p, _ := a.sys.Plugin(name)
		fmt.Fprintf(a.out, "%s\t%s\n", name, p.Description())
		fmt.Fprintf(a.out, "\textensions: %s\n", strings.Join(p.FileExtensions(), " "))
		fmt.Fprintf(a.out, "\tsequences: %t\n", p.CanSequence())
		if v := a.sys.Options(name); len(v) > 0 {
			fmt.Fprintf(a.out, "\toptions: %s\n", v)
		}
	}
	return nil
}

func runInfo(_ context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("info needs exactly one file")
	}
	r, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	info := r.Info()
	a.logger.Debug("info", zap.Object("info", info))
	fmt.Fprintf(a.out, "%s\n", info.FileName)
	for i, v := range info.Video {
		fmt.Fprintf(a.out, "video %d: %s, %s, frames %s (%d)\n",
			i, v.Image, v.Speed, v.Sequence, v.Sequence.FrameCount())
	}
	for i, au := range info.Audio {
		fmt.Fprintf(a.out, "audio %d: %d channels, %d Hz, %d bit, %d samples\n",
			i, au.Data.Channels, au.Data.SampleRate, au.Data.BitDepth, au.SampleCount)
	}
	for k, v := range info.Tags {
		fmt.Fprintf(a.out, "tag %s: %s\n", k, v)
	}
	return nil
}

func runConvert(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errors.New("convert needs an input and an output file")
	}
	in, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	info := in.Info()
	if len(info.Video) == 0 {
		return fmt.Errorf("%s has no video", args[0])
	}
	info.FileName = args[1]

	wo, err := a.cfg.WriteOptions(a.logger)
	if err != nil {
		return err
	}
	out, err := a.sys.Write(fileinfo.New(args[1]), info, wo)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions64(info.Video[0].Sequence.FrameCount(),
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var copied int64
	err = func() error {
		for {
			f, ok, err := nextFrame(ctx, in)
			if err != nil || !ok {
				return err
			}
			if err := waitQueue(ctx, out); err != nil {
				return err
			}
			if err := out.AddVideoFrame(f); err != nil {
				return err
			}
			copied++
			_ = bar.Add(1)
		}
	}()
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	_ = bar.Finish()
	if err != nil {
		return err
	}

	a.logger.Info("converted", zap.String("input", args[0]), zap.String("output", args[1]), zap.Int64("frames", copied))
	return nil
}

func runCache(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	maxBytes := fs.Int64("max-bytes", a.cfg.Read.Cache.MaxBytes, "cache byte budget")
	readBehind := fs.Int("read-behind", a.cfg.Read.Cache.ReadBehind, "frames kept behind the current frame")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("cache needs exactly one file")
	}

	a.cfg.Read.Cache = CacheConfig{Enabled: true, MaxBytes: *maxBytes, ReadBehind: *readBehind}
	r, err := a.open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer r.Close()

	start := time.Now()
	var decoded int
	for {
		_, ok, err := nextFrame(ctx, r)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		decoded++
	}
	elapsed := time.Since(start)

	r.Seek(0, frameio.Forward)
	fmt.Fprintf(a.out, "frames: %d in %s\n", decoded, elapsed.Round(time.Millisecond))
	fmt.Fprintf(a.out, "cache: %d of %d bytes\n", r.CacheByteCount(), r.CacheMaxByteCount())
	fmt.Fprintf(a.out, "cached: %s\n", frame.NewSequence(r.CachedFrames()...))
	fmt.Fprintf(a.out, "window: %s\n", r.CacheSequence())
	return nil
}

// open reads path, scanning for the rest of its sequence when a plugin reads sequences.
func (a *app) open(path string) (frameio.Reader, error) {
	fi := fileinfo.New(path)
	if a.sys.CanSequence(fi) {
		var err error
		if fi, err = fileinfo.Scan(path); err != nil {
			return nil, err
		}
	}
	ro, err := a.cfg.ReadOptions(a.logger)
	if err != nil {
		return nil, err
	}
	return a.sys.Read(fi, ro)
}

// nextFrame waits for the next decoded frame.  It returns false once the reader ended.
func nextFrame(ctx context.Context, r frameio.Reader) (frameio.VideoFrame, bool, error) {
	for {
		if f, ok := r.PopVideoFrame(); ok {
			return f, true, nil
		}
		if r.IsVideoEnded() {
			return frameio.VideoFrame{}, false, nil
		}
		select {
		case <-ctx.Done():
			return frameio.VideoFrame{}, false, ctx.Err()
		case <-r.Ready():
		}
	}
}

func waitQueue(ctx context.Context, w frameio.Writer) error {
	if !w.IsVideoQueueFull() {
		return nil
	}
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
	for w.IsVideoQueueFull() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
