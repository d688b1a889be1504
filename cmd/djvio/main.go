// Command djvio inspects and converts frame files through the built-in plugins.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/frameio"
	"github.com/SaveTheRbtz/frameio/formats"
	"github.com/SaveTheRbtz/frameio/settings"
)

const defaultConfigPath = "djvio.yaml"

type app struct {
	cfg    *Config
	logger *zap.Logger
	sys    *frameio.System
	out    io.Writer
}

type command struct {
	// usage starts with the command name.
	usage string
	short string
	run   func(ctx context.Context, a *app, args []string) error
}

func (c command) name() string {
	name, _, _ := strings.Cut(c.usage, " ")
	return name
}

var commands = []command{
	{usage: "plugins [--set NAME=JSON]...", short: "list plugins and their options", run: runPlugins},
	{usage: "info FILE", short: "print the file information", run: runInfo},
	{usage: "convert IN OUT", short: "copy every frame of IN to OUT", run: runConvert},
	{usage: "cache [--max-bytes N] [--read-behind N] FILE", short: "fill the memory cache and report it", run: runCache},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		configFlag, settingsFlag string
		threadsFlag              int
		verboseFlag              bool
	)

	fs := flag.NewFlagSet("djvio", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVarP(&configFlag, "config", "c", defaultConfigPath, "configuration file")
	fs.StringVar(&settingsFlag, "settings", "", "plugin settings file, overrides the configuration")
	fs.IntVar(&threadsFlag, "threads", 0, "decode and encode threads, overrides the configuration")
	fs.BoolVarP(&verboseFlag, "verbose", "v", false, "be verbose")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var err error
	var logger *zap.Logger
	if verboseFlag {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Print("failed to initialize logger: ", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	if fs.NArg() == 0 {
		usage(stderr, fs)
		return 2
	}
	var cmd *command
	for i := range commands {
		if commands[i].name() == fs.Arg(0) {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		usage(stderr, fs)
		return 2
	}

	cfg, err := LoadConfig(configFlag, fs.Changed("config"))
	if err != nil {
		logger.Error("failed to load configuration", zap.String("path", configFlag), zap.Error(err))
		return 1
	}
	if fs.Changed("settings") {
		cfg.Settings = settingsFlag
	}
	if fs.Changed("threads") {
		cfg.Threads = threadsFlag
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}

	sys, err := formats.NewSystem(cfg.Plugins, logger)
	if err != nil {
		logger.Error("failed to create the I/O system", zap.Error(err))
		return 1
	}
	if cfg.Settings != "" {
		if err := settings.Load(cfg.Settings, sys); err != nil {
			logger.Error("failed to load settings", zap.String("path", cfg.Settings), zap.Error(err))
			return 1
		}
	}

	a := &app{cfg: cfg, logger: logger, sys: sys, out: stdout}
	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		logger.Error("command failed", zap.String("command", cmd.name()), zap.Error(err))
		return 1
	}
	return 0
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: djvio [flags] COMMAND [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-46s %s\n", c.usage, c.short)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
}
