package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/SaveTheRbtz/frameio/options"
)

// Config is the djvio configuration file.
type Config struct {
	// Plugins lists the enabled plugins, all of them when empty.
	Plugins []string `yaml:"plugins"`
	// Threads is the decode and encode thread count, GOMAXPROCS when zero.
	Threads int `yaml:"threads"`
	// Settings is the plugin options file.
	Settings string `yaml:"settings"`

	Read  ReadConfig  `yaml:"read"`
	Write WriteConfig `yaml:"write"`
}

type ReadConfig struct {
	VideoQueueSize int         `yaml:"video_queue_size"`
	AudioQueueSize int         `yaml:"audio_queue_size"`
	Cache          CacheConfig `yaml:"cache"`
}

type CacheConfig struct {
	Enabled    bool  `yaml:"enabled"`
	MaxBytes   int64 `yaml:"max_bytes"`
	ReadBehind int   `yaml:"read_behind"`
}

type WriteConfig struct {
	VideoQueueSize int `yaml:"video_queue_size"`
	AudioQueueSize int `yaml:"audio_queue_size"`
}

func DefaultConfig() *Config {
	return &Config{
		Read: ReadConfig{
			VideoQueueSize: options.DefaultVideoQueueSize,
			AudioQueueSize: options.DefaultAudioQueueSize,
			Cache: CacheConfig{
				MaxBytes:   options.DefaultCacheMaxByteCount,
				ReadBehind: options.DefaultCacheReadBehind,
			},
		},
		Write: WriteConfig{
			VideoQueueSize: options.DefaultVideoQueueSize,
			AudioQueueSize: options.DefaultAudioQueueSize,
		},
	}
}

// LoadConfig reads path over the defaults.  A missing file is only an error when required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Threads < 0 {
		return fmt.Errorf("threads must not be negative: %d", c.Threads)
	}
	if c.Read.Cache.MaxBytes < 0 || c.Read.Cache.ReadBehind < 0 {
		return errors.New("cache sizes must not be negative")
	}
	return nil
}

func (c *Config) ReadOptions(logger *zap.Logger) (options.ReadOptions, error) {
	opts := []options.ROption{
		options.WithRLogger(logger),
		options.WithRQueueSizes(c.Read.VideoQueueSize, c.Read.AudioQueueSize),
	}
	if c.Threads > 0 {
		opts = append(opts, options.WithRThreadCount(c.Threads))
	}
	if c.Read.Cache.Enabled {
		opts = append(opts, options.WithCache(c.Read.Cache.MaxBytes, c.Read.Cache.ReadBehind))
	}
	return options.NewReadOptions(opts...)
}

func (c *Config) WriteOptions(logger *zap.Logger) (options.WriteOptions, error) {
	opts := []options.WOption{
		options.WithWLogger(logger),
		options.WithWQueueSizes(c.Write.VideoQueueSize, c.Write.AudioQueueSize),
	}
	if c.Threads > 0 {
		opts = append(opts, options.WithWThreadCount(c.Threads))
	}
	return options.NewWriteOptions(opts...)
}
