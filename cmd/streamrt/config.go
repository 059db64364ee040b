package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the streamrt configuration file
// (~/.config/streamrt/config.yaml). Pointer fields distinguish "not set" from
// zero values.
type Config struct {
	Pipeline string `yaml:"pipeline"`

	// Streaming
	ChunkFrames *int64 `yaml:"chunk_frames"`
	PoolSize    *int64 `yaml:"pool_size"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string         `yaml:"server_address"`
	MaxStreams    *int64         `yaml:"max_streams"`
	IdleTimeout   *time.Duration `yaml:"idle_timeout"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "streamrt", "config.yaml")
}

// applyGlobalConfig applies config file defaults to the global flags when
// they were not set explicitly.
func applyGlobalConfig(c *cli.Command, cfg Config) {
	if cfg.Pipeline != "" && !c.IsSet("pipeline") {
		pipelinePath = cfg.Pipeline
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
	if cfg.ChunkFrames != nil && !c.IsSet("chunk-frames") {
		chunkFrames = *cfg.ChunkFrames
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, maxStreams, poolSize *int64, idle *time.Duration) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.MaxStreams != nil && !c.IsSet("max-streams") {
		*maxStreams = *cfg.MaxStreams
	}
	if cfg.PoolSize != nil && !c.IsSet("pool-size") {
		*poolSize = *cfg.PoolSize
	}
	if cfg.IdleTimeout != nil && !c.IsSet("idle-timeout") {
		*idle = *cfg.IdleTimeout
	}
}

// loadConfig reads the config file. Returns a zero Config if the file doesn't
// exist or does not parse.
func loadConfig(path string) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
