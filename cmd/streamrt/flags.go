package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamrt/internal/config"
)

var (
	pipelinePath string
	configFile   string
	chunkFrames  int64
	logLevel     string
	logFormat    string
	debug        bool
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pipeline",
			Aliases:     []string{"p"},
			Usage:       "path to pipeline description (.yaml)",
			Sources:     cli.EnvVars("STREAMRT_PIPELINE"),
			Destination: &pipelinePath,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config file",
			Value:       configPath(),
			Destination: &configFile,
		},
	}
}

func chunkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "chunk-frames",
			Usage:       "frames per pushed chunk (0 uses the pipeline's chunk_frames)",
			Destination: &chunkFrames,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// loadPipeline reads the pipeline named by --pipeline and applies the
// --chunk-frames override.
func loadPipeline() (*config.Pipeline, error) {
	if pipelinePath == "" {
		return nil, cli.Exit("error: --pipeline is required", 1)
	}
	p, err := config.Load(pipelinePath)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("error: load pipeline: %v", err), 1)
	}
	if chunkFrames > 0 {
		p.ChunkFrames = int(chunkFrames)
	}
	return p, nil
}
