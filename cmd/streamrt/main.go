package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamrt/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:  "streamrt",
		Usage: "Streaming inference runtime for chunked audio pipelines",
		Flags: append(append(globalFlags(), chunkFlags()...), loggingFlags()...),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			applyGlobalConfig(cmd, loadConfig(configFile))
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if debug {
				level = slog.LevelDebug
			}
			log, err := logger.Open(os.Stderr, logFormat, level)
			if err != nil {
				return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			runCmd(),
			serveCmd(),
			describeCmd(),
			benchmarkCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
