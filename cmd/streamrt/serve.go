package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamrt/internal/api"
	"github.com/samcharles93/streamrt/internal/logger"
	"github.com/samcharles93/streamrt/internal/memory"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		maxStreams  int64
		poolSize    int64
		idleTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve streaming sessions over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-streams",
				Usage:       "maximum live streams (0 for no limit)",
				Value:       256,
				Destination: &maxStreams,
			},
			&cli.Int64Flag{
				Name:        "pool-size",
				Usage:       "free workspace buffers kept per size class (0 disables pooling)",
				Value:       8,
				Destination: &poolSize,
			},
			&cli.DurationFlag{
				Name:        "idle-timeout",
				Usage:       "drop streams idle for this long (0 keeps them)",
				Value:       5 * time.Minute,
				Destination: &idleTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, loadConfig(configFile), &addr, &maxStreams, &poolSize, &idleTimeout)

			p, err := loadPipeline()
			if err != nil {
				return err
			}
			opts := []api.ServerOption{
				api.WithLogger(log),
				api.WithMaxStreams(int(maxStreams)),
			}
			if poolSize > 0 {
				opts = append(opts, api.WithMemoryManager(memory.NewPool(int(poolSize))))
			}
			server, err := api.NewServer(p.Factory(), opts...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if idleTimeout > 0 {
				go server.RunJanitor(ctx, max(idleTimeout/4, time.Second), idleTimeout)
			}

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "pipeline", p.Name, "max_streams", maxStreams)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
