package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamrt/internal/config"
	"github.com/samcharles93/streamrt/internal/stream"
)

func describeCmd() *cli.Command {
	var format string

	return &cli.Command{
		Name:  "describe",
		Usage: "Build the pipeline and print its structure",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output format (json, text, yaml)",
				Value:       "json",
				Destination: &format,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := loadPipeline()
			if err != nil {
				return err
			}
			m, err := config.Build(p)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build pipeline: %v", err), 1)
			}
			switch format {
			case "json":
				b, err := stream.MarshalDescription(m)
				if err != nil {
					return err
				}
				fmt.Println(string(b))
			case "text":
				fmt.Println(m.String())
			case "yaml":
				b, err := p.Marshal()
				if err != nil {
					return err
				}
				fmt.Print(string(b))
			default:
				return cli.Exit(fmt.Sprintf("error: unknown format %q", format), 1)
			}
			return nil
		},
	}
}
