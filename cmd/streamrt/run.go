package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamrt/internal/config"
	"github.com/samcharles93/streamrt/internal/logger"
	"github.com/samcharles93/streamrt/internal/session"
	"github.com/samcharles93/streamrt/internal/stream"
	"github.com/samcharles93/streamrt/internal/wavio"
)

func runCmd() *cli.Command {
	var (
		input      string
		output     string
		sampleRate int64
		bitDepth   int64
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Stream a signal through the pipeline chunk by chunk",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "input .wav file, or text samples (- for stdin)",
				Value:       "-",
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output .wav file, or text frames (- for stdout)",
				Value:       "-",
				Destination: &output,
			},
			&cli.Int64Flag{
				Name:        "sample-rate",
				Usage:       "sample rate of text input, used for wav output and timing",
				Value:       16000,
				Destination: &sampleRate,
			},
			&cli.Int64Flag{
				Name:        "bit-depth",
				Usage:       "bit depth of wav output (16, 24, 32)",
				Value:       16,
				Destination: &bitDepth,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			p, err := loadPipeline()
			if err != nil {
				return err
			}
			m, err := config.Build(p)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build pipeline: %v", err), 1)
			}
			inCh, outCh := channels(p, m)
			chunk := p.ChunkFrames * inCh

			src, rate, err := openSource(input, chunk, inCh, int(sampleRate))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open input: %v", err), 1)
			}
			if c, ok := src.(io.Closer); ok {
				defer func() { _ = c.Close() }()
			}
			dst, err := openSink(output, rate, int(bitDepth), outCh)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open output: %v", err), 1)
			}

			sess := session.New(m, session.WithLogger(log))
			log.Info("streaming", "pipeline", p.Name, logger.StreamKey, sess.ID().String(),
				"chunk_frames", p.ChunkFrames, "in_channels", inCh, "out_channels", outCh)

			start := time.Now()
			if err := pump(ctx, sess, src, dst); err != nil {
				_ = dst.Close()
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if err := dst.Close(); err != nil {
				return cli.Exit(fmt.Sprintf("error: close output: %v", err), 1)
			}
			elapsed := time.Since(start)

			stats := sess.Stats()
			audio := time.Duration(float64(stats.SamplesIn) / float64(inCh) / float64(rate) * float64(time.Second))
			args := []any{"chunks", stats.Chunks, "samples_in", stats.SamplesIn, "samples_out", stats.SamplesOut,
				"elapsed", elapsed.Round(time.Microsecond)}
			if audio > 0 {
				args = append(args, "rtf", fmt.Sprintf("%.4f", elapsed.Seconds()/audio.Seconds()))
			}
			log.Info("stream done", args...)
			return nil
		},
	}
}

// pump pushes every chunk of src through sess and finishes the stream.
func pump(ctx context.Context, sess *session.Session, src source, dst sink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		out, err := sess.Push(chunk)
		if err != nil {
			return err
		}
		if err := dst.Write(out); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	out, err := sess.Finish()
	if err != nil {
		return err
	}
	if err := dst.Write(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// channels resolves the interleave widths at both ends of the pipeline.
func channels(p *config.Pipeline, m stream.Module) (in, out int) {
	inInfo, outInfo := m.Info(), m.Info()
	if b, ok := m.(stream.Boundary); ok {
		inInfo, outInfo = b.BoundaryInfo()
	}
	in = p.InputChannels
	if in <= 0 {
		in = inInfo.InChannels
	}
	if in <= 0 {
		in = 1
	}
	out = outInfo.OutChannels
	if outInfo.OutShape == stream.ShapePassthrough || out <= 0 {
		out = in
	}
	return in, out
}

func openSource(path string, chunk, inCh, rate int) (source, int, error) {
	if path == "" || path == "-" {
		return newTextSource(os.Stdin, chunk), rate, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	if !isWav(path) {
		return textFileSource{newTextSource(f, chunk), f}, rate, nil
	}
	r, err := wavio.NewReader(f, chunk/inCh)
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if r.Channels != inCh {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%s has %d channels, pipeline expects %d", path, r.Channels, inCh)
	}
	return wavSource{r, f}, r.SampleRate, nil
}

func openSink(path string, rate, bitDepth, outCh int) (sink, error) {
	if path == "" || path == "-" {
		return newTextSink(os.Stdout, nil, outCh), nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !isWav(path) {
		return newTextSink(f, f, outCh), nil
	}
	w, err := wavio.NewWriter(f, rate, bitDepth, outCh)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return wavSink{w, f}, nil
}
