package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamrt/internal/config"
	"github.com/samcharles93/streamrt/internal/logger"
	"github.com/samcharles93/streamrt/internal/memory"
	"github.com/samcharles93/streamrt/internal/session"
)

func benchmarkCmd() *cli.Command {
	var (
		warmupRuns int64
		benchRuns  int64
		seconds    float64
		sampleRate int64
		poolSize   int64
	)

	return &cli.Command{
		Name:  "benchmark",
		Usage: "Measure streaming throughput on synthetic input",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "warmup",
				Usage:       "number of warmup runs",
				Value:       1,
				Destination: &warmupRuns,
			},
			&cli.Int64Flag{
				Name:        "runs",
				Usage:       "number of benchmark runs",
				Value:       3,
				Destination: &benchRuns,
			},
			&cli.FloatFlag{
				Name:        "seconds",
				Usage:       "seconds of audio per run",
				Value:       10,
				Destination: &seconds,
			},
			&cli.Int64Flag{
				Name:        "sample-rate",
				Usage:       "frames per second of audio",
				Value:       16000,
				Destination: &sampleRate,
			},
			&cli.Int64Flag{
				Name:        "pool-size",
				Usage:       "free workspace buffers kept per size class (0 uses plain heap allocation)",
				Value:       8,
				Destination: &poolSize,
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
			inCh, _ := channels(p, m)
			frames := int(seconds * float64(sampleRate))
			if frames <= 0 {
				return cli.Exit("error: --seconds and --sample-rate must be positive", 1)
			}
			rng := rand.New(rand.NewPCG(42, 42))
			signal := make([]float32, frames*inCh)
			for i := range signal {
				signal[i] = rng.Float32()*2 - 1
			}
			var mm memory.Manager = memory.NewHeap()
			if poolSize > 0 {
				mm = memory.NewPool(int(poolSize))
			}
			chunk := p.ChunkFrames * inCh

			fmt.Println("=== StreamRT Benchmark ===")
			fmt.Printf("Pipeline:   %s\n", p.Name)
			fmt.Printf("CPUs:       %d\n", runtime.NumCPU())
			fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
			fmt.Printf("Audio:      %.2fs @ %d Hz x %d ch\n", seconds, sampleRate, inCh)
			fmt.Printf("Chunk:      %d frames\n", p.ChunkFrames)
			fmt.Printf("Warmup:     %d runs\n", warmupRuns)
			fmt.Printf("Runs:       %d\n", benchRuns)
			fmt.Println()

			once := func() (time.Duration, session.Stats, error) {
				sess := session.New(m, session.WithMemoryManager(mm))
				start := time.Now()
				for off := 0; off < len(signal); off += chunk {
					if err := ctx.Err(); err != nil {
						return 0, session.Stats{}, err
					}
					if _, err := sess.Push(signal[off:min(off+chunk, len(signal))]); err != nil {
						return 0, session.Stats{}, err
					}
				}
				if _, err := sess.Finish(); err != nil {
					return 0, session.Stats{}, err
				}
				elapsed := time.Since(start)
				stats := sess.Stats()
				m.Clear()
				return elapsed, stats, nil
			}

			for i := range int(warmupRuns) {
				log.Info("warmup run", "run", i+1)
				if _, _, err := once(); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}

			fmt.Println("=== Results ===")
			fmt.Printf("%-6s %12s %12s %10s %12s\n", "Run", "Duration", "frames/s", "RTF", "us/chunk")
			var sumRTF float64
			for i := range int(benchRuns) {
				log.Info("benchmark run", "run", i+1)
				elapsed, stats, err := once()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: benchmark run %d: %v", i+1, err), 1)
				}
				rtf := elapsed.Seconds() / seconds
				sumRTF += rtf
				fmt.Printf("%-6d %12s %12.0f %10.4f %12.1f\n",
					i+1, elapsed.Round(time.Microsecond),
					float64(frames)/elapsed.Seconds(), rtf,
					float64(elapsed.Microseconds())/float64(max(stats.Chunks, 1)))
			}
			if benchRuns > 0 {
				fmt.Printf("\n%-6s %12s %12s %10.4f\n", "Avg", "", "", sumRTF/float64(benchRuns))
			}

			fmt.Printf("\nWorkspace: %s\n", mm.Stats())
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			fmt.Printf("Memory: %.1f MB alloc, %.1f MB sys\n",
				float64(mem.Alloc)/(1024*1024),
				float64(mem.Sys)/(1024*1024))
			return nil
		},
	}
}
