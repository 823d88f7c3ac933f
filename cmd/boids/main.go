// Command boids runs a headless flock on the GPU, writes a snapshot of the
// last frame and prints flock statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	_ "github.com/gogpu/wgpu/hal/allbackends"
	"golang.org/x/text/language"

	"github.com/gogpu/boids"
	"github.com/gogpu/boids/config"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file; defaults are embedded")
		particles   = flag.Int("particles", 0, "particle count (overrides config)")
		frames      = flag.Int("frames", -1, "frames to run (overrides config)")
		output      = flag.String("output", "", "snapshot path .png, .bmp or .tiff (overrides config)")
		backend     = flag.String("backend", "", "vulkan, metal, dx12, gl or software (overrides config)")
		writeConfig = flag.String("write-config", "", "write the effective config to this path and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *particles > 0 {
		cfg.Run.Particles = *particles
	}
	if *frames >= 0 {
		cfg.Run.Frames = *frames
	}
	if *output != "" {
		cfg.Output.Snapshot = *output
	}
	if *backend != "" {
		cfg.GPU.Backend = *backend
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if *writeConfig != "" {
		if err := cfg.WriteYAML(*writeConfig); err != nil {
			log.Fatalf("config: %v", err)
		}
		return
	}

	boids.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	dev, err := boids.OpenDevice(cfg.Backend())
	if err != nil {
		return err
	}
	defer dev.Close()

	surface, err := boids.NewOffscreenSurface(dev, cfg.Surface.Width, cfg.Surface.Height, cfg.Format())
	if err != nil {
		return err
	}
	defer surface.Close()

	params := cfg.BoidsParams()
	rng := rand.New(rand.NewPCG(cfg.Run.Seed, cfg.Run.Seed^0x9e3779b97f4a7c15))
	flock, err := boids.Create(dev, surface,
		boids.RandomParticles(rng, cfg.Run.Particles, params.MaxSpeed), params,
		boids.WithLabel("cli"),
		boids.WithMemoryBudget(cfg.MemoryBudget()))
	if err != nil {
		return err
	}
	defer flock.Close()

	start := time.Now()
	for i := 0; i < cfg.Run.Frames; i++ {
		if ctx.Err() != nil {
			boids.Logger().Warn("boids: interrupted", "frame", i)
			break
		}
		if err := flock.AdvanceAndRender(); err != nil {
			return err
		}
	}

	ps, err := flock.ReadParticles(ctx)
	if err != nil {
		return err
	}
	report := runReport{
		Device:  dev.Name(),
		Frames:  flock.Frames(),
		Elapsed: time.Since(start),
		Stats:   boids.Summarize(ps),
		Memory:  flock.MemoryStats(),
	}
	report.write(os.Stdout, language.English)

	if path := cfg.Output.ParticlesCSV; path != "" {
		if err := saveParticlesCSV(path, ps); err != nil {
			return err
		}
		boids.Logger().Info("boids: particles written", "path", path, "count", len(ps))
	}

	if cfg.Output.Snapshot == "" {
		return nil
	}
	img, err := surface.Snapshot(ctx)
	if err != nil {
		return err
	}
	caption := fmt.Sprintf("%d boids, frame %d", report.Stats.Count, report.Frames)
	if err := saveSnapshot(cfg.Output.Snapshot, img, cfg.Output.ScaleWidth, caption); err != nil {
		return err
	}
	boids.Logger().Info("boids: snapshot written", "path", cfg.Output.Snapshot)
	return nil
}
