// Command eroxii relays RTSP sources to browser viewers: each started
// stream runs an ffmpeg transcode whose output is fanned out over
// WebSocket to any number of local clients, managed through a small
// HTTP lifecycle API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/SokhengDin/eroxii-rstp-stream/internal/api"
	"github.com/SokhengDin/eroxii-rstp-stream/internal/config"
	"github.com/SokhengDin/eroxii-rstp-stream/internal/ffmpeg"
	"github.com/SokhengDin/eroxii-rstp-stream/internal/registry"
	"github.com/SokhengDin/eroxii-rstp-stream/internal/relay"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(envOr("EROXII_CONFIG", ""))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	locator := ffmpeg.NewLocator(cfg.FFmpegPath, nil)
	slog.Info("eroxii starting",
		"version", version,
		"api", cfg.APIAddr,
		"ffmpeg", locator.Path(),
	)
	if !locator.Available() {
		slog.Warn("ffmpeg is not available; streams will accept viewers but carry no data")
	}

	reg := registry.NewRegistry(&relayRunner{locator: locator, cfg: cfg}, nil)

	g, ctx := errgroup.WithContext(ctx)

	// The start callback captures the errgroup-derived context so every
	// relay shuts down when the process does.
	apiSrv := api.NewServer(api.Config{
		Addr: cfg.APIAddr,
		Start: func(sourceURL string, port uint16) (string, error) {
			return reg.Start(ctx, sourceURL, port)
		},
		Stop:         reg.Stop,
		List:         reg.List,
		CheckDecoder: locator.Available,
	}, nil)

	g.Go(func() error {
		return apiSrv.Start(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		reg.StopAll()
		reg.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// relayRunner builds the per-stream ffmpeg adapter and relay. It is
// the production registry.Runner.
type relayRunner struct {
	locator *ffmpeg.Locator
	cfg     config.Config
}

func (r *relayRunner) Run(ctx context.Context, sourceURL string, port uint16) error {
	profile := ffmpeg.Profile{
		Resolution: r.cfg.Transcode.Resolution,
		Bitrate:    r.cfg.Transcode.Bitrate,
		FrameRate:  r.cfg.Transcode.FrameRate,
	}
	adapter := ffmpeg.NewAdapter(r.locator.Path(), profile.Args(sourceURL), r.cfg.ChunkSize, nil)

	rel := relay.New(relay.Config{
		SourceURL: sourceURL,
		Port:      port,
		Source: relay.SourceFunc(func(ctx context.Context, sink relay.Sink) error {
			return adapter.Run(ctx, sink)
		}),
		SubscriberBuffer: r.cfg.SubscriberBuffer,
	})
	return rel.Run(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
