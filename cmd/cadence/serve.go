package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/cadence/internal/dispatch"
	"github.com/nadzzz/cadence/internal/health"
	"github.com/nadzzz/cadence/internal/observe"
	"github.com/nadzzz/cadence/internal/transport"
	grpctransport "github.com/nadzzz/cadence/internal/transport/grpc"
	httptransport "github.com/nadzzz/cadence/internal/transport/http"
	"github.com/nadzzz/cadence/internal/tts/piper"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon with the configured transports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg, builder, err := loadBuilder(nil)
	if err != nil {
		return err
	}
	slog.Info("cadence starting", "version", version, "language", builder.Language())

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Enabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics shutdown failed", "error", err)
			}
		}()
	}

	healthServer := health.New(cfg.Server.HealthPort, cfg.Metrics.Enabled)

	var opts []dispatch.Option
	if cfg.TTS.Enabled {
		switch cfg.TTS.Backend {
		case "piper":
			synth := piper.New(cfg.TTS.Piper)
			defer synth.Close()
			opts = append(opts, dispatch.WithSynthesizer(synth))
			healthServer.AddCheck("piper", synth.Ping)
			slog.Info("TTS enabled", "backend", "piper", "endpoint", cfg.TTS.Piper.Endpoint)
		default:
			return fmt.Errorf("unknown tts backend %q", cfg.TTS.Backend)
		}
	}

	dispatcher := dispatch.New(builder, opts...)
	healthServer.AddCheck("ssml", dispatcher.Probe)

	// Initialize enabled transports.
	var transports []transport.Transport
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port, cfg.Transports.HTTP.MaxBodyBytes))
	}
	if len(transports) == 0 {
		return errors.New("no transports enabled: enable at least one in config")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthServer.ListenAndServe(ctx) })
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, dispatcher); err != nil {
				return fmt.Errorf("transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	healthServer.SetReady(true)
	slog.Info("cadence ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	err = g.Wait()
	slog.Info("cadence stopped")
	return err
}
