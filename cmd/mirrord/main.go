package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nodemirror/config"
	"nodemirror/feed"
	"nodemirror/inspect"
	"nodemirror/mirror"
	"nodemirror/observability"
	"nodemirror/observability/logging"
	telemetry "nodemirror/observability/otel"
	"nodemirror/storage"
	"nodemirror/wire"
)

func main() {
	configFile := flag.String("config", "./mirrord.toml", "Path to the configuration file")
	streamFlag := flag.String("stream", "", "Envelope stream to follow, overrides StreamPath (\"-\" for stdin, tcp://host:port, unix:///path)")
	logLevel := flag.String("log-level", "info", "Minimum log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *streamFlag != "" {
		cfg.StreamPath = *streamFlag
	}

	logger := logging.SetupWriter(os.Stdout, cfg.Service, cfg.Environment, logging.ParseLevel(*logLevel))
	logging.Allow(cfg.Logging.AllowFields...)

	if err := run(cfg, logger); err != nil {
		logger.Error("mirrord stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Service,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		Sampling:    cfg.Telemetry.Sampling,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	engine := mirror.NewEngine(
		mirror.WithLogger(logger),
		mirror.WithUnknownLogInterval(cfg.UnknownVariantInterval()),
	)
	m := mirror.New(engine, logger)

	opts := []feed.Option{feed.WithLogger(logger)}
	if cfg.JournalDir != "" {
		if err := os.MkdirAll(cfg.JournalDir, 0o755); err != nil {
			return fmt.Errorf("prepare journal directory: %w", err)
		}
		db, err := storage.NewLevelDB(cfg.JournalDir)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer db.Close()
		opts = append(opts, feed.WithJournal(storage.NewJournal(db)))
	}
	if len(cfg.ResyncCommand) > 0 {
		opts = append(opts, feed.WithResyncer(commandResyncer(cfg.ResyncCommand, logger)))
	}
	consumer := feed.NewConsumer(m, opts...)

	var servers []*http.Server
	if cfg.InspectAddress != "" {
		api := inspect.New(inspect.Config{Mirror: m, Logger: logger, Metrics: observability.HTTP()})
		servers = append(servers, serve(logger, "inspect", cfg.InspectAddress, api.Handler()))
	}
	if cfg.MetricsAddress != "" {
		servers = append(servers, serve(logger, "metrics", cfg.MetricsAddress, promhttp.Handler()))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
	}()

	stream, err := openStream(ctx, cfg.StreamPath)
	if err != nil {
		return fmt.Errorf("open stream %s: %w", cfg.StreamPath, err)
	}
	// Closing the stream is the only way to interrupt a blocked read.
	go func() {
		<-ctx.Done()
		_ = stream.Close()
	}()
	defer stream.Close()

	logger.Info("following envelope stream", slog.String("stream", cfg.StreamPath))
	err = consumer.Run(ctx, wire.NewFrameReader(stream, cfg.MaxFrameBytes))
	if ctx.Err() != nil {
		logger.Info("shutting down")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("stream ended",
		slog.Bool("synced", consumer.Synced()),
		slog.Uint64("dropped_batches", consumer.Dropped()))
	return nil
}

func serve(logger *slog.Logger, name, addr string, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("listening", slog.String("component", name), slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("component", name), slog.Any("error", err))
		}
	}()
	return srv
}

func openStream(ctx context.Context, path string) (io.ReadCloser, error) {
	var dialer net.Dialer
	switch {
	case path == "-":
		return io.NopCloser(os.Stdin), nil
	case strings.HasPrefix(path, "tcp://"):
		return dialer.DialContext(ctx, "tcp", strings.TrimPrefix(path, "tcp://"))
	case strings.HasPrefix(path, "unix://"):
		return dialer.DialContext(ctx, "unix", strings.TrimPrefix(path, "unix://"))
	default:
		return os.Open(path)
	}
}

// commandResyncer runs the configured command each time the mirror needs a
// fresh full report. The producer is expected to answer on the same stream.
func commandResyncer(argv []string, logger *slog.Logger) feed.Resyncer {
	return feed.ResyncFunc(func(ctx context.Context, reason error) error {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Env = append(os.Environ(), "MIRROR_RESYNC_REASON="+reason.Error())
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("resync command: %w: %s", err, strings.TrimSpace(string(out)))
		}
		logger.Info("resync requested", slog.String("reason", reason.Error()))
		return nil
	})
}
