package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ironsheep/image-pipeline-mcp/internal/backend/magick"
	"github.com/ironsheep/image-pipeline-mcp/internal/backend/native"
	"github.com/ironsheep/image-pipeline-mcp/internal/config"
	"github.com/ironsheep/image-pipeline-mcp/internal/logging"
	"github.com/ironsheep/image-pipeline-mcp/internal/overlay"
	"github.com/ironsheep/image-pipeline-mcp/internal/pipeline"
	"github.com/ironsheep/image-pipeline-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("image-pipeline-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("image-pipeline-mcp - MCP server for image transformation plans")
			fmt.Println()
			fmt.Println("Usage: image-pipeline-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  IMAGE_PIPELINE_CONFIG=<file>           YAML configuration file")
			fmt.Println("  IMAGE_PIPELINE_LOG_LEVEL=debug         Enable debug logging")
			fmt.Println("  IMAGE_PIPELINE_LOG_FORMAT=json         Log as JSON")
			fmt.Println("  IMAGE_PIPELINE_BACKEND=magick          Render with ImageMagick (default native)")
			fmt.Println("  IMAGE_PIPELINE_MAGICK_PATH=<dir>       Directory holding the ImageMagick binaries")
			fmt.Println("  IMAGE_PIPELINE_OVERLAY_ROOT=<dir>      Confine file overlays to a directory")
			fmt.Println("  IMAGE_PIPELINE_METRICS_ADDR=:9090      Serve Prometheus metrics")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	if err := run(); err != nil {
		// stdout is for MCP protocol
		log.SetOutput(os.Stderr)
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Logs go to stderr; stdout is for MCP protocol
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	logger.Debug("Image pipeline MCP server",
		"version", Version,
		"build_time", BuildTime,
		"commit", GitCommit)

	backend := newBackend(cfg, logger)

	overlays, err := overlay.NewCache(cfg.Overlay.TempDir, newFetcher(cfg, logger), logger)
	if err != nil {
		return fmt.Errorf("overlay cache initialization failed: %w", err)
	}
	defer overlays.Close()

	processor := pipeline.NewProcessor(backend, overlays, pipeline.Config{
		Background:   cfg.Processing.Background,
		BaseDPI:      cfg.Processing.BaseDPI,
		MaxReduction: cfg.Processing.MaxReduction,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		metricsServer := startMetrics(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Metrics server shutdown error", "error", err)
			}
		}()
	}

	srv := server.New(processor, Version, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()
	logger.Info("Server started", "backend", backend.Name(), "overlay_dir", overlays.Dir())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}
	return nil
}

func newBackend(cfg *config.Config, logger *slog.Logger) pipeline.Backend {
	if cfg.Backend != config.BackendMagick {
		return native.New(logger)
	}

	b := magick.New(cfg.Magick.SearchPath, logger)
	if b.Version() == magick.VersionUnknown {
		logger.Warn("ImageMagick not found; every render will fail", "search_path", cfg.Magick.SearchPath)
	}
	for _, w := range b.Warnings() {
		logger.Warn(w)
	}
	// read the format list now so a broken install is reported at startup
	b.Capabilities()
	if err := b.InitError(); err != nil {
		logger.Error("Failed to read ImageMagick formats", "error", err)
	}
	return b
}

func newFetcher(cfg *config.Config, logger *slog.Logger) overlay.SchemeFetcher {
	web := overlay.NewHTTPFetcher(cfg.Overlay.HTTPTimeout)
	return overlay.SchemeFetcher{
		"file":  overlay.FileFetcher{Root: cfg.Overlay.Root},
		"http":  web,
		"https": web,
		"s3": overlay.NewS3Fetcher(overlay.S3Config{
			Region:          cfg.Overlay.S3.Region,
			Endpoint:        cfg.Overlay.S3.Endpoint,
			AccessKeyID:     cfg.Overlay.S3.AccessKeyID,
			SecretAccessKey: cfg.Overlay.S3.SecretAccessKey,
		}, logger),
	}
}

func startMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Metrics server started", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}
