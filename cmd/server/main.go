package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/sealed-content/pkg/sealedcontent/api"
	"github.com/tendant/sealed-content/pkg/sealedcontent/config"
)

// HTTPConfig holds process-level settings that the library config does not
// cover. Storage, database and upload policy come from config.WithEnv.
type HTTPConfig struct {
	Host            string        `env:"HOST" env-default:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"text"`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "err", err)
	}

	var httpConfig HTTPConfig
	if err := cleanenv.ReadEnv(&httpConfig); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(httpConfig.LogLevel, httpConfig.LogFormat)
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv(""), config.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	if err := run(serverConfig, httpConfig, logger); err != nil {
		logger.Error("Server error", "err", err)
		os.Exit(1)
	}
}

func run(serverConfig *config.ServerConfig, httpConfig HTTPConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := serverConfig.Build(ctx, api.NewMetricsEventSink())
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer runtime.Close()

	handler := api.NewHandler(runtime.Service,
		api.WithMaxUploadSize(serverConfig.MaxFileSize),
		api.WithLogger(logger),
	)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(httpConfig.Host, serverConfig.Port),
		Handler:           NewRouter(handler, serverConfig, httpConfig.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Sealed content server starting",
			"addr", httpServer.Addr,
			"env", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type,
			"base_url", serverConfig.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpConfig.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
