package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/akashi"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := parseLogLevel(os.Getenv("AKASHI_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	logger.Info("akashi starting", "version", version)

	app, err := akashi.New(akashi.WithLogger(logger), akashi.WithVersion(version))
	if err != nil {
		return fmt.Errorf("construct app: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run(ctx)
	}()

	if err := seedDemoMemory(ctx, app, logger); err != nil {
		logger.Warn("demo memory seed failed", "error", err)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("akashi shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("akashi stopped")
	return nil
}

// seedDemoMemory stores one memory record at startup so a fresh deployment
// has something to query immediately. Best-effort: failures are logged, not
// fatal, since the substrate is fully usable without it.
func seedDemoMemory(ctx context.Context, app *akashi.App, logger *slog.Logger) error {
	result, err := app.StoreMemory(ctx, "default", "bootstrap", akashi.StoreMemoryInput{
		Type:    "observation",
		Content: "akashi substrate initialised",
	}, nil)
	if err != nil {
		return err
	}
	logger.Info("demo memory stored", "memory_id", result.MemoryID)
	return nil
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
