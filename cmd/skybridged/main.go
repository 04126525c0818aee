package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/config"
	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/server"
)

func main() {
	port := flag.String("port", "", "Listen port (overrides SKYBRIDGE_PORT)")
	storagePath := flag.String("storage", "", "SQLite database path (overrides SKYBRIDGE_STORAGE_PATH)")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if *dev {
		cfg.Logging.Development = true
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	defer logger.Sync()

	dbPath, err := resolveStoragePath(cfg.Storage.Path)
	if err != nil {
		logger.Fatal("failed to resolve storage path", zap.Error(err))
	}

	srv, err := server.New(cfg, dbPath, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// resolveStoragePath falls back to a per-user default when no path is
// configured.
func resolveStoragePath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".skybridge", "skybridge.db"), nil
}
