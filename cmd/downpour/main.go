package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/downpour-dl/downpour/internal/adapter/filesystem"
	"github.com/downpour-dl/downpour/internal/adapter/sqlite"
	"github.com/downpour-dl/downpour/internal/config"
	"github.com/downpour-dl/downpour/internal/download"
	"github.com/downpour-dl/downpour/internal/logger"
	"github.com/downpour-dl/downpour/internal/service/server"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting downpour",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Ensure the download directory exists
	fsManager, err := filesystem.NewManager(cfg.Download.Dir)
	if err != nil {
		log.Fatal("failed to create download directory", zap.Error(err), zap.String("dir", cfg.Download.Dir))
	}

	// Open database
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Download.Dir, "downpour.db")
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err), zap.String("path", dbPath))
	}
	defer store.Close()

	// Create download registry
	registry := download.NewRegistry(download.Config{
		Dir:               cfg.Download.Dir,
		UserAgent:         cfg.Download.UserAgent,
		RequestTimeout:    cfg.Download.GetRequestTimeout(),
		ProgressInterval:  cfg.Download.GetProgressInterval(),
		RateWindow:        cfg.Download.GetRateWindow(),
		BufferSize:        cfg.Download.GetBufferSize(),
		MaxBytesPerSecond: cfg.Download.GetMaxBytesPerSecond(),
		Space:             fsManager,
	}, store, log)

	if err := registry.Restore(); err != nil {
		log.Fatal("failed to restore persisted downloads", zap.Error(err))
	}

	// Create HTTP server
	serverCfg := &server.Config{
		BindAddr:     cfg.HTTP.BindAddr,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  cfg.HTTP.GetIdleTimeout(),
	}
	httpServer := server.New(serverCfg, registry, store, log)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("download_dir", cfg.Download.Dir),
	)
	<-sigChan

	log.Info("shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Pause running downloads so they can be resumed on next start
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to pause downloads gracefully", zap.Error(err))
	}

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	log.Info("application stopped successfully")
}
