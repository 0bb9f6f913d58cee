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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reelcache/reelcache/internal/catalog"
	"github.com/reelcache/reelcache/internal/config"
	"github.com/reelcache/reelcache/internal/discovery"
	"github.com/reelcache/reelcache/internal/download"
	"github.com/reelcache/reelcache/internal/logger"
	"github.com/reelcache/reelcache/internal/metrics"
	"github.com/reelcache/reelcache/internal/service"
	"github.com/reelcache/reelcache/internal/storage"
	"github.com/reelcache/reelcache/internal/thumbnail"
	"github.com/reelcache/reelcache/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting reelcache",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.NewManager(filepath.Join(cfg.DataDir, "catalog.db"), log)
	if err != nil {
		log.Error("Failed to open catalog", "error", err)
		os.Exit(1)
	}
	defer cat.Close()

	store, err := storage.NewStore(cfg.Downloads.Dir, log)
	if err != nil {
		log.Error("Failed to prepare download directory", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	fetcher := discovery.NewFetcher(cfg.Discovery.Relays, cfg.Discovery.FetchTimeout, log)

	downloadMgr := download.NewManager(
		download.Config{
			MaxParallel:        cfg.Downloads.MaxParallel,
			TargetVideosAhead:  cfg.Downloads.TargetVideosAhead,
			TargetMinutesAhead: cfg.Downloads.TargetMinutesAhead,
			MaxBehindSeconds:   cfg.Downloads.MaxBehindSeconds,
			MaxStorageBytes:    cfg.Downloads.MaxStorageBytes,
			ProbeWindowBytes:   cfg.Downloads.ProbeWindowBytes,
			CycleInterval:      cfg.Downloads.CycleInterval,
			RefreshInterval:    cfg.Discovery.RefreshInterval,
		},
		cat, store, fetcher, thumbnail.Extract, m, log,
	)

	webServer := web.NewServer(cfg.Web, cat, registry, thumbnail.Extract, cfg.Downloads.MaxStorageBytes, log)

	svcMgr := service.NewManager(log)
	svcMgr.Register(downloadMgr)
	svcMgr.Register(webServer)

	if err := svcMgr.Start(ctx); err != nil {
		log.Error("Failed to start services", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}
