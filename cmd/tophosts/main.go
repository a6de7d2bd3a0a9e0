package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tophosts/internal/config"
	"tophosts/internal/database"
	"tophosts/internal/history"
	"tophosts/internal/housekeeping"
	"tophosts/internal/inventory"
	"tophosts/internal/macros"
	"tophosts/internal/metrics"
	"tophosts/internal/web"
	"tophosts/internal/widget"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	prune := flag.Bool("prune", false, "Remove hosts and items that are not in the configuration")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		info := web.CurrentBuildInfo()
		fmt.Printf("Top Hosts %s\nCommit: %s\nGo: %s\n", info.Version, info.GitCommit, info.GoVersion)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	setupLogging(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"config_file": *configFile,
		"port":        cfg.Server.Port,
		"hosts":       len(cfg.Hosts),
		"workers":     cfg.Widget.ParallelColumns,
	}).Info("Starting Top Hosts service")

	// Initialize database
	store, err := database.NewBoltStore(cfg.Database.Path)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewCollector(store)

	// Apply the configured inventory
	syncer := inventory.NewSyncer(store, cfg)
	result, err := syncer.Sync(ctx)
	if err != nil {
		logrus.WithError(err).Error("Inventory sync finished with errors")
	}
	if *prune {
		if err := syncer.PurgeOrphans(ctx, result); err != nil {
			logrus.WithError(err).Error("Failed to purge orphaned inventory")
		}
	}

	widgets := widget.NewService(
		store,
		history.NewService(store, cfg.Database.Retention()),
		macros.NewResolver(store),
		cfg.Widget.Defaults(),
		widget.Options{
			Workers:             cfg.Widget.ParallelColumns,
			DegradeColumnErrors: cfg.Widget.DegradeColumnErrors,
		},
	)

	housekeeper := housekeeping.NewHousekeeper(store, cfg.Database, metricsCollector)
	housekeeper.Start(ctx)

	webServer := web.NewServer(cfg, store, widgets, housekeeper, syncer, metricsCollector)
	if err := webServer.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start web server: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logrus.WithField("signal", sig).Info("Received shutdown signal")

	// Graceful shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := webServer.Stop(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Web server did not shut down cleanly")
	}

	logrus.Info("Shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}
