package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-herald/app/api"
	"github.com/lysyi3m/rss-herald/app/cfg"
	"github.com/lysyi3m/rss-herald/app/database"
	"github.com/lysyi3m/rss-herald/app/feed"
	"github.com/lysyi3m/rss-herald/app/notify"
	"github.com/lysyi3m/rss-herald/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting RSS Herald", "version", appCfg.Version)

	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed configurations", "error", err)
		os.Exit(1)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount())

	channels, err := notify.LoadChannels(appCfg.ChannelsFile)
	if err != nil {
		slog.Error("Failed to load notification channels", "error", err)
		os.Exit(1)
	}
	slog.Info("Notification channels loaded", "count", len(channels))

	feedRepo := database.NewFeedRepository(db)
	itemRepo := database.NewItemRepository(db)

	scheduler := tasks.NewScheduler(configCache, feedRepo, itemRepo, channels,
		appCfg.UserAgent, time.Duration(appCfg.PollInterval)*time.Second,
		appCfg.WorkerCount)

	if appCfg.Once {
		if err := scheduler.RunOnce(context.Background()); err != nil {
			slog.Error("Run failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Run complete")
		return
	}

	slog.Info("Starting scheduler",
		"workers", appCfg.WorkerCount, "poll_interval", appCfg.PollInterval)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(configCache, feedRepo, itemRepo)
	server := api.NewServer(apiHandler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
