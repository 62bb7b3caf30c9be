package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avdeyev/feedpoll/app/api"
	"github.com/avdeyev/feedpoll/app/cfg"
	"github.com/avdeyev/feedpoll/app/config"
	"github.com/avdeyev/feedpoll/app/database"
	"github.com/avdeyev/feedpoll/app/feed"
	"github.com/avdeyev/feedpoll/app/fetcher"
	"github.com/avdeyev/feedpoll/app/sink"
	"github.com/avdeyev/feedpoll/app/tasks"
	"github.com/avdeyev/feedpoll/app/telemetry"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
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
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Feedpoll", "version", appCfg.Version)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	sources, err := config.NewLoader(appCfg.SourcesDir).LoadAll()
	if err != nil {
		slog.Error("Failed to load source configurations", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		slog.Warn("No source configurations found", "dir", appCfg.SourcesDir)
	}
	slog.Info("Loaded source configurations", "count", len(sources))

	seenRepo := database.NewSeenItemRepository(db)
	recorder := telemetry.NewRecorder()

	var out sink.Sink
	if appCfg.OutputDir != "" {
		jsonl, err := sink.NewJSONL(appCfg.OutputDir)
		if err != nil {
			slog.Error("Failed to initialize output sink", "dir", appCfg.OutputDir, "error", err)
			os.Exit(1)
		}
		out = jsonl
		slog.Info("Writing new items to JSONL", "dir", appCfg.OutputDir)
	} else {
		out = sink.NewLog()
		slog.Info("No output directory configured, logging new items")
	}

	httpFetcher := fetcher.NewFetcher(
		&http.Client{},
		fetcher.DefaultBackoffPolicy(),
		appCfg.FetchRetries,
		appCfg.MaxBodyBytes,
		appCfg.UserAgent,
	)

	scheduler := tasks.NewScheduler(sources, seenRepo, httpFetcher, feed.NewParser(), feed.NewNormalizer(), out, recorder)
	scheduler.Start()
	slog.Info("Scheduler started", "workers", appCfg.WorkerCount, "tick_interval", appCfg.SchedulerInterval)

	handler := api.NewHandler(seenRepo, recorder, scheduler)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Status API listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fatal := false
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
		fatal = true
	case err := <-scheduler.Fatal():
		slog.Error("Collection halted by unrecoverable store failure", "error", err)
		fatal = true
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()

	if fatal {
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
