package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/rssmaker/app/api"
	"github.com/lysyi3m/rssmaker/app/cfg"
	"github.com/lysyi3m/rssmaker/app/crawl"
	"github.com/lysyi3m/rssmaker/app/database"
	"github.com/lysyi3m/rssmaker/app/feed"
	"github.com/lysyi3m/rssmaker/app/tasks"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run wires the application and returns the process exit code.
func run(args []string) int {
	appConfig, err := cfg.Load(args)
	if err != nil {
		return crawl.ExitFatal
	}
	if appConfig == nil {
		// Help was shown
		return 0
	}

	setupLogger(appConfig.Debug)

	feedConfig, err := feed.LoadConfig(appConfig.SiteConfig)
	if err != nil {
		slog.Error("Failed to load site configuration", "path", appConfig.SiteConfig, "error", err)
		return crawl.ExitFatal
	}

	generator := feed.NewGenerator(appConfig.Version)
	store := feed.NewFileStore(feedConfig.Output, generator)

	client := &http.Client{Timeout: time.Duration(feedConfig.Settings.Timeout) * time.Second}
	fetcher := crawl.NewHTTPFetcher(client, appConfig.UserAgent)
	crawler := crawl.NewCrawler(feedConfig, fetcher, store)

	var runRepo database.RunRepository
	if appConfig.DBPath != "" {
		db, err := database.Open(appConfig.DBPath)
		if err != nil {
			slog.Error("Failed to open database", "path", appConfig.DBPath, "error", err)
			return crawl.ExitFatal
		}
		defer db.Close()

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			slog.Error("Failed to run migrations", "error", err)
			return crawl.ExitFatal
		}
		slog.Debug("Database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

		runRepo = database.NewRunRepository(db)
	}

	var publisher tasks.Publisher
	if appConfig.OnChange != "" {
		publisher = tasks.NewShellPublisher(appConfig.OnChange, feedConfig.Output).
			WithDir(filepath.Dir(feedConfig.Output))
	}

	if appConfig.Mode == cfg.ModeServe {
		return serve(appConfig, feedConfig, store, generator, crawler, runRepo, publisher)
	}
	return runOnce(feedConfig, crawler, runRepo, publisher)
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// runOnce performs a single crawl and maps its result to the process exit
// code.
func runOnce(feedConfig *feed.Config, crawler *crawl.Crawler, runRepo database.RunRepository, publisher tasks.Publisher) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting crawl", "feed", feedConfig.Name, "listing", feedConfig.ListingURL, "output", feedConfig.Output)

	task := tasks.NewCrawlTask(feedConfig.Name, crawler, runRepo, publisher)
	task.Start()
	if err := task.Execute(ctx); err != nil {
		slog.Error("Crawl finished with error", "feed", feedConfig.Name, "error", err)
	}

	result := task.Result()
	if result == nil {
		return crawl.ExitFatal
	}
	return result.ExitCode()
}

func serve(appConfig *cfg.Cfg, feedConfig *feed.Config, store feed.Store, generator *feed.Generator,
	crawler *crawl.Crawler, runRepo database.RunRepository, publisher tasks.Publisher) int {
	slog.Info("Starting rssmaker server", "version", appConfig.Version, "feed", feedConfig.Name)

	interval := time.Duration(appConfig.SchedulerInterval) * time.Second
	scheduler := tasks.NewScheduler(tasks.NewCrawlTaskFactory(feedConfig.Name, crawler, runRepo, publisher), interval)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(feedConfig, store, generator, runRepo, scheduler)
	server := api.NewServer(handler, appConfig.APIAccessKey, appConfig.Version)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port, "interval", interval.String(),
			"api_enabled", appConfig.APIAccessKey != "")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
		exitCode = crawl.ExitFatal
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		exitCode = crawl.ExitFatal
	}

	slog.Info("Server shutdown complete")
	return exitCode
}
