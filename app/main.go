package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vincehartono/pulsefeed/app/api"
	"github.com/vincehartono/pulsefeed/app/cfg"
	"github.com/vincehartono/pulsefeed/app/config"
	"github.com/vincehartono/pulsefeed/app/feed"
	"github.com/vincehartono/pulsefeed/app/history"
	"github.com/vincehartono/pulsefeed/app/output"
	"github.com/vincehartono/pulsefeed/app/pipeline"
	"github.com/vincehartono/pulsefeed/app/sources"
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

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting PulseFeed", "version", appCfg.Version, "settings", appCfg.SettingsFile)

	settings, err := config.NewLoader(appCfg.SettingsFile).Load()
	if err != nil {
		return err
	}

	store, err := history.NewSQLiteStore(appCfg.HistoryFile, history.DefaultOptions())
	if err != nil {
		return err
	}
	defer store.Close()

	httpClient := &http.Client{}
	fetchTimeout := time.Duration(appCfg.FetchTimeout) * time.Second

	enabled := settings.EnabledSources()
	runSources := make([]sources.Source, 0, len(enabled))
	for _, source := range enabled {
		switch source.Kind {
		case config.SourceKindRSS:
			runSources = append(runSources, sources.NewRSSSource(source, httpClient, appCfg.UserAgent, fetchTimeout))
		case config.SourceKindCSV:
			runSources = append(runSources, sources.NewCSVSource(source, httpClient, appCfg.UserAgent, fetchTimeout))
		}
	}
	slog.Info("Sources configured", "count", len(runSources), "mode", settings.Mode)

	var extractor *feed.Extractor
	if settings.EnrichSummaries {
		extractor = feed.NewExtractor(httpClient, appCfg.UserAgent, fetchTimeout, settings.SummaryMaxLength)
	}

	p := pipeline.New(pipeline.Config{
		Settings:  settings,
		Sources:   runSources,
		Store:     store,
		Sink:      output.NewFileWriter(appCfg.OutputFile),
		Extractor: extractor,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(appCfg.RunTimeout)*time.Second)
	defer cancel()

	result, err := p.Run(runCtx)
	if err != nil {
		return err
	}

	slog.Info("Run completed",
		"emitted", result.Report.Emitted,
		"fetched", result.Report.Fetched,
		"dropped", result.Report.Dropped,
		"filtered", result.Report.Filtered,
		"duplicates", result.Report.Duplicates,
		"enriched", result.Report.Enriched,
		"failed_sources", len(result.Report.SourceErrors),
		"duration", result.Report.Duration.String(),
		"output", appCfg.OutputFile)

	if !appCfg.Serve {
		return nil
	}

	return serve(ctx, appCfg, settings, &result.Report)
}

func serve(ctx context.Context, appCfg *cfg.Cfg, settings *config.Settings, report *pipeline.Report) error {
	handler := api.NewHandler(appCfg.OutputFile, settings.Title, report, time.Now())
	server := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Preview server listening", "port", appCfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down preview server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
