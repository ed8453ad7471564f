package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/livesub/internal/catalog"
	"github.com/MimeLyc/livesub/internal/config"
	"github.com/MimeLyc/livesub/internal/engine"
	"github.com/MimeLyc/livesub/internal/httpapi"
	"github.com/MimeLyc/livesub/internal/persistence"
	"github.com/MimeLyc/livesub/internal/prefetch"
	"github.com/MimeLyc/livesub/internal/service"
	"github.com/MimeLyc/livesub/internal/session"
	"github.com/MimeLyc/livesub/internal/translator"
	"github.com/MimeLyc/livesub/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronRunner interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API used by the browser overlay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another livesub server is using %s", cfg.System.DataDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("Failed to release lock %s: %v", cfg.LockPath(), err)
		}
	}()

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	queue := prefetch.NewQueue(cfg.Session.PrefetchWorkers, cfg.Session.PrefetchBuffer)
	queue.Start()
	defer queue.Stop()

	registry := session.NewRegistry(store, cfg.Translate.DefaultTargetLanguage.String())
	adapter := translator.NewAdapter(service.BuildCapability(cfg.LLM), cfg.Translate.SourceLanguage)
	eng := engine.New(adapter, queue, engine.Options{})
	cat := catalog.NewClient(cfg.Catalog.BaseURL, time.Duration(cfg.Catalog.Timeout)*time.Second)
	broker := httpapi.NewBroker()

	svc := service.New(registry, eng, adapter, cat,
		service.WithNotifier(broker),
		service.WithSelectionStore(store),
	)

	cronEngine := cron.New()
	maintenance := service.NewMaintenance(*cfg, registry, adapter, cronEngine)

	opts := []httpapi.Option{
		httpapi.WithBroker(broker),
		httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins),
		httpapi.WithPrefetchStats(queue.Stats),
		httpapi.WithRuntimeSettingsApplier(maintenance.ApplyRuntimeSettings),
	}
	settingsStore, err := config.NewRuntimeSettingsStore(config.RuntimeSettingsFilePath(), cfg.RuntimeSettings())
	if err != nil {
		log.Warn("Runtime settings disabled: %v", err)
	} else {
		opts = append(opts, httpapi.WithRuntimeSettingsStore(settingsStore))
	}
	srv := httpapi.NewServer(svc, opts...)

	log.Info("livesub translating %s subtitles, default target %s", cfg.Translate.SourceLanguage, cfg.Translate.DefaultTargetLanguage)
	return runWithComponents(ctx, cfg, maintenance, cronEngine, srv)
}

// runWithComponents schedules background work, serves HTTP until ctx is
// cancelled, then shuts both down.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, cronEngine cronRunner, httpSrv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	cronEngine.Start()
	defer cronEngine.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		err := httpSrv.ListenAndServe(cfg.HTTP.Addr)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}
