package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperengineering/autoroi/internal/api"
	"github.com/hyperengineering/autoroi/internal/client"
	"github.com/hyperengineering/autoroi/internal/config"
	"github.com/hyperengineering/autoroi/internal/controller"
	"github.com/hyperengineering/autoroi/internal/metrics"
	"github.com/hyperengineering/autoroi/internal/session"
	"github.com/hyperengineering/autoroi/internal/snapshot"
	"github.com/hyperengineering/autoroi/internal/store"
	"github.com/hyperengineering/autoroi/internal/worker"
	"github.com/hyperengineering/autoroi/internal/ws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:               "autoroi",
	Short:             "AutoROI - automation ROI engine",
	PersistentPreRunE: loadDotEnv,
	SilenceUsage:      true,
	RunE:              run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, session and background workers",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(orgCmd)
}

// loadDotEnv reads a .env file from the working directory. Variables already
// set in the environment win; a missing file is not an error.
func loadDotEnv(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(cmd.Context(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 3. Initialize logger
	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	slog.Info("configuration loaded", "path", config.Path())
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Recalculation controller and session
	ctrl := controller.New(controller.Options{
		Debounce: time.Duration(cfg.Engine.Debounce),
		Logger:   logger,
	})
	sess := session.New(ctrl, newFetcher(cfg, db), session.Options{
		Defaults:      cfg.Defaults,
		HorizonMonths: cfg.Engine.HorizonMonths,
		Logger:        logger,
	})
	slog.Info("session initialized", "horizon_months", cfg.Engine.HorizonMonths, "remote_storage", cfg.Storage.BaseURL != "")

	// 6. Result stream and metrics
	hub := ws.New(sess.Latest, logger)
	unsubscribe := ctrl.Subscribe(hub.Publish)
	defer unsubscribe()
	collector := &metrics.Collector{Controller: ctrl, Store: db, Clients: hub}

	// 7. Initialize HTTP router
	handler := api.NewHandler(db, cfg.Auth.APIKey, Version,
		api.WithSession(sess),
		api.WithStream(hub),
		api.WithMetrics(collector),
		api.WithComputeDefaults(cfg.Defaults, cfg.Engine.HorizonMonths),
	)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Workers
	var wg sync.WaitGroup
	startWorker(ctx, &wg, "ws-hub", hub.Run)
	startWorker(ctx, &wg, "config-watch", func(ctx context.Context) {
		err := config.Watch(ctx, config.Path(), logger, func(next *config.Config) {
			sess.SetDefaults(next.Defaults)
		})
		if err != nil {
			slog.Warn("config watch unavailable", "worker", "config-watch", "error", err)
		}
	})

	if cfg.Backup.Bucket != "" {
		uploader, err := snapshot.NewUploader(cfg.Backup)
		if err != nil {
			return fmt.Errorf("backup uploader: %w", err)
		}
		coordinator := worker.NewBackupCoordinator(worker.NewStoreBackupSource(db), time.Duration(cfg.Backup.Interval), uploader)
		startWorker(ctx, &wg, "backup", coordinator.Run)
	}

	if cfg.Watch.DatasetPath != "" {
		orgID := cfg.Watch.Organization
		watcher := worker.NewDatasetWatcher(cfg.Watch.DatasetPath, 0, func(ctx context.Context) error {
			if err := importDataset(ctx, db, cfg.Watch.DatasetPath, orgID); err != nil {
				return err
			}
			if sess.Status().OrganizationID == orgID {
				return sess.Reload(ctx)
			}
			return nil
		})
		startWorker(ctx, &wg, "dataset-watch", func(ctx context.Context) {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("dataset watch failed", "worker", "dataset-watch", "path", cfg.Watch.DatasetPath, "error", err)
			}
		})
	}

	// 10. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 11. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 12. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 12a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 12b. Wait for workers to complete
	wg.Wait()

	// 12c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newFetcher returns the remote storage client when one is configured and
// the local store otherwise.
func newFetcher(cfg *config.Config, db store.Store) session.Fetcher {
	if cfg.Storage.BaseURL != "" {
		return client.New(cfg.Storage.BaseURL, cfg.Storage.APIKey, time.Duration(cfg.Storage.Timeout))
	}
	return &session.StoreFetcher{Store: db}
}

// newLogger builds the process logger. Format "text" selects the text
// handler; anything else logs JSON.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
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

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
