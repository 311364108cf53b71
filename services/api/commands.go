package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/cache"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/config"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/db"
	httpserver "github.com/02loveslollipop/Shizuku-weather-relay/services/api/http"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/ingest"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/observability"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/provider"
	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/scheduler"
)

func newRootCmd() *cobra.Command {
	var migrate bool

	root := &cobra.Command{
		Use:           "weather-relay",
		Short:         "Ingest weather observations into Postgres and serve the latest one",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	root.Flags().BoolVar(&migrate, "migrate", false, "create the observations table before scheduling ingestion")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the read API and the scheduled ingestion task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	serve.Flags().BoolVar(&migrate, "migrate", false, "create the observations table before scheduling ingestion")

	root.AddCommand(serve, newIngestCmd(), newMigrateCmd(), newPruneCmd())
	return root
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion pass in the configured mode and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(logger *zap.Logger, cfg config.Config) error {
				if ok, reason := cfg.IngestionEnabled(); !ok {
					return errors.New(reason)
				}
				ctx := cmd.Context()
				store, err := db.New(ctx, cfg.DatabaseURL, cfg.DatabaseServiceKey)
				if err != nil {
					return err
				}
				defer store.Close()

				task, err := buildTask(cfg, cache.NewSlot(nil), store, logger)
				if err != nil {
					return err
				}
				outcome := task.Run(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), outcome)
				return nil
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the weather_observations table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(logger *zap.Logger, cfg config.Config) error {
				if !cfg.StoreConfigured() {
					return errors.New("DATABASE_URL and DATABASE_SERVICE_KEY must be set")
				}
				ctx := cmd.Context()
				store, err := db.New(ctx, cfg.DatabaseURL, cfg.DatabaseServiceKey)
				if err != nil {
					return err
				}
				defer store.Close()

				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
				logger.Info("schema ready")
				return nil
			})
		},
	}
}

func newPruneCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete observations older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(logger *zap.Logger, cfg config.Config) error {
				if !cfg.StoreConfigured() {
					return errors.New("DATABASE_URL and DATABASE_SERVICE_KEY must be set")
				}
				if maxAge <= 0 {
					maxAge = cfg.RetentionMaxAge
				}
				if maxAge <= 0 {
					return errors.New("no retention window: set RETENTION_MAX_AGE or --max-age")
				}
				ctx := cmd.Context()
				store, err := db.New(ctx, cfg.DatabaseURL, cfg.DatabaseServiceKey)
				if err != nil {
					return err
				}
				defer store.Close()

				_, err = scheduler.Prune(ctx, store, maxAge, logger)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "override RETENTION_MAX_AGE")
	return cmd
}

// withRuntime builds the logger and config shared by every command.
func withRuntime(fn func(logger *zap.Logger, cfg config.Config) error) error {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", zap.Error(err))
		return err
	}

	if err := fn(logger, cfg); err != nil {
		logger.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

func buildTask(cfg config.Config, slot *cache.Slot, store ingest.Store, logger *zap.Logger) (*ingest.Task, error) {
	opts := ingest.Options{
		Mode:    cfg.Mode,
		Slot:    slot,
		Store:   store,
		Timeout: cfg.IngestTimeout,
		Logger:  logger,
	}
	if cfg.Mode == ingest.ModeFetch {
		opts.Fetcher = provider.New(&http.Client{Timeout: cfg.ProviderTimeout}, cfg.WeatherAPIURL)
	}
	return ingest.NewTask(opts)
}

func runServe(parent context.Context, migrate bool) error {
	return withRuntime(func(logger *zap.Logger, cfg config.Config) error {
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		slot := cache.NewSlot(func() { observability.CachePopulated.Set(1) })

		if ok, reason := cfg.IngestionEnabled(); !ok {
			logger.Warn("ingestion disabled; the read API will report no data until configured",
				zap.String("reason", reason))
		} else {
			store, err := db.New(ctx, cfg.DatabaseURL, cfg.DatabaseServiceKey)
			if err != nil {
				return err
			}
			defer store.Close()

			if migrate {
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
			}

			task, err := buildTask(cfg, slot, store, logger)
			if err != nil {
				return err
			}

			opts := []scheduler.Option{}
			if cfg.RetentionMaxAge > 0 {
				opts = append(opts, scheduler.WithRetention(store, cfg.RetentionMaxAge))
			}
			sched := scheduler.New(scheduler.RunnerFunc(func(ctx context.Context) {
				task.Run(ctx)
			}), logger, opts...)
			if err := sched.Start(); err != nil {
				return errors.Wrap(err, "start scheduler")
			}
			defer sched.Stop()

			logger.Info("ingestion scheduled", zap.String("mode", string(task.Mode())))
		}

		srv := httpserver.New(cfg, slot, logger)
		logger.Info("REST API listening", zap.String("addr", cfg.ListenAddr()))

		if err := srv.Run(ctx); err != nil {
			return errors.Wrap(err, "server")
		}
		logger.Info("shutdown complete")
		return nil
	})
}
