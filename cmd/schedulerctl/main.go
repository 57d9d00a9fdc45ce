// Package main is the operator CLI for the offer scheduler: replay overdue jobs without
// starting the API, and inspect pending and dead-lettered jobs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-commerce/backend/config"
	"github.com/aura-commerce/backend/internal/catalog"
	"github.com/aura-commerce/backend/internal/models"
	"github.com/aura-commerce/backend/internal/offers"
	"github.com/aura-commerce/backend/internal/schedule"
	"github.com/aura-commerce/backend/pkg/database"
	"github.com/aura-commerce/backend/pkg/queue"
	"github.com/aura-commerce/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	root := &cobra.Command{
		Use:           "schedulerctl",
		Short:         "Inspect and replay scheduled offer jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(reconcileCmd(logger), pendingCmd(logger), deadLettersCmd(logger))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func reconcileCmd(logger *zap.Logger) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fire every overdue PENDING job once, then exit",
		Long: `Fire every overdue PENDING job in fire-time order and exit. Future jobs are left for the
API process. Safe to run while the API is up: a job fires at most once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, pool, err := open(ctx, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			jobRepo := schedule.NewRepository(pool)
			if dryRun {
				jobs, err := jobRepo.FindAllPending(ctx)
				if err != nil {
					return err
				}
				return printJSON(overdue(jobs, time.Now()))
			}

			mutator := catalog.NewMutator(catalog.NewRepository(pool), offers.NewRepository(pool), logger)
			engine := schedule.NewEngine(jobRepo, database.NewTxManager(pool), mutator, schedule.RealClock(), schedule.Config{
				MaxAttempts:  1,
				RetryBackoff: cfg.Scheduler.FireRetryBackoff(),
			}, logger)
			if rdb, err := redis.Connect(ctx, redisOptions(cfg), logger); err == nil {
				defer rdb.Close()
				engine.SetNotifier(schedule.NewRedisNotifier(nil, queue.NewQueue(rdb.Client, logger), logger))
			}
			if err := engine.Reconcile(ctx); err != nil {
				return err
			}
			engine.Stop()

			jobs, err := jobRepo.FindAllPending(ctx)
			if err != nil {
				return err
			}
			left := overdue(jobs, time.Now())
			fmt.Printf("reconciled; %d overdue jobs still pending\n", len(left))
			if len(left) > 0 {
				return fmt.Errorf("%d jobs failed to fire", len(left))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List overdue jobs without firing them")
	return cmd
}

func pendingCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List PENDING jobs as JSON, soonest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, pool, err := open(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer pool.Close()
			jobs, err := schedule.NewRepository(pool).FindAllPending(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(jobs)
		},
	}
}

func deadLettersCmd(logger *zap.Logger) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List jobs that exhausted their fire attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			rdb, err := redis.Connect(cmd.Context(), redisOptions(cfg), logger)
			if err != nil {
				return err
			}
			defer rdb.Close()
			list, err := queue.NewQueue(rdb.Client, logger).List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum entries to show")
	return cmd
}

func open(ctx context.Context, logger *zap.Logger) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{MaxConns: 2}, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func overdue(jobs []*models.ScheduledJob, now time.Time) []*models.ScheduledJob {
	out := []*models.ScheduledJob{}
	for _, j := range jobs {
		if !j.FiresAt.After(now) {
			out = append(out, j)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	logger, _ := config.Build()
	return logger
}

func redisOptions(cfg *config.Config) redis.Options {
	return redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
}
