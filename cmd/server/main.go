// Package main runs the storefront admin API and the offer scheduler with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-commerce/backend/config"
	"github.com/aura-commerce/backend/internal/auth"
	"github.com/aura-commerce/backend/internal/catalog"
	"github.com/aura-commerce/backend/internal/middleware"
	"github.com/aura-commerce/backend/internal/offers"
	"github.com/aura-commerce/backend/internal/schedule"
	"github.com/aura-commerce/backend/pkg/database"
	"github.com/aura-commerce/backend/pkg/events"
	"github.com/aura-commerce/backend/pkg/queue"
	"github.com/aura-commerce/backend/pkg/redis"
	"github.com/aura-commerce/backend/pkg/response"
	"github.com/aura-commerce/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: time.Duration(cfg.Database.MaxConnLifetime) * time.Minute,
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis only carries notifications; the scheduler runs without it.
	var (
		publisher  *events.Publisher
		deadLetter *queue.Queue
	)
	rdb, err := redis.Connect(ctx, redisOptions(cfg), logger)
	if err != nil {
		logger.Warn("redis disabled: no discount events or dead-letter list", zap.Error(err))
	} else {
		defer rdb.Close()
		publisher = events.NewPublisher(rdb.Client, logger)
		deadLetter = queue.NewQueue(rdb.Client, logger)
	}

	var s3Client *storage.S3
	if cfg.AWS.AuditBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			AuditBucket:     cfg.AWS.AuditBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 audit archive disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	txManager := database.NewTxManager(pool)

	// Catalog and offers
	offerRepo := offers.NewRepository(pool)
	productRepo := catalog.NewRepository(pool)
	mutator := catalog.NewMutator(productRepo, offerRepo, logger)

	// Scheduler
	jobRepo := schedule.NewRepository(pool)
	engine := schedule.NewEngine(jobRepo, txManager, mutator, schedule.RealClock(), schedule.Config{
		MaxAttempts:  cfg.Scheduler.FireMaxAttempts,
		RetryBackoff: cfg.Scheduler.FireRetryBackoff(),
	}, logger)
	engine.SetNotifier(newNotifier(publisher, deadLetter, logger))

	// Overdue jobs are applied before the first request is served.
	if err := engine.Reconcile(ctx); err != nil {
		logger.Fatal("scheduler reconcile", zap.Error(err))
	}
	if cfg.Scheduler.SweepSpec != "" {
		if err := engine.StartSweeper(cfg.Scheduler.SweepSpec); err != nil {
			logger.Fatal("scheduler sweeper", zap.Error(err))
		}
	}

	offerService := offers.NewService(offerRepo, jobRepo, engine, mutator, time.Now, logger)
	if s3Client != nil {
		offerService.SetArchiver(s3Client)
	}
	offerHandler := offers.NewHandler(offerService, logger)
	var dlqLister schedule.DeadLetterLister
	if deadLetter != nil {
		dlqLister = deadLetter
	}
	schedulerHandler := schedule.NewHandler(engine, dlqLister, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if !engine.Ready() {
			response.ServiceUnavailable(c, "scheduler is reconciling")
			return
		}
		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "ok"
			if err := rdb.Healthy(c.Request.Context()); err != nil {
				redisStatus = "unreachable"
			}
		}
		response.OK(c, gin.H{"status": "ok", "armed_jobs": engine.Armed(), "redis": redisStatus})
	})

	// Admin API (JWT required)
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole(auth.RoleAdmin, auth.RoleMarketing))
	{
		// Offers
		admin.POST("/offers", offerHandler.Create)
		admin.GET("/offers", offerHandler.List)
		admin.GET("/offers/:id", offerHandler.GetByID)
		admin.PUT("/offers/:id", offerHandler.Update)
		admin.DELETE("/offers/:id", offerHandler.Delete)
		admin.GET("/offers/:id/jobs", offerHandler.Jobs)

		// Scheduler
		admin.GET("/scheduler/status", schedulerHandler.Status)
		admin.POST("/scheduler/sweep", middleware.RequireRole(auth.RoleAdmin), schedulerHandler.Sweep)
		admin.GET("/scheduler/dead-letters", schedulerHandler.DeadLetters)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	engine.Stop()
	logger.Info("server stopped")
}

// newNotifier keeps nil pointers from turning into non-nil interfaces.
func newNotifier(publisher *events.Publisher, dlq *queue.Queue, logger *zap.Logger) schedule.Notifier {
	var (
		p schedule.EventPublisher
		d schedule.DeadLetterSink
	)
	if publisher != nil {
		p = publisher
	}
	if dlq != nil {
		d = dlq
	}
	return schedule.NewRedisNotifier(p, d, logger)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

func redisOptions(cfg *config.Config) redis.Options {
	return redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
}
