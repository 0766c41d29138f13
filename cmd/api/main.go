package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timecapsule-api/api/swagger"
	"github.com/noah-isme/timecapsule-api/internal/handler"
	"github.com/noah-isme/timecapsule-api/internal/repository"
	"github.com/noah-isme/timecapsule-api/internal/router"
	"github.com/noah-isme/timecapsule-api/internal/service"
	"github.com/noah-isme/timecapsule-api/internal/wikipedia"
	"github.com/noah-isme/timecapsule-api/pkg/cache"
	"github.com/noah-isme/timecapsule-api/pkg/config"
	"github.com/noah-isme/timecapsule-api/pkg/database"
	"github.com/noah-isme/timecapsule-api/pkg/jobs"
	"github.com/noah-isme/timecapsule-api/pkg/logger"
)

// @title Tech Time Capsule API
// @version 1.0.0
// @description Catalog of dated technology events with category filters and trivia
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, "capsule", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Featured.CacheTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	importRepo := repository.NewImportJobRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	eventSvc := service.NewEventService(eventRepo, categoryRepo, cacheSvc, metrics, validate, logr, service.EventServiceConfig{
		FeaturedLimit: cfg.Featured.Limit,
		FeaturedTTL:   cfg.Featured.CacheTTL,
	})
	categorySvc := service.NewCategoryService(categoryRepo, cacheSvc, validate, logr, cfg.Catalog.CacheTTL)
	triviaSvc := service.NewTriviaService(eventRepo, logr)
	exportSvc := service.NewExportService(eventSvc, logr, nil, nil, nil)

	handlers := router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Events:     handler.NewEventHandler(eventSvc, exportSvc),
		Categories: handler.NewCategoryHandler(categorySvc),
		Trivia:     handler.NewTriviaHandler(triviaSvc),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(cacheRepo.Ping),
		}),
	}

	if cfg.Imports.Enabled {
		feed := wikipedia.NewClient(wikipedia.Config{
			BaseURL:   cfg.Wikipedia.BaseURL,
			UserAgent: cfg.Wikipedia.UserAgent,
			Timeout:   cfg.Wikipedia.Timeout,
		}, logr)
		importer := service.NewImporter(feed, eventRepo, userRepo, metrics, logr, service.ImporterConfig{
			Archivist: cfg.Imports.Archivist,
			Keywords:  cfg.Imports.Keywords,
			Delay:     cfg.Imports.Delay,
			FastDelay: cfg.Imports.FastDelay,
		})
		worker := service.NewImportWorker(importRepo, importer, metrics, logr)
		queue := jobs.NewQueue("imports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Imports.Workers,
			MaxRetries: cfg.Imports.MaxRetries,
			RetryDelay: cfg.Imports.RetryDelay,
			Logger:     logr,
			OnResult:   worker.OnResult,
		})
		queue.Start(ctx)
		defer queue.Stop()

		importSvc := service.NewImportService(importRepo, queue, validate, logr)
		handlers.Imports = handler.NewImportHandler(importSvc)

		if cfg.Imports.Schedule != "" {
			scheduler, err := importSvc.Schedule(cfg.Imports.Schedule)
			if err != nil {
				logr.Sugar().Fatalw("failed to schedule imports", "error", err)
			}
			scheduler.Start()
			defer scheduler.Stop()
		}
	}

	r := router.New(router.Options{Config: cfg, Logger: logr, Metrics: metrics, Tokens: authSvc}, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
