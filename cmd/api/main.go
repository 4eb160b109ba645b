package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicore/pdfjobs/internal/cache"
	"github.com/clinicore/pdfjobs/internal/config"
	httpserver "github.com/clinicore/pdfjobs/internal/http"
	"github.com/clinicore/pdfjobs/internal/http/handlers"
	"github.com/clinicore/pdfjobs/internal/http/middleware"
	"github.com/clinicore/pdfjobs/internal/renderer"
	"github.com/clinicore/pdfjobs/internal/repository"
	"github.com/clinicore/pdfjobs/internal/service"
	"github.com/clinicore/pdfjobs/internal/storage"
	"github.com/clinicore/pdfjobs/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[pdfjobs] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobsRepo, recordsRepo, repoCloser := setupRepositories(ctx, cfg, logger)
	defer repoCloser()

	jobCache, cacheCloser := setupJobCache(ctx, cfg, logger)
	defer cacheCloser()

	files, err := storage.NewFileStore(cfg.StorageDir)
	if err != nil {
		logger.Fatalf("failed to initialize pdf storage: %v", err)
	}

	pdfRenderer := setupRenderer(cfg, logger)

	jobsService := service.NewJobsService(jobsRepo, recordsRepo, jobCache, logger)
	api := handlers.NewAPI(jobsService, files)

	identities := middleware.ParseIdentityRegistry(cfg.AuthUsers)
	if identities.Empty() {
		logger.Printf("AUTH_USERS not configured, running in unauthenticated development mode")
	}

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		Identities:     identities,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		renderWorker := worker.New(jobsRepo, recordsRepo, pdfRenderer, files, jobCache, logger, worker.Config{
			PollInterval:  time.Duration(cfg.WorkerPollIntervalMS) * time.Millisecond,
			RenderTimeout: time.Duration(cfg.WorkerRenderTimeoutMS) * time.Millisecond,
		})
		go renderWorker.Start(ctx)
		logger.Printf("render worker started poll_interval_ms=%d", cfg.WorkerPollIntervalMS)
	} else {
		logger.Printf("render worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupRepositories(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.JobsRepository, repository.RecordsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repositories")
		return repository.NewMemoryJobsRepository(), repository.NewMemoryRecordsRepository(), func() {}
	}

	pgJobs, err := repository.NewPostgresJobsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres repositories, fallback to memory: %v", err)
		return repository.NewMemoryJobsRepository(), repository.NewMemoryRecordsRepository(), func() {}
	}
	logger.Printf("postgres repositories initialized")
	return pgJobs, repository.NewPostgresRecordsRepository(pgJobs.Pool()), func() {
		pgJobs.Close()
	}
}

func setupJobCache(ctx context.Context, cfg config.Config, logger *log.Logger) (cache.JobCache, func()) {
	ttl := time.Duration(cfg.StatusCacheTTLSeconds) * time.Second
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory job cache")
		return cache.NewMemoryJobCache(ttl), func() {}
	}

	redisCache, err := cache.NewRedisJobCache(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      ttl,
	})
	if err != nil {
		logger.Printf("failed to initialize redis job cache, fallback to memory: %v", err)
		return cache.NewMemoryJobCache(ttl), func() {}
	}
	logger.Printf("redis job cache initialized")
	return redisCache, func() {
		_ = redisCache.Close()
	}
}

func setupRenderer(cfg config.Config, logger *log.Logger) renderer.Renderer {
	if cfg.RendererURL == "" {
		logger.Printf("RENDERER_URL not configured, using built-in static renderer")
		return renderer.NewStaticRenderer()
	}
	logger.Printf("http renderer initialized url=%s", cfg.RendererURL)
	return renderer.NewHTTPRenderer(renderer.HTTPRendererConfig{
		BaseURL:    cfg.RendererURL,
		Timeout:    time.Duration(cfg.RendererTimeoutMS) * time.Millisecond,
		MaxRetries: cfg.RendererMaxRetries,
	})
}
