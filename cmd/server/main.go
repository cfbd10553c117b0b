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

	"devmind/datacollector/internal/api"
	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/config"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/db"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/jobs"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/metrics"
	"devmind/datacollector/internal/providers"
	"devmind/datacollector/internal/routes"
	"devmind/datacollector/internal/services"
	"devmind/datacollector/internal/storage"
	"devmind/datacollector/internal/workers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const queueMonitorInterval = 30 * time.Second

func main() {
	cfg := config.Load()

	if err := logging.Init(cfg.AppEnv, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	logging.Info("Data collector starting up",
		"environment", cfg.AppEnv,
		"timestamp", time.Now().Format(time.RFC3339),
	)

	if cfg.JWTSecret == "" {
		logging.Fatal("JWT_SECRET is required")
	}

	gdb, driver, err := db.OpenORM(cfg)
	if err != nil {
		logging.Fatal("Failed to connect to database", "error", err.Error())
	}
	if err := db.Migrate(gdb); err != nil {
		logging.Fatal("Failed to migrate database", "error", err.Error())
	}
	sqlxDB, err := db.NewSQLX(gdb, driver)
	if err != nil {
		logging.Fatal("Failed to initialize sqlx", "error", err.Error())
	}

	blobs, err := storage.NewLocalStore(cfg.StorageRoot)
	if err != nil {
		logging.Fatal("Failed to initialize attachment storage", "root", cfg.StorageRoot, "error", err.Error())
	}

	metricsReg := metrics.Default()

	var (
		rdb   *redis.Client
		queue *common.RedisQueueService
		lock  common.TaskLock
		cache common.CacheInterface
	)
	if cfg.UseRedis() {
		rdb = common.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		queue = common.NewRedisQueueService(rdb)
		lock = common.NewRedisTaskLock(rdb)
		cache = common.NewRedisCacheService(rdb, string(constants.CachePrefixRedisCache))
		logging.Info("Using Redis for locks, job queue and cache")
	} else {
		lock = common.NewMemoryTaskLock()
		cache = common.NewCacheService(5*time.Minute, 10*time.Minute)
		logging.Warn("REDIS_HOST not set, running with in-process locks and job dispatch")
	}
	defer cache.Close()

	registry := providers.NewRegistry(
		providers.NewHTTPFeedProvider(&http.Client{Timeout: 30 * time.Second}, cfg.ProviderRequestDelay),
		providers.NewFeishuProvider(),
	)

	configRepo := repositories.NewCollectorConfigRepo(gdb)
	recordRepo := repositories.NewRawDataRecordRepo(gdb)
	attachmentRepo := repositories.NewRawDataAttachmentRepo(gdb)
	executionRepo := repositories.NewJobExecutionRepo(gdb)

	runner := jobs.NewRunner(jobs.RunnerDeps{
		DB:           gdb,
		Configs:      configRepo,
		Records:      recordRepo,
		Attachments:  attachmentRepo,
		Registry:     registry,
		Blobs:        blobs,
		Lock:         lock,
		Metrics:      metricsReg,
		URLPrefix:    cfg.StorageURLPrefix,
		LockTTL:      cfg.JobLockTTL,
		RequestDelay: cfg.ProviderRequestDelay,
	})

	statsSvc := services.NewStatsService(repositories.NewStatsRepo(sqlxDB), cache)
	executor := workers.NewJobExecutor(runner, executionRepo, statsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var dispatcher services.JobDispatcher
	if queue != nil {
		hostname, _ := os.Hostname()
		worker := workers.NewJobQueueWorker(hostname, queue, executor)
		monitor := workers.NewJobQueueMonitor(queue, metricsReg)
		g.Go(func() error { return worker.Start(ctx, cfg.JobWorkers) })
		g.Go(func() error {
			monitor.Start(ctx, queueMonitorInterval)
			return nil
		})
		dispatcher = workers.NewRedisDispatcher(queue)
	} else {
		local := workers.NewLocalDispatcher(executor, cfg.JobWorkers)
		g.Go(func() error {
			local.Start(ctx)
			return nil
		})
		dispatcher = local
	}

	jobSvc := services.NewJobService(configRepo, executionRepo, dispatcher, metricsReg, cfg.ManualRangeMaxDays)
	configSvc := services.NewCollectorConfigService(configRepo, registry, nil)

	scheduler := workers.NewCollectorScheduler(configRepo, jobSvc, metricsReg)
	configSvc.SetScheduleSyncer(scheduler)
	if err := scheduler.LoadAll(ctx); err != nil {
		logging.Fatal("Failed to load collector schedules", "error", err.Error())
	}
	g.Go(func() error {
		scheduler.Start(ctx)
		return nil
	})

	// download links must never verify as bearer tokens
	signer := common.NewURLSignerService([]byte("attachment-download:"+cfg.JWTSecret), cache)
	recordSvc := services.NewRecordService(recordRepo, attachmentRepo, blobs, signer, routes.APIPrefix)

	deps := &api.Dependencies{
		DB: sqlxDB,
		Services: &api.Services{
			Configs: configSvc,
			Jobs:    jobSvc,
			Records: recordSvc,
			Stats:   statsSvc,
		},
	}

	handler := routes.RegisterRoutes(deps, routes.RouterOptions{
		JWTSecret:    []byte(cfg.JWTSecret),
		Metrics:      metricsReg,
		Gatherer:     prometheus.DefaultGatherer,
		HealthDB:     sqlxDB,
		HealthRedis:  rdb,
		HealthBlobs:  blobs,
		UpSince:      time.Now(),
		RateLimitRPS: cfg.RateLimitRPS,
		RateBurst:    cfg.RateBurst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logging.Info("Server starting", "addr", cfg.HTTPAddr, "environment", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logging.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.Error("Data collector stopped with error", "error", err.Error())
		os.Exit(1)
	}
	logging.Info("Data collector stopped")
}
