// cmd/junction/main.go
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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ai-junction/internal/adapters"
	"ai-junction/internal/analyzer"
	"ai-junction/internal/api"
	"ai-junction/internal/audit"
	"ai-junction/internal/common/config"
	"ai-junction/internal/common/database"
	httpclient "ai-junction/internal/common/http"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/common/observability"
	"ai-junction/internal/dispatch"
	"ai-junction/internal/output"
	"ai-junction/internal/pipeline"
	"ai-junction/internal/registry"
	"ai-junction/internal/selector"
	"ai-junction/internal/tracker"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting ai-junction...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()
	var checks []api.Check

	// --- Registry store ---
	var store registry.Store = registry.NewMemoryStore()
	if cfg.Database.Postgres.Enabled() {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		pgStore := registry.NewPostgresStore(pg.DB)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("registry schema init failed", zap.Error(err))
		}
		store = pgStore
		checks = append(checks, api.Check{Name: "postgres", Fn: pg.Ping})
		zapLog.Info("PostgreSQL connected successfully")
	} else {
		zapLog.Warn("PostgreSQL not configured, registry is in memory only")
	}

	// --- Redis: registry cache, tracker, rate limiter ---
	var (
		cache   registry.Cache
		track   tracker.Tracker = tracker.NewMemoryTracker()
		limiter api.Limiter     = api.NewMemoryLimiter(cfg.Server.RateLimit, time.Minute)
	)
	if cfg.Database.Redis.Enabled() {
		redis := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()

		cache = registry.NewRedisCache(redis.Client, cfg.Registry.CachePrefix, config.GetDuration(cfg.Registry.CacheTTL), log)
		track = tracker.NewRedisTracker(redis.Client, "")
		limiter = api.NewRedisLimiter(redis.Client, cfg.Server.RateLimit, time.Minute)
		checks = append(checks, api.Check{Name: "redis", Fn: redis.Ping})
		zapLog.Info("Redis connected successfully")
	}

	// --- Elasticsearch audit sink ---
	var sink audit.Sink = audit.NoopSink{}
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		esSink := audit.NewElasticsearchSink(esClient.Client, cfg.Database.Elasticsearch.AuditIndex)
		if err := esSink.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("audit index init failed", zap.Error(err))
		}
		sink = esSink
		checks = append(checks, api.Check{Name: "elasticsearch", Fn: esClient.Ping})
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Routing core ---
	reg := registry.New(store, cache, log)

	modules := adapters.NewRegistry()
	if err := adapters.RegisterBuiltins(modules); err != nil {
		zapLog.Fatal("adapter registration failed", zap.Error(err))
	}
	zapLog.Info("Adapter modules registered", zap.Strings("modules", modules.Names()))

	dispatcher := dispatch.New(dispatch.Config{
		Timeout: config.GetDuration(cfg.Dispatch.Timeout),
		Tracer:  obs.Tracer(),
	}, modules, httpclient.NewClient(0), log)
	defer dispatcher.Close()
	reg.AddEvictor(dispatcher)

	an := analyzer.New(analyzer.Config{
		IntentURL: cfg.Analyzer.IntentURL,
		APIKey:    cfg.Analyzer.APIKey,
		Timeout:   config.GetDuration(cfg.Analyzer.Timeout),
	}, httpclient.NewClient(config.GetDuration(cfg.Analyzer.Timeout)), log)

	out := output.New(output.Config{
		TTSURL:      cfg.Output.TTSURL,
		TTSLanguage: cfg.Output.TTSLanguage,
		Timeout:     config.GetDuration(cfg.Output.Timeout),
	}, httpclient.NewClient(config.GetDuration(cfg.Output.Timeout)), log)

	sel := selector.New(log)

	pipe := pipeline.New(pipeline.Deps{
		Analyzer:      an,
		Registry:      reg,
		Selector:      sel,
		Dispatcher:    dispatcher,
		Output:        out,
		Tracker:       track,
		Audit:         sink,
		Observability: obs,
	}, log)

	handler := api.NewHandler(api.Config{
		MaxInputLength: cfg.Server.MaxInputLength,
	}, api.Deps{
		Pipeline: pipe,
		Registry: reg,
		Analyzer: an,
		Selector: sel,
		Tracker:  track,
		Limiter:  limiter,
		Checks:   checks,
	}, log)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	// --- Serve until signalled ---
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutdown signal received, draining requests...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLog.Error("Error shutting down HTTP server", zap.Error(err))
		}
		if err := obs.Shutdown(shutdownCtx); err != nil {
			zapLog.Error("Error shutting down observability", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("HTTP server failed", zap.Error(err))
	}

	zapLog.Info("ai-junction stopped")
}
