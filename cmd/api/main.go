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

	"github.com/bryanwahyu/anomaly-guard/internal/application"
	"github.com/bryanwahyu/anomaly-guard/internal/application/ai"
	"github.com/bryanwahyu/anomaly-guard/internal/application/audit"
	"github.com/bryanwahyu/anomaly-guard/internal/application/detectors"
	"github.com/bryanwahyu/anomaly-guard/internal/config"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/ai/openai"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/anomaly-guard/internal/infra/storage"
	"github.com/bryanwahyu/anomaly-guard/internal/logger"
	"github.com/bryanwahyu/anomaly-guard/internal/metrics"
	"github.com/bryanwahyu/anomaly-guard/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := db.Open(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("database init error")
	}
	defer stores.Close()

	rules, err := cfg.BusinessRules()
	if err != nil {
		log.Fatal().Err(err).Msg("business rules")
	}
	engine, err := detectors.NewBusinessRuleEngine(rules...)
	if err != nil {
		log.Fatal().Err(err).Msg("business rules")
	}
	log.Info().Strs("rules", engine.Rules()).Msg("business rules loaded")

	collector := metrics.New()
	clock := application.SystemClock{}
	client := openai.NewSemanticClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	if client == nil {
		log.Warn().Msg("OPENAI_API_KEY not set, semantic analysis will be skipped")
	}

	svc := &audit.Service{
		Transactions:   stores.Transactions,
		Findings:       stores.Findings,
		Detectors:      detectors.Default(stores.Transactions, clock, engine),
		Semantic:       ai.NewService(client, cfg.OpenAI.Timeout),
		Metrics:        collector,
		Clock:          clock,
		Log:            log,
		PersistWorkers: cfg.Pipeline.PersistWorkers,
		EnrichWorkers:  cfg.Pipeline.EnrichWorkers,
	}

	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("minio init error")
		}
		svc.Archive = store
	}

	checkers := map[string]middleware.HealthChecker{}
	if stores.DB != nil {
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: stores.DB}
	}
	if len(cfg.Server.APIKeys) == 0 {
		log.Warn().Msg("no API keys configured, /v1 is unauthenticated")
	}

	handler := httpserver.NewRouter(svc, httpserver.Options{
		Log:          log,
		Metrics:      collector,
		Checkers:     checkers,
		APIKeys:      cfg.Server.APIKeys,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBatchSize: cfg.Server.MaxBatchSize,
		RateLimiter:  middleware.NewRateLimiter(ctx, cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// enrichment waits on the semantic service
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("driver", cfg.Database.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
