// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"proco-workers/internal/agent"
	awsclients "proco-workers/internal/common/aws"
	"proco-workers/internal/common/camunda"
	"proco-workers/internal/common/config"
	"proco-workers/internal/common/database"
	"proco-workers/internal/common/llm"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/observability"
	"proco-workers/internal/common/validation"
	"proco-workers/internal/search"
	"proco-workers/internal/store"
	"proco-workers/pkg/registry"

	nl "proco-workers/internal/workers/issues/notify-landlord"
	pim "proco-workers/internal/workers/issues/post-issue-message"
	si "proco-workers/internal/workers/issues/search-issues"
	lc "proco-workers/internal/workers/tenant-chat/load-conversation"
	ptm "proco-workers/internal/workers/tenant-chat/process-tenant-message"
)

// retryWithBackoff runs operation until it succeeds, doubling the delay
// between attempts.
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

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.TraceSampleRate)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Activity registry ---
	reg, err := registry.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}
	if err := reg.Validate(); err != nil {
		zapLog.Fatal("activity registry invalid", zap.Error(err))
	}

	// --- PostgreSQL ---
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
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := esClient.Ping(ctx); err != nil {
			return err
		}
		return esClient.EnsureIndex(ctx, cfg.Search.IssuesIndex, search.IssueMapping)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Search.IssuesIndex))

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientFromConfig(cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Shared components ---
	model, err := llm.New(cfg.APIs.GenAI, log)
	if err != nil {
		zapLog.Fatal("inference client init failed", zap.Error(err))
	}
	chatAgent := agent.New(agent.ConfigFromApp(cfg), model, log)

	queries := store.New(pg.DB)
	vendors := store.NewCachedVendors(queries, rdb.Client,
		config.GetDuration(cfg.Agent.Vendor.CacheTTL), log)
	issueIndex := search.NewIssueIndex(esClient.Client, cfg.Search.IssuesIndex)

	validator := func(taskType string) *validation.Schema {
		schema, err := reg.InputValidator(taskType)
		if err != nil {
			zapLog.Fatal("input schema invalid", zap.String("taskType", taskType), zap.Error(err))
		}
		return schema
	}

	// --- Workers ---
	var workers []*camunda.Worker
	start := func(taskType string, handler camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), taskType, wcfg, handler, obs, zapLog))
	}

	if config.IsWorkerEnabled(cfg, ptm.TaskType) {
		start(ptm.TaskType, ptm.NewHandler(ptm.ConfigFromApp(cfg), ptm.Dependencies{
			Runner:    store.NewRunner(pg.DB),
			Agent:     chatAgent,
			Vendors:   vendors,
			Issues:    queries,
			Indexer:   issueIndex,
			Validator: validator(ptm.TaskType),
			Logger:    log,
		}))
	}

	if config.IsWorkerEnabled(cfg, lc.TaskType) {
		start(lc.TaskType, lc.NewHandler(lc.ConfigFromApp(cfg), lc.Dependencies{
			Store:     queries,
			History:   chatAgent.History(),
			Issues:    queries,
			Validator: validator(lc.TaskType),
			Logger:    log,
		}))
	}

	if config.IsWorkerEnabled(cfg, nl.TaskType) {
		nlCfg := nl.ConfigFromApp(cfg)
		deps := nl.Dependencies{
			Issues:    queries,
			Validator: validator(nl.TaskType),
			Logger:    log,
		}
		if nlCfg.EmailEnabled {
			sesClient, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("SES client init failed", zap.Error(err))
			}
			deps.Email = sesClient
		}
		if nlCfg.SMSEnabled {
			snsClient, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("SNS client init failed", zap.Error(err))
			}
			deps.SMS = snsClient
		}
		start(nl.TaskType, nl.NewHandler(nlCfg, deps))
	}

	if config.IsWorkerEnabled(cfg, pim.TaskType) {
		start(pim.TaskType, pim.NewHandler(pim.ConfigFromApp(cfg), pim.Dependencies{
			Issues:    queries,
			Users:     queries,
			Messages:  queries,
			Validator: validator(pim.TaskType),
			Logger:    log,
		}))
	}

	if config.IsWorkerEnabled(cfg, si.TaskType) {
		start(si.TaskType, si.NewHandler(si.ConfigFromApp(cfg), issueIndex, validator(si.TaskType), log))
	}

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		for name, ping := range map[string]func(context.Context) error{
			"postgres":      pg.Ping,
			"redis":         rdb.Ping,
			"elasticsearch": esClient.Ping,
			"zeebe":         zeebe.HealthCheck,
		} {
			if err := ping(checkCtx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.App.HTTPAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	for _, w := range workers {
		w.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
