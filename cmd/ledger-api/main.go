// cmd/ledger-api/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"acquisition-ledger/internal/api"
	"acquisition-ledger/internal/application"
	"acquisition-ledger/internal/common/camunda"
	"acquisition-ledger/internal/common/config"
	"acquisition-ledger/internal/common/database"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/common/observability"
	"acquisition-ledger/internal/ledger"
	"acquisition-ledger/internal/reference"
	"acquisition-ledger/internal/search"
	"acquisition-ledger/internal/store/postgres"

	ct "acquisition-ledger/internal/workers/ledger/create-transaction"
	rt "acquisition-ledger/internal/workers/ledger/reverse-transaction"
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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting ledger API...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability setup failed", zap.Error(err))
	}

	ctx := context.Background()

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

	if err := database.Migrate(pg.DB, cfg.Database.Postgres.Database, log); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	// --- Redis ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Stores and services ---
	txStore := postgres.NewTransactionStore(pg.DB)
	appStore := postgres.NewApplicationStore(pg.DB)
	refStore := postgres.NewReferenceStore(pg.DB)

	refSvc := reference.NewService(refStore, rdb.Client, cfg.Ledger.CacheTTL(), log)
	if cfg.Ledger.SeedReferenceData {
		if _, err := refSvc.SeedIfEmpty(ctx); err != nil {
			zapLog.Fatal("reference data seeding failed", zap.Error(err))
		}
	}

	appSvc := application.NewService(appStore, refStore, rdb.Client, cfg.Ledger.CacheTTL(), log)

	ledgerOpts := []ledger.Option{ledger.WithTracer(obs.Tracer())}
	if cfg.Database.Elasticsearch.Enabled {
		if projector := newProjector(ctx, cfg, zapLog, log); projector != nil {
			ledgerOpts = append(ledgerOpts, ledger.WithProjector(projector))
		}
	}
	ledgerSvc := ledger.NewService(txStore, appSvc, log, ledgerOpts...)

	// --- Zeebe workers ---
	var workers *camunda.WorkerManager
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClient(ctx, cfg.Camunda)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		workers = camunda.NewWorkerManager(zeebe.GetClient(), cfg, log)
		started := workers.Start(
			camunda.Registration{
				TaskType: ct.TaskType,
				Handler:  ct.NewHandler(ct.LoadConfig(cfg), ledgerSvc, obs, log).Handle,
			},
			camunda.Registration{
				TaskType: rt.TaskType,
				Handler:  rt.NewHandler(rt.LoadConfig(cfg), ledgerSvc, obs, log).Handle,
			},
		)
		zapLog.Info("Workers registered", zap.Strings("taskTypes", started))
	}

	// --- HTTP API ---
	server := api.NewServer(cfg.Server, api.Dependencies{
		Ledger:        ledgerSvc,
		Applications:  appSvc,
		Reference:     refSvc,
		Observability: obs,
	}, log)

	go func() {
		if err := server.Listen(cfg.Server.Address()); err != nil {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	var ready atomic.Bool
	metricsServer := newMetricsServer(cfg.Server.MetricsAddress(), &ready, func(ctx context.Context) error {
		if err := pg.Ping(ctx); err != nil {
			return err
		}
		if err := rdb.Ping(ctx); err != nil {
			return err
		}
		if zeebe != nil {
			return zeebe.HealthCheck(ctx)
		}
		return nil
	})
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()
	ready.Store(true)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if workers != nil {
		workers.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping metrics server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Ledger API stopped gracefully")
}

// newProjector connects to Elasticsearch and prepares the index. Search is
// optional, so failures are logged and the ledger runs without a projector.
func newProjector(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) *search.Projector {
	var es *database.ElasticsearchClient
	err := retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Warn("elasticsearch unavailable, search projection disabled", zap.Error(err))
		return nil
	}

	projector := search.NewProjector(es.Client, cfg.Database.Elasticsearch.Index, log)
	if err := projector.EnsureIndex(ctx); err != nil {
		zapLog.Warn("elasticsearch index setup failed, search projection disabled", zap.Error(err))
		return nil
	}
	zapLog.Info("Elasticsearch connected successfully")
	return projector
}

func newMetricsServer(addr string, ready *atomic.Bool, check func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if !ready.Load() || check(ctx) != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
