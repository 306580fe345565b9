package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	actionitemsapp "opsboard/internal/actionitems/application"
	actionitemsrepo "opsboard/internal/actionitems/infrastructure/postgres"
	actionitemshttp "opsboard/internal/actionitems/interfaces/http"
	anomalyapp "opsboard/internal/anomalies/application"
	anomalyrepo "opsboard/internal/anomalies/infrastructure/postgres"
	anomalyhttp "opsboard/internal/anomalies/interfaces/http"
	"opsboard/internal/audit"
	"opsboard/internal/auth"
	dashboardapp "opsboard/internal/dashboard/application"
	dashboardhttp "opsboard/internal/dashboard/interfaces/http"
	exportshttp "opsboard/internal/exports/interfaces/http"
	masterdatarepo "opsboard/internal/masterdata/infrastructure/postgres"
	ingestapp "opsboard/internal/metrics/application"
	metricsrepo "opsboard/internal/metrics/infrastructure/postgres"
	metricshttp "opsboard/internal/metrics/interfaces/http"
	obs "opsboard/internal/observability/metrics"
	rollupapp "opsboard/internal/rollups/application"
	rolluprepo "opsboard/internal/rollups/infrastructure/postgres"
	rolluphttp "opsboard/internal/rollups/interfaces/http"
	seedapp "opsboard/internal/seed/application"
	seedhttp "opsboard/internal/seed/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	obs.Register(prometheus.DefaultRegisterer)
	obs.RegisterDBMetrics(prometheus.DefaultRegisterer, db)
	auditRepo := audit.NewRepository(db)

	locationRepo := masterdatarepo.NewLocationRepository(db)
	eventStore := metricsrepo.NewEventStore(db)
	eventReader := rolluprepo.NewEventReader(db)
	rollupRepo := rolluprepo.NewRollupRepository(db)
	queueRepo := rolluprepo.NewQueueRepository(db)
	anomalyStore := anomalyrepo.NewAnomalyRepository(db)
	itemRepo := actionitemsrepo.NewItemRepository(db)

	ingestionService, err := ingestapp.NewIngestionService(eventStore)
	if err != nil {
		logger.Fatalf("ingestion service error: %v", err)
	}

	ruleConfig, err := anomalyapp.LoadRuleConfig()
	if err != nil {
		logger.Fatalf("anomaly config error: %v", err)
	}
	anomalyBroker := anomalyhttp.NewSSEBroker()
	detector, err := anomalyapp.NewDetector(rollupRepo, locationRepo, anomalyStore, ruleConfig, anomalyapp.WithNotifier(anomalyBroker))
	if err != nil {
		logger.Fatalf("detector error: %v", err)
	}

	recomputeService, err := rollupapp.NewRecomputeService(eventReader, locationRepo, rollupRepo)
	if err != nil {
		logger.Fatalf("recompute service error: %v", err)
	}
	pipeline, err := rollupapp.NewPipeline(recomputeService, detector)
	if err != nil {
		logger.Fatalf("pipeline error: %v", err)
	}
	queueProcessor, err := rollupapp.NewQueueProcessor(queueRepo, pipeline)
	if err != nil {
		logger.Fatalf("queue processor error: %v", err)
	}

	anomalyWorkflow, err := anomalyapp.NewWorkflowService(anomalyStore)
	if err != nil {
		logger.Fatalf("anomaly workflow error: %v", err)
	}
	itemService, err := actionitemsapp.NewService(itemRepo, actionitemsapp.WithLinker(anomalyWorkflow))
	if err != nil {
		logger.Fatalf("action item service error: %v", err)
	}
	dashboardService, err := dashboardapp.NewService(rollupRepo)
	if err != nil {
		logger.Fatalf("dashboard service error: %v", err)
	}
	seedService, err := seedapp.NewService(locationRepo, ingestionService)
	if err != nil {
		logger.Fatalf("seed service error: %v", err)
	}

	metricsHandler, err := metricshttp.NewHandler(ingestionService, auditRepo)
	if err != nil {
		logger.Fatalf("metrics handler error: %v", err)
	}
	rollupsHandler, err := rolluphttp.NewHandler(queueProcessor, pipeline)
	if err != nil {
		logger.Fatalf("rollups handler error: %v", err)
	}
	anomaliesHandler, err := anomalyhttp.NewHandler(anomalyWorkflow)
	if err != nil {
		logger.Fatalf("anomalies handler error: %v", err)
	}
	itemsHandler, err := actionitemshttp.NewHandler(itemService)
	if err != nil {
		logger.Fatalf("action items handler error: %v", err)
	}
	dashboardHandler, err := dashboardhttp.NewHandler(dashboardService)
	if err != nil {
		logger.Fatalf("dashboard handler error: %v", err)
	}
	exportsHandler, err := exportshttp.NewHandler(rollupRepo, anomalyWorkflow, locationRepo)
	if err != nil {
		logger.Fatalf("exports handler error: %v", err)
	}
	seedHandler, err := seedhttp.NewHandler(seedService)
	if err != nil {
		logger.Fatalf("seed handler error: %v", err)
	}

	if cfg.QueueDrainInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.QueueDrainInterval)
			defer ticker.Stop()
			for range ticker.C {
				result, err := queueProcessor.Drain(context.Background(), "", cfg.QueueDrainCap)
				if err != nil {
					logger.Printf("queue drain error: %v", err)
					continue
				}
				if result.Processed > 0 {
					logger.Printf("queue drained: spans=%d rollups=%d anomalies=%d", result.Processed, result.Upserted, result.Anomalies)
				}
			}
		}()
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/metrics/events", metricsHandler)
	mux.Handle("/api/v1/metrics/csv", metricsHandler)
	mux.Handle("/api/v1/rollups/process", rollupsHandler)
	mux.Handle("/api/v1/rollups/recompute", rollupsHandler)
	mux.Handle("/api/v1/anomalies", anomaliesHandler)
	mux.Handle("/api/v1/anomalies/stream", anomalyhttp.NewStreamHandler(anomalyBroker))
	mux.Handle("/api/v1/anomalies/", anomaliesHandler)
	mux.Handle("/api/v1/action-items", itemsHandler)
	mux.Handle("/api/v1/action-items/", itemsHandler)
	mux.Handle("/api/v1/dashboard/kpis", dashboardHandler)
	mux.Handle("/api/v1/dashboard/history", dashboardHandler)
	mux.Handle("/api/v1/exports/rollups.csv", exportsHandler)
	mux.Handle("/api/v1/exports/rollups.xlsx", exportsHandler)
	mux.Handle("/api/v1/exports/anomalies.pdf", exportsHandler)
	mux.Handle("/api/v1/seed/run", seedHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL        string
	HTTPAddr           string
	JWTSecret          string
	QueueDrainInterval time.Duration
	QueueDrainCap      int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		QueueDrainInterval: getenvDuration("QUEUE_DRAIN_INTERVAL", time.Minute),
		QueueDrainCap:      getenvIntDefault("QUEUE_DRAIN_CAP", 20),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
