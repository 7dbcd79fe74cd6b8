package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JJVergara/evasystem-sub001/internal/archive"
	"github.com/JJVergara/evasystem-sub001/internal/config"
	"github.com/JJVergara/evasystem-sub001/internal/events"
	"github.com/JJVergara/evasystem-sub001/internal/ingestion"
	"github.com/JJVergara/evasystem-sub001/internal/matching"
	"github.com/JJVergara/evasystem-sub001/internal/mentions"
	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/JJVergara/evasystem-sub001/internal/notifications"
	"github.com/JJVergara/evasystem-sub001/internal/ranking"
	"github.com/JJVergara/evasystem-sub001/internal/repository"
	"github.com/JJVergara/evasystem-sub001/internal/scheduler"
	"github.com/JJVergara/evasystem-sub001/internal/scoring"
	"github.com/JJVergara/evasystem-sub001/internal/tracking"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// store is the set of repository views the pipeline needs, satisfied by
// both the Postgres and the in-memory implementations.
type store interface {
	Mentions() repository.MentionRepository
	Ambassadors() repository.AmbassadorRepository
	Fiestas() repository.FiestaRepository
}

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting campaign verification service")

	// Initialize persistence
	var repos store
	if cfg.DatabaseURL != "" {
		pg, err := repository.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			logrus.Fatalf("Failed to initialize postgres: %v", err)
		}
		repos = pg
	} else {
		logrus.Warn("DATABASE_URL not set, using in-memory repositories")
		repos = repository.NewMemoryStore()
	}

	// Initialize archive
	var archiveStore archive.Store
	if cfg.StorageAccount != "" {
		blobArchive, err := archive.NewBlobArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize blob archive: %v", err)
		}
		archiveStore = blobArchive
	} else {
		logrus.Warn("AZURE_STORAGE_ACCOUNT not set, using in-memory archive")
		archiveStore = archive.NewMemoryArchive()
	}

	// Initialize the verification pipeline
	bus := events.NewBus(256)
	notificationService := notifications.NewService(cfg)
	scoringEngine := scoring.NewEngine(cfg, repos.Ambassadors(), repos.Mentions(), bus)
	stateMachine := mentions.NewService(repos.Mentions(), scoringEngine, bus)
	prober := tracking.NewInstagramProber(cfg)
	tracker := tracking.NewTracker(cfg, repos.Mentions(), stateMachine, prober)
	matcher := matching.NewService()
	ingestionService := ingestion.NewService(cfg, matcher, repos.Mentions(), repos.Ambassadors(), repos.Fiestas())
	aggregator := ranking.NewAggregator(repos.Ambassadors(), repos.Mentions())
	reporter := ranking.NewReporter(cfg, aggregator, notificationService, archiveStore, repos.Mentions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Consume raw events and domain events
	go ingestionService.Run(ctx)
	go dispatchEvents(bus, notificationService)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, tracker, reporter)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(tracker, ingestionService)).Methods("GET")
	router.HandleFunc("/webhook/mentions", ingestionService.Handler()).Methods("POST")
	router.HandleFunc("/api/rankings", rankingsHandler(aggregator)).Methods("GET")
	router.HandleFunc("/api/mentions/stats", statsHandler(aggregator)).Methods("GET")
	router.HandleFunc("/trigger/sweep", triggerSweepHandler(tracker)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	cancel()
	bus.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// dispatchEvents forwards domain events to the notification layer. Delivery
// is best-effort; failures are logged and never feed back to the pipeline.
func dispatchEvents(bus *events.Bus, notifier notifications.NotificationInterface) {
	for event := range bus.Events() {
		if err := notifier.SendEvent(event); err != nil {
			logrus.Errorf("Failed to deliver %s event: %v", event.Type, err)
		}
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(tracker *tracking.Tracker, ingestionService *ingestion.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"tracking":%s,"ingestion":%s}`, tracker.GetMetrics(), ingestionService.GetMetrics())
	}
}

func rankingsHandler(aggregator *ranking.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := r.URL.Query().Get("organization_id")
		if orgID == "" {
			http.Error(w, `{"error":"organization_id is required"}`, http.StatusBadRequest)
			return
		}

		window, err := parseWindow(r)
		if err != nil {
			http.Error(w, `{"error":"invalid time window"}`, http.StatusBadRequest)
			return
		}

		snapshot, err := aggregator.Rank(r.Context(), orgID, window)
		if err != nil {
			logrus.Errorf("Ranking query failed: %v", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		writeJSON(w, snapshot)
	}
}

func statsHandler(aggregator *ranking.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := r.URL.Query().Get("organization_id")
		if orgID == "" {
			http.Error(w, `{"error":"organization_id is required"}`, http.StatusBadRequest)
			return
		}

		window, err := parseWindow(r)
		if err != nil {
			http.Error(w, `{"error":"invalid time window"}`, http.StatusBadRequest)
			return
		}

		filters := ranking.StatsFilters{
			State: models.MentionState(r.URL.Query().Get("state")),
		}
		if window != nil {
			filters.From = window.From
			filters.To = window.To
		}

		stats, err := aggregator.MentionStats(r.Context(), orgID, filters)
		if err != nil {
			logrus.Errorf("Stats query failed: %v", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		writeJSON(w, stats)
	}
}

func triggerSweepHandler(tracker *tracking.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if err := tracker.RunSweep(ctx); err != nil {
				logrus.Errorf("Manual sweep trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Sweep triggered successfully"}`))
	}
}

func parseWindow(r *http.Request) (*ranking.Window, error) {
	fromParam := r.URL.Query().Get("from")
	toParam := r.URL.Query().Get("to")
	if fromParam == "" && toParam == "" {
		return nil, nil
	}

	window := &ranking.Window{}
	if fromParam != "" {
		from, err := time.Parse(time.RFC3339, fromParam)
		if err != nil {
			return nil, err
		}
		window.From = &from
	}
	if toParam != "" {
		to, err := time.Parse(time.RFC3339, toParam)
		if err != nil {
			return nil, err
		}
		window.To = &to
	}
	return window, nil
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}
