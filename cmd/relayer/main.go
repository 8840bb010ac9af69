package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/pkg/chain"
	"github.com/fundlink/crowdfund-middleware/pkg/config"
	"github.com/fundlink/crowdfund-middleware/pkg/db"
	"github.com/fundlink/crowdfund-middleware/pkg/indexer"
	"github.com/fundlink/crowdfund-middleware/pkg/keys"
	"github.com/fundlink/crowdfund-middleware/pkg/pgutil"
	"github.com/fundlink/crowdfund-middleware/pkg/relay"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Crowdfund Multi-Chain Relayer")

	// Initialize database
	bunDB, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	store := db.NewStore(bunDB)
	defer store.Close()
	logger.Info("Database connection established")

	masterKey, err := keys.ParseMasterKey(cfg.Relay.MasterKey)
	if err != nil {
		logger.Fatal("Invalid relay master key", zap.Error(err))
	}

	// Build chain clients. A chain whose RPC endpoint cannot be dialed is
	// skipped for the process lifetime; losing the main chain is fatal.
	retry := chain.RetryPolicy{
		MaxAttempts: cfg.Indexer.RPCMaxAttempts,
		Interval:    cfg.Indexer.RPCRetryInterval,
	}
	registry := chain.NewRegistry()
	defer registry.Close()
	for _, chainCfg := range cfg.Chains {
		client, err := chain.NewClient(chainCfg, retry, logger)
		if err != nil {
			logger.Warn("Failed to initialize chain client, skipping chain",
				zap.String("chain", chainCfg.Name),
				zap.Error(err))
			continue
		}
		if err := registry.Register(client); err != nil {
			logger.Fatal("Failed to register chain client",
				zap.String("chain", chainCfg.Name),
				zap.Error(err))
		}
	}
	if registry.Main() == nil {
		logger.Fatal("Main chain client unavailable, cannot start")
	}

	adapters := make([]indexer.ChainAdapter, 0, len(registry.All()))
	relayClients := make(map[string]relay.ChainClient, len(registry.All()))
	for _, client := range registry.All() {
		adapters = append(adapters, client)
		relayClients[client.Name()] = client
	}

	ctx := context.Background()

	ix := indexer.New(cfg.Indexer, adapters, store, logger)
	ix.Start(ctx)
	defer ix.Stop()

	rel := relay.New(cfg.Relay, relayClients, store, masterKey, logger)
	if err := rel.Start(ctx); err != nil {
		logger.Fatal("Failed to start relay", zap.Error(err))
	}
	defer rel.Stop()

	// Setup HTTP server for API and metrics
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (liveness)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness endpoint - 503 until every registered chain has indexed
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !allChainsIndexed(r.Context(), store, registry) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	// Metrics endpoint
	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.Int("port", cfg.Monitoring.MetricsPort))
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sync-status", handleGetSyncStatus(ix, logger))
		r.Get("/campaigns", handleGetCampaigns(store, logger))
		r.Get("/campaigns/{id}/donations", handleGetDonations(store, logger))
		r.Get("/audits/{actor}", handleGetAudits(store, logger))
	})

	// Start HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, gracefully shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Relayer stopped")
}

func allChainsIndexed(ctx context.Context, store *db.Store, registry *chain.Registry) bool {
	progress, err := store.AllProgress(ctx)
	if err != nil {
		return false
	}
	indexed := make(map[string]bool, len(progress))
	for _, row := range progress {
		indexed[row.Chain] = true
	}
	for _, client := range registry.All() {
		if !indexed[client.Name()] {
			return false
		}
	}
	return true
}

func handleGetSyncStatus(ix *indexer.Indexer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := ix.SyncStatus(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"chains": statuses}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleGetCampaigns(store *db.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaigns, err := store.ListCampaigns(r.Context(), 100) // Default limit
		if err != nil {
			logger.Error("Failed to list campaigns", zap.Error(err))
			http.Error(w, "Failed to list campaigns", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"campaigns": campaigns}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleGetDonations(store *db.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid campaign id", http.StatusBadRequest)
			return
		}
		donations, err := store.ListDonations(r.Context(), campaignID, 100)
		if err != nil {
			logger.Error("Failed to list donations", zap.Error(err), zap.Int64("campaign_id", campaignID))
			http.Error(w, "Failed to list donations", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"donations": donations}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleGetAudits(store *db.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := chi.URLParam(r, "actor")
		audits, err := store.ListAudits(r.Context(), actor, 100)
		if err != nil {
			logger.Error("Failed to list audits", zap.Error(err), zap.String("actor", actor))
			http.Error(w, "Failed to list audits", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"audits": audits}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}
