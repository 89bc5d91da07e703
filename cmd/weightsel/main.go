package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Nash0810/weightsel/internal/balancer"
	"github.com/Nash0810/weightsel/internal/config"
	"github.com/Nash0810/weightsel/internal/logging"
	"github.com/Nash0810/weightsel/internal/metrics"
	"github.com/Nash0810/weightsel/internal/proxy"
	"github.com/Nash0810/weightsel/internal/retry"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Create logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("starting_weightsel", "config", *configPath)

	// Create metrics collector
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// Build the first route table
	router := proxy.NewRouter(collector, logger)
	if err := applyConfig(router, cfg, logger); err != nil {
		logger.Error("failed_to_build_selector", "error", err.Error())
		log.Fatal(err)
	}

	// Create retry policy
	var retryPolicy *retry.Policy
	if cfg.Retry.Enabled {
		retryPolicy = retry.NewPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BudgetPercent, logger)
		logger.Info("retry_enabled",
			"max_attempts", cfg.Retry.MaxAttempts,
			"budget_percent", cfg.Retry.BudgetPercent)
	}

	logger.Info("request_timeout_configured",
		"timeout_seconds", cfg.RequestTimeout)

	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Second
	var handler http.Handler = proxy.NewProxy(router, retryPolicy, requestTimeout, collector, logger)

	if cfg.RateLimit.Enabled {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
		handler = proxy.RateLimit(handler, limiter, collector, logger)
		logger.Info("rate_limit_enabled",
			"requests_per_second", cfg.RateLimit.RequestsPerSecond,
			"burst", cfg.RateLimit.Burst)
	}
	handler = metrics.NewMiddleware(collector, handler)

	// Create context for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start metrics exporter
	var budget *retry.Budget
	if retryPolicy != nil {
		budget = retryPolicy.GetBudget()
	}
	exporter := metrics.NewExporter(collector, router, budget)
	go exporter.Start(ctx)

	// Start config watcher for hot reload
	configWatcher, err := config.NewWatcher(*configPath, logger, func(newCfg *config.Config) error {
		logger.Info("applying_config_reload")
		if err := applyConfig(router, newCfg, logger); err != nil {
			return err
		}
		exporter.Export()
		return nil
	})
	if err != nil {
		logger.Error("failed_to_create_config_watcher", "error", err.Error())
	} else {
		go configWatcher.Start(ctx)
	}

	// Create HTTP server
	mux := http.NewServeMux()

	// Main proxy handler
	mux.Handle("/", handler)

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health endpoint for the dispatcher itself
	mux.HandleFunc("/lb-health", func(w http.ResponseWriter, r *http.Request) {
		sel := router.Selector()
		if sel == nil {
			http.Error(w, "No selector", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":            "ok",
			"backends":          sel.Len(),
			"projection_length": sel.ProjectionLen(),
			"strategy":          sel.Strategy(),
			"layout":            sel.Layout().String(),
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in background
	go func() {
		logger.Info("server_starting",
			"addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", "error", err.Error())
			log.Fatal(err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("shutdown_signal_received")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", "error", err.Error())
	}

	// Cancel background contexts
	cancel()

	logger.Info("shutdown_complete")
}

// newLogger builds the logger described by the logging section
func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var logger *logging.Logger
	if cfg.File != "" {
		logger = logging.NewFileLogger("weightsel", logging.FileOptions{
			Path:       cfg.File,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	} else {
		logger = logging.NewLogger("weightsel")
	}
	logger.SetLevel(level)
	return logger, nil
}

// applyConfig rebuilds the router from cfg; the old route table stays on error
func applyConfig(router *proxy.Router, cfg *config.Config, logger *logging.Logger) error {
	parsed, excluded, err := cfg.ParseBackends()
	if err != nil {
		return err
	}
	for _, u := range excluded {
		logger.Warn("backend_excluded", "url", u, "reason", "weight_zero")
	}
	for _, pb := range parsed {
		logger.Info("backend_configured",
			"url", pb.URL.String(),
			"weight", pb.Weight)
	}

	layout, err := balancer.ParseLayout(cfg.Layout)
	if err != nil {
		return err
	}

	return router.Rebuild(config.SelectorBackends(parsed), cfg.Strategy, layout)
}
