package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/messaging"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/outbox"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/config"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/logger"
)

func main() {
	zl, err := logger.Init(logger.ConfigFromEnv())
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar().With("component", "outbox-relay")

	log.Infow("starting outbox relay service")
	cfg := config.LoadRelayConfig()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("failed to open database", "error", err)
	}
	defer db.Close()
	log.Infow("database connection initialized - circuit breaker will validate on first operation")

	// A relay without a broker keeps running: events stay unprocessed and readiness reports DOWN.
	var publisher ports.ReportEventPublisher
	broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.ReportEventsQueue, log)
	if err != nil {
		log.Warnw("failed to connect to RabbitMQ", "error", err)
	} else {
		defer broker.Close()
		publisher = broker
		log.Infow("connected to RabbitMQ", "queue", cfg.ReportEventsQueue)
	}

	relayWorker := outbox.NewRelay(db, cfg.DatabaseURL, publisher, log)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("GET /health", probe(relayWorker.IsHealthy))
	healthMux.HandleFunc("GET /health/live", probe(relayWorker.IsHealthy))
	healthMux.HandleFunc("GET /health/ready", probe(relayWorker.IsReady))

	healthServer := &http.Server{
		Addr:              ":" + cfg.HealthPort,
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infow("starting health check server", "port", cfg.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("health server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Channel to capture fatal errors from relay worker
	errChan := make(chan error, 1)

	go func() {
		log.Infow("starting event processing worker")
		if err := relayWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Infow("received signal, initiating shutdown")
	case err := <-errChan:
		log.Errorw("fatal error, shutting down", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down health server", "error", err)
	}

	log.Infow("shutdown complete")
}

func probe(ok func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, httpStatus := "UP", http.StatusOK
		if !ok() {
			status, httpStatus = "DOWN", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    status,
			"component": "outbox-relay",
		})
	}
}
