package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openpress/pulse/pkg/analytics"
	"github.com/openpress/pulse/pkg/citations"
	"github.com/openpress/pulse/pkg/config"
	"github.com/openpress/pulse/pkg/httputil"
	"github.com/openpress/pulse/pkg/observability"
	"github.com/openpress/pulse/pkg/realtime"
	"github.com/openpress/pulse/pkg/store"
	"github.com/openpress/pulse/pkg/upstream"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	st, err := store.New(cfg.Redis, logger)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	matomo := upstream.NewMatomoClient(cfg.Matomo.BaseURL, cfg.Matomo.AuthToken, cfg.Matomo.SiteID, logger)
	refs := make([]upstream.JournalRef, 0, len(cfg.Journals))
	for _, j := range cfg.Journals {
		refs = append(refs, upstream.JournalRef{Path: j.Path, ID: j.ID})
	}
	ojs := upstream.NewOJSClient(cfg.OJS.BaseURL, cfg.OJS.APIKey, refs, logger)
	serper := upstream.NewCitationsClient(cfg.Citations.APIKey, logger)

	hub := realtime.NewHub(logger, metrics)
	service := analytics.NewService(st, matomo, ojs, hub, logger, metrics)
	streams := realtime.NewStreamServer(hub, service, logger, metrics)

	citationSvc := citations.NewService(serper, st, logger)
	tracker := citations.NewTracker(citationSvc, ojs, st, nil)

	health := observability.NewHealthChecker(st.Client())
	health.AddService("matomo", matomo.IsConfigured)
	health.AddService("ojs", ojs.IsConfigured)
	health.AddService("citations", serper.IsConfigured)

	handlers := analytics.NewHandlers(service, matomo, ojs, citationSvc, tracker, st, streams, http.HandlerFunc(health.Handler), logger)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	}

	middleware := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
	}
	if metrics != nil {
		middleware = append(middleware, observability.HTTPMetricsMiddleware(metrics))
	}

	server := &http.Server{
		Addr:        cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:     httputil.Chain(middleware...)(router),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// WriteTimeout stays zero; SSE and websocket connections outlive
		// any fixed deadline.
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("pulse analytics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown did not finish cleanly")
	}
}
