// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package ops serves the operational HTTP endpoints: liveness and
// readiness probes plus the Prometheus metrics exposition. The
// recommender itself is consumed as a library; this listener exists so
// deployments can monitor the daemon without a consumer-facing API.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tmarkell/vicinus/internal/config"
)

// Pinger reports connectivity of the interaction store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessSource reports whether the recommendation service holds a
// dataset snapshot and can serve traffic.
type ReadinessSource interface {
	DatasetLoaded() bool
}

// Handler serves the operational endpoints.
type Handler struct {
	store     Pinger
	service   ReadinessSource
	startTime time.Time
	logger    zerolog.Logger
}

// NewHandler creates the ops handler. Either dependency may be nil, in
// which case readiness reports it as unavailable.
//
//nolint:gocritic // hugeParam: loggers are passed by value
func NewHandler(store Pinger, service ReadinessSource, logger zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		service:   service,
		startTime: time.Now(),
		logger:    logger.With().Str("component", "ops").Logger(),
	}
}

// Router assembles the operational endpoints on a chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// NewServer builds the ops HTTP server. The configured timeout bounds
// both request reads and response writes.
func NewServer(cfg config.OpsConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		IdleTimeout:  60 * time.Second,
	}
}
