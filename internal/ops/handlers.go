// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package ops

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// healthResponse is the liveness probe payload.
type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// readyResponse is the readiness probe payload.
type readyResponse struct {
	Status         string  `json:"status"`
	StoreConnected bool    `json:"store_connected"`
	DatasetLoaded  bool    `json:"dataset_loaded"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Healthz handles liveness probes. It returns 200 whenever the process
// is up, regardless of dependency state.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, healthResponse{
		Status:        "alive",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}

// Readyz handles readiness probes. The daemon is ready once the
// interaction store answers pings and a dataset snapshot is loaded.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	storeConnected := h.store != nil && h.store.Ping(r.Context()) == nil
	datasetLoaded := h.service != nil && h.service.DatasetLoaded()

	status := "ready"
	code := http.StatusOK
	if !storeConnected || !datasetLoaded {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	h.respondJSON(w, code, readyResponse{
		Status:         status,
		StoreConnected: storeConnected,
		DatasetLoaded:  datasetLoaded,
		UptimeSeconds:  time.Since(h.startTime).Seconds(),
	})
}

// respondJSON writes v as a JSON body with the given status.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal ops response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Error().Err(err).Msg("write ops response")
	}
}
