// Package api exposes the operational HTTP surface: metrics and health.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health describes the monitor instance for the /healthz endpoint.
type Health struct {
	Status  string `json:"status"`
	Subject string `json:"subject"`
	Mode    string `json:"mode"`
}

// NewServer builds the ops server. It serves Prometheus metrics from the
// default registry and a static health document.
func NewServer(addr string, health Health) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(health)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
