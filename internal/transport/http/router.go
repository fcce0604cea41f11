package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the ingestion surface. Only the ingest endpoint
// sits behind API-key auth; streams carry no write access and health
// and metrics must stay reachable for probes.
func NewRouter(h *Handler, authMW *AuthMiddleware) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/telemetry/ingest", authMW.Wrap(http.HandlerFunc(h.HandleIngest)))
	mux.HandleFunc("/stream/alerts", h.HandleAlertStream)
	mux.HandleFunc("/stream/telemetry", h.HandleTelemetryStream)
	mux.HandleFunc("/ws", h.HandleWS)
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
