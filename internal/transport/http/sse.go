package http

import (
	"fmt"
	"net/http"
	"time"

	"auv-monitor/ingestion/internal/metrics"
	"auv-monitor/ingestion/internal/stream"
)

const keepaliveInterval = 30 * time.Second

// HandleAlertStream serves GET /stream/alerts?auv_id= as Server-Sent
// Events. Without auv_id the feed covers every vehicle.
func (h *Handler) HandleAlertStream(w http.ResponseWriter, r *http.Request) {
	h.serveSSE(w, r, stream.KindAlerts, "alert")
}

// HandleTelemetryStream serves GET /stream/telemetry?auv_id=.
func (h *Handler) HandleTelemetryStream(w http.ResponseWriter, r *http.Request) {
	h.serveSSE(w, r, stream.KindTelemetry, "telemetry")
}

func (h *Handler) serveSSE(w http.ResponseWriter, r *http.Request, kind stream.Kind, event string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.hub.Subscribe(kind, r.URL.Query().Get("auv_id"))
	defer sub.Close()
	gauge := metrics.StreamSubscribers.WithLabelValues(string(kind))
	gauge.Inc()
	defer gauge.Dec()

	fmt.Fprintf(w, "event: connect\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				// Hub disconnected us for falling behind; the client
				// must re-subscribe to resume.
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: keepalive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
