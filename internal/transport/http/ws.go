package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"auv-monitor/ingestion/internal/metrics"
	"auv-monitor/ingestion/internal/stream"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS serves GET /ws?kind=alerts|telemetry&auv_id= over a
// WebSocket. The connection is fed from the same hub subscription as
// the SSE endpoints and is closed when the hub drops a slow consumer.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	kind := stream.Kind(r.URL.Query().Get("kind"))
	switch kind {
	case stream.KindAlerts, stream.KindTelemetry:
	case "":
		kind = stream.KindTelemetry
	default:
		http.Error(w, "unknown stream kind", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := h.hub.Subscribe(kind, r.URL.Query().Get("auv_id"))
	gauge := metrics.StreamSubscribers.WithLabelValues(string(kind))
	gauge.Inc()
	defer gauge.Dec()

	go h.readPump(conn, sub)
	h.writePump(conn, sub)
}

// readPump discards client frames; it exists to notice the close.
func (h *Handler) readPump(conn *websocket.Conn, sub *stream.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *stream.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
