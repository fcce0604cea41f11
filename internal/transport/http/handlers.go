package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/health"
	"auv-monitor/ingestion/internal/pipeline"
	"auv-monitor/ingestion/internal/stream"
)

const maxIngestBody = 64 << 10

// Pinger reports liveness of an external collaborator.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler carries the pipeline entry points exposed over HTTP.
type Handler struct {
	coord  *pipeline.Coordinator
	hub    *stream.Hub
	health *health.State
	db     Pinger
	redis  Pinger // may be nil
	log    *zap.Logger
}

func NewHandler(coord *pipeline.Coordinator, hub *stream.Hub, hs *health.State, db, redis Pinger, log *zap.Logger) *Handler {
	return &Handler{coord: coord, hub: hub, health: hs, db: db, redis: redis, log: log}
}

type ingestResponse struct {
	Accepted   bool      `json:"accepted"`
	Reason     string    `json:"reason,omitempty"`
	Fields     []string  `json:"fields,omitempty"`
	AUVID      string    `json:"auv_id,omitempty"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// HandleIngest accepts one telemetry payload per call. The response
// is the admission decision only; storage and rule evaluation run
// asynchronously.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ingestResponse{Accepted: false, Reason: "unreadable_body"})
		return
	}

	rec, err := h.coord.Ingest(body)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, ingestResponse{
				Accepted: false,
				Reason:   "validation_failed",
				Fields:   verr.Fields,
			})
		case errors.Is(err, domain.ErrOverloaded):
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, ingestResponse{
				Accepted: false,
				Reason:   "overloaded",
			})
		default:
			h.log.Error("ingest failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ingestResponse{Accepted: false, Reason: "internal"})
		}
		return
	}

	writeJSON(w, http.StatusAccepted, ingestResponse{
		Accepted:   true,
		AUVID:      rec.AUVID,
		ReceivedAt: rec.ReceivedAt,
	})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Redis     string    `json:"redis,omitempty"`
	Degraded  bool      `json:"degraded"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleHealthz reports collaborator liveness plus the pipeline-level
// degraded signal.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "healthy",
		Database:  "up",
		Degraded:  h.health.Degraded(),
		Timestamp: time.Now().UTC(),
	}
	code := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "down"
		code = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		resp.Redis = "up"
		if err := h.redis.Ping(ctx); err != nil {
			resp.Redis = "down"
		}
	}
	if resp.Degraded && resp.Status == "healthy" {
		resp.Status = "degraded"
	}

	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
