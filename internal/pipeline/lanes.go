package pipeline

import (
	"context"
	"encoding/json"
	"hash/fnv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/metrics"
	"auv-monitor/ingestion/internal/stream"
)

// Evaluator runs the rule set against one record.
type Evaluator interface {
	Evaluate(ctx context.Context, rec *domain.TelemetryRecord) []domain.AlertEvent
}

// AlertStore persists fired alerts.
type AlertStore interface {
	InsertAlert(ctx context.Context, ev *domain.AlertEvent) error
}

// StatePublisher mirrors records and alerts into the shared cache and
// pub/sub layer for other instances. Optional.
type StatePublisher interface {
	UpdateState(ctx context.Context, rec *domain.TelemetryRecord) error
	PublishAlert(ctx context.Context, auvID string, payload []byte) error
}

// Lanes pins every vehicle to one evaluation lane so dwell accounting
// sees that vehicle's records strictly in arrival order. Lanes are
// independent: cross-vehicle evaluation runs fully in parallel.
type Lanes struct {
	lanes  []chan *domain.TelemetryRecord
	engine Evaluator
	alerts AlertStore
	hub    *stream.Hub
	state  StatePublisher // may be nil
	log    *zap.Logger
}

func NewLanes(count, depth int, engine Evaluator, alerts AlertStore, hub *stream.Hub, state StatePublisher, log *zap.Logger) *Lanes {
	if count <= 0 {
		count = 4
	}
	if depth <= 0 {
		depth = 1024
	}
	lanes := make([]chan *domain.TelemetryRecord, count)
	for i := range lanes {
		lanes[i] = make(chan *domain.TelemetryRecord, depth)
	}
	return &Lanes{
		lanes:  lanes,
		engine: engine,
		alerts: alerts,
		hub:    hub,
		state:  state,
		log:    log,
	}
}

// Submit hands a record to its vehicle's lane. A full lane drops the
// record for evaluation purposes only; the record was already queued
// for storage and the admission ack already given.
func (l *Lanes) Submit(rec *domain.TelemetryRecord) {
	h := fnv.New32a()
	h.Write([]byte(rec.AUVID))
	lane := l.lanes[h.Sum32()%uint32(len(l.lanes))]
	select {
	case lane <- rec:
	default:
		metrics.LaneDrops.Inc()
		l.log.Warn("evaluation lane full, dropping record",
			zap.String("auv_id", rec.AUVID))
	}
}

// Run starts one worker per lane and blocks until ctx ends.
func (l *Lanes) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, lane := range l.lanes {
		lane := lane
		g.Go(func() error {
			for {
				select {
				case rec := <-lane:
					l.process(ctx, rec)
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}
	return g.Wait()
}

func (l *Lanes) process(ctx context.Context, rec *domain.TelemetryRecord) {
	events := l.engine.Evaluate(ctx, rec)

	for i := range events {
		ev := &events[i]
		metrics.AlertsFired.WithLabelValues(string(ev.Severity)).Inc()

		if err := l.alerts.InsertAlert(ctx, ev); err != nil {
			l.log.Error("alert insert failed",
				zap.String("rule_id", ev.RuleID),
				zap.String("auv_id", ev.AUVID),
				zap.Error(err))
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			l.log.Error("alert marshal failed", zap.Error(err))
			continue
		}
		l.hub.Publish(stream.KindAlerts, ev.AUVID, payload)
		if l.state != nil {
			if err := l.state.PublishAlert(ctx, ev.AUVID, payload); err != nil {
				l.log.Warn("alert publish failed", zap.Error(err))
			}
		}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		l.log.Error("telemetry marshal failed", zap.Error(err))
		return
	}
	l.hub.Publish(stream.KindTelemetry, rec.AUVID, payload)
	if l.state != nil {
		if err := l.state.UpdateState(ctx, rec); err != nil {
			l.log.Warn("state update failed",
				zap.String("auv_id", rec.AUVID),
				zap.Error(err))
		}
	}
}
