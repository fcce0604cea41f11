package pipeline

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/metrics"
)

// Coordinator wires the per-record path: validate, admit to the batch
// writer, then hand off to the evaluation lanes. The admission
// decision is synchronous; batch queuing and rule evaluation proceed
// independently once admitted.
type Coordinator struct {
	writer *BatchWriter
	lanes  *Lanes
	log    *zap.Logger

	now func() time.Time
}

func NewCoordinator(writer *BatchWriter, lanes *Lanes, log *zap.Logger) *Coordinator {
	return &Coordinator{
		writer: writer,
		lanes:  lanes,
		log:    log,
		now:    time.Now,
	}
}

// Ingest admits one raw telemetry payload. It returns the normalized
// record on acceptance, a *domain.ValidationError for malformed
// input, or domain.ErrOverloaded when the batch queue is saturated.
// Once admitted there is no cancellation; a slow rule evaluation
// never delays this acknowledgement.
func (c *Coordinator) Ingest(raw []byte) (*domain.TelemetryRecord, error) {
	rec, err := domain.ParseRecord(raw)
	if err != nil {
		metrics.RecordsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}
	rec.ReceivedAt = c.now().UTC()

	if err := c.writer.Submit(rec); err != nil {
		if errors.Is(err, domain.ErrOverloaded) {
			metrics.RecordsRejected.WithLabelValues("overloaded").Inc()
		}
		return nil, err
	}

	c.lanes.Submit(rec)
	metrics.RecordsAccepted.Inc()
	return rec, nil
}
