package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/health"
	"auv-monitor/ingestion/internal/metrics"
)

// BulkInserter is the storage collaborator contract. It must accept
// at least BatchSize records in one call.
type BulkInserter interface {
	BatchInsert(ctx context.Context, recs []*domain.TelemetryRecord) error
}

// BatchWriterConfig tunes the writer. Zero values get sane defaults.
type BatchWriterConfig struct {
	QueueSize   int
	BatchSize   int
	MaxWait     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
}

func (c *BatchWriterConfig) defaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 100 * time.Millisecond
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 250 * time.Millisecond
	}
}

// drainTimeout bounds the final flush during shutdown.
const drainTimeout = 5 * time.Second

// BatchWriter accumulates admitted records and flushes them to the
// storage collaborator when the batch fills or the oldest buffered
// record has waited MaxWait, whichever comes first. Single consumer:
// one goroutine owns the writes to storage.
type BatchWriter struct {
	ch     chan *domain.TelemetryRecord
	sink   BulkInserter
	cfg    BatchWriterConfig
	health *health.State
	log    *zap.Logger
}

func NewBatchWriter(sink BulkInserter, cfg BatchWriterConfig, hs *health.State, log *zap.Logger) *BatchWriter {
	cfg.defaults()
	return &BatchWriter{
		ch:     make(chan *domain.TelemetryRecord, cfg.QueueSize),
		sink:   sink,
		cfg:    cfg,
		health: hs,
		log:    log,
	}
}

// Submit enqueues a record without blocking. It fails with
// ErrOverloaded when the internal queue is saturated; the caller
// surfaces that as an admission rejection.
func (w *BatchWriter) Submit(rec *domain.TelemetryRecord) error {
	select {
	case w.ch <- rec:
		return nil
	default:
		return domain.ErrOverloaded
	}
}

// Run consumes the queue until ctx ends, then flushes what remains.
func (w *BatchWriter) Run(ctx context.Context) error {
	batch := make([]*domain.TelemetryRecord, 0, w.cfg.BatchSize)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	// The flush timer runs from the oldest buffered record and is
	// reset on every flush, not on every arrival.
	arm := func() {
		timer = time.NewTimer(w.cfg.MaxWait)
		timerC = timer.C
	}
	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	flush := func() {
		disarm()
		if len(batch) == 0 {
			return
		}
		w.flush(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-w.ch:
			if len(batch) == 0 {
				arm()
			}
			batch = append(batch, rec)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}

		case <-timerC:
			timer, timerC = nil, nil
			flush()

		case <-ctx.Done():
			// Drain whatever made it into the queue before shutdown.
			// The final flush runs under its own bounded context: the
			// run context is already cancelled and a context-aware
			// sink would reject every attempt instantly.
			for {
				select {
				case rec := <-w.ch:
					batch = append(batch, rec)
				default:
					disarm()
					if len(batch) > 0 {
						drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
						w.flush(drainCtx, batch)
						cancel()
					}
					return ctx.Err()
				}
			}
		}
	}
}

// flush writes one batch, retrying with bounded exponential backoff.
// After the retry budget the batch is dropped and the loss is logged,
// never silently swallowed.
func (w *BatchWriter) flush(ctx context.Context, batch []*domain.TelemetryRecord) {
	backoff := w.cfg.BaseBackoff
	var err error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			backoff *= 2
		}
		err = w.sink.BatchInsert(ctx, batch)
		if err == nil {
			metrics.BatchFlushes.Inc()
			w.health.SetStorageDegraded(false)
			return
		}
		metrics.BatchFlushFailures.Inc()
		w.log.Warn("batch flush failed",
			zap.Int("attempt", attempt+1),
			zap.Int("batch", len(batch)),
			zap.Error(err))
	}

	metrics.RecordsDropped.Add(float64(len(batch)))
	w.health.SetStorageDegraded(true)
	w.log.Error("dropping batch after retry budget exhausted, data lost",
		zap.Int("records", len(batch)),
		zap.Error(err))
}
