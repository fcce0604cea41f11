package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/health"
)

type fakeSink struct {
	mu       sync.Mutex
	batches  [][]*domain.TelemetryRecord
	failures int // fail this many calls before succeeding
	flushed  chan int
}

func newFakeSink() *fakeSink {
	return &fakeSink{flushed: make(chan int, 16)}
}

func (f *fakeSink) BatchInsert(ctx context.Context, recs []*domain.TelemetryRecord) error {
	// Behave like a real driver: a dead context fails the call.
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("storage down")
	}
	batch := make([]*domain.TelemetryRecord, len(recs))
	copy(batch, recs)
	f.batches = append(f.batches, batch)
	f.flushed <- len(recs)
	return nil
}

func (f *fakeSink) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func testRecord(id string) *domain.TelemetryRecord {
	return &domain.TelemetryRecord{
		Timestamp: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		AUVID:     id,
		Position:  domain.Position{Lat: 10.5, Lng: -139.5},
	}
}

func TestBatchWriterFlushesWhenFull(t *testing.T) {
	sink := newFakeSink()
	hs := health.NewState()
	w := NewBatchWriter(sink, BatchWriterConfig{
		BatchSize: 3,
		MaxWait:   10 * time.Second, // timer must not be what triggers this flush
	}, hs, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Submit(testRecord("AUV-01")))
	}

	select {
	case n := <-sink.flushed:
		assert.Equal(t, 3, n)
	case <-time.After(time.Second):
		t.Fatal("full batch was not flushed")
	}
}

func TestBatchWriterFlushesPartialBatchAfterMaxWait(t *testing.T) {
	sink := newFakeSink()
	hs := health.NewState()
	w := NewBatchWriter(sink, BatchWriterConfig{
		BatchSize: 100,
		MaxWait:   50 * time.Millisecond,
	}, hs, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, w.Submit(testRecord("AUV-01")))
	require.NoError(t, w.Submit(testRecord("AUV-02")))

	select {
	case n := <-sink.flushed:
		assert.Equal(t, 2, n, "partial batch flushes once the oldest record has waited long enough")
	case <-time.After(time.Second):
		t.Fatal("partial batch was not flushed after MaxWait")
	}
}

func TestBatchWriterSubmitOverload(t *testing.T) {
	// Not running: the queue only fills.
	w := NewBatchWriter(newFakeSink(), BatchWriterConfig{QueueSize: 2}, health.NewState(), zaptest.NewLogger(t))

	require.NoError(t, w.Submit(testRecord("AUV-01")))
	require.NoError(t, w.Submit(testRecord("AUV-02")))

	err := w.Submit(testRecord("AUV-03"))
	assert.ErrorIs(t, err, domain.ErrOverloaded)
}

func TestBatchWriterRetriesThenSucceeds(t *testing.T) {
	sink := newFakeSink()
	sink.failures = 2
	hs := health.NewState()
	w := NewBatchWriter(sink, BatchWriterConfig{
		BatchSize:   1,
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
	}, hs, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, w.Submit(testRecord("AUV-01")))

	select {
	case <-sink.flushed:
	case <-time.After(time.Second):
		t.Fatal("batch never succeeded despite retry budget")
	}
	assert.False(t, hs.Degraded())
}

func TestBatchWriterDropsBatchAfterRetryBudget(t *testing.T) {
	sink := newFakeSink()
	sink.failures = 100 // never recovers within the budget
	hs := health.NewState()
	w := NewBatchWriter(sink, BatchWriterConfig{
		BatchSize:   1,
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
	}, hs, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, w.Submit(testRecord("AUV-01")))

	// The drop surfaces through the degraded-health signal.
	require.Eventually(t, hs.Degraded, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sink.batchCount())

	// A later successful flush clears the signal.
	sink.mu.Lock()
	sink.failures = 0
	sink.mu.Unlock()
	require.NoError(t, w.Submit(testRecord("AUV-02")))

	select {
	case <-sink.flushed:
	case <-time.After(time.Second):
		t.Fatal("writer did not recover after storage came back")
	}
	assert.False(t, hs.Degraded())
}

func TestBatchWriterDrainsOnShutdown(t *testing.T) {
	sink := newFakeSink()
	w := NewBatchWriter(sink, BatchWriterConfig{
		BatchSize: 100,
		MaxWait:   10 * time.Second,
	}, health.NewState(), zaptest.NewLogger(t))

	require.NoError(t, w.Submit(testRecord("AUV-01")))
	require.NoError(t, w.Submit(testRecord("AUV-02")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	select {
	case n := <-sink.flushed:
		assert.Equal(t, 2, n, "queued records are flushed before exit")
	default:
		t.Fatal("shutdown lost queued records")
	}
}

func TestBatchWriterDrainSurvivesCancelledRunContext(t *testing.T) {
	// The sink rejects calls carrying a cancelled context, so the
	// final flush must not reuse the run context.
	sink := newFakeSink()
	w := NewBatchWriter(sink, BatchWriterConfig{
		BatchSize: 100,
		MaxWait:   10 * time.Second,
	}, health.NewState(), zaptest.NewLogger(t))

	// Records buffered mid-flight when shutdown lands.
	require.NoError(t, w.Submit(testRecord("AUV-01")))
	require.NoError(t, w.Submit(testRecord("AUV-02")))
	require.NoError(t, w.Submit(testRecord("AUV-03")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	select {
	case n := <-sink.flushed:
		assert.Equal(t, 3, n, "the tail batch reaches storage despite the cancelled run context")
	default:
		t.Fatal("tail batch was lost at shutdown")
	}
}
