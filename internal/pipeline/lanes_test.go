package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/stream"
)

type fakeEvaluator struct {
	mu     sync.Mutex
	events []domain.AlertEvent
	seen   []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, rec *domain.TelemetryRecord) []domain.AlertEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, rec.AUVID)
	return f.events
}

type fakeAlertStore struct {
	mu       sync.Mutex
	inserted []domain.AlertEvent
}

func (f *fakeAlertStore) InsertAlert(_ context.Context, ev *domain.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, *ev)
	return nil
}

func TestLanesEvaluateAndFanOut(t *testing.T) {
	log := zaptest.NewLogger(t)
	eval := &fakeEvaluator{events: []domain.AlertEvent{{
		ID:       "ev-1",
		AUVID:    "AUV-01",
		RuleID:   "RULE-SEDIMENT-01",
		Severity: domain.SeverityHigh,
		Title:    "env.sediment_mg_l threshold exceeded",
	}}}
	alerts := &fakeAlertStore{}
	hub := stream.NewHub(16, log)

	lanes := NewLanes(2, 16, eval, alerts, hub, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lanes.Run(ctx)

	alertSub := hub.Subscribe(stream.KindAlerts, "AUV-01")
	telemetrySub := hub.Subscribe(stream.KindTelemetry, stream.TopicAll)
	defer alertSub.Close()
	defer telemetrySub.Close()

	lanes.Submit(testRecord("AUV-01"))

	select {
	case payload := <-alertSub.C():
		var ev domain.AlertEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		assert.Equal(t, "ev-1", ev.ID)
		assert.Equal(t, "RULE-SEDIMENT-01", ev.RuleID)
	case <-time.After(time.Second):
		t.Fatal("alert never reached the stream hub")
	}

	select {
	case payload := <-telemetrySub.C():
		var rec domain.TelemetryRecord
		require.NoError(t, json.Unmarshal(payload, &rec))
		assert.Equal(t, "AUV-01", rec.AUVID)
	case <-time.After(time.Second):
		t.Fatal("telemetry never reached the stream hub")
	}

	alerts.mu.Lock()
	defer alerts.mu.Unlock()
	require.Len(t, alerts.inserted, 1)
	assert.Equal(t, "ev-1", alerts.inserted[0].ID)
}

func TestLanesPinVehicleToOneLane(t *testing.T) {
	log := zaptest.NewLogger(t)
	eval := &fakeEvaluator{}
	lanes := NewLanes(4, 16, eval, &fakeAlertStore{}, stream.NewHub(16, log), nil, log)

	// Without workers running, every record for one vehicle must land
	// in the same lane's queue.
	for i := 0; i < 8; i++ {
		lanes.Submit(testRecord("AUV-01"))
	}

	var nonEmpty, total int
	for _, lane := range lanes.lanes {
		if n := len(lane); n > 0 {
			nonEmpty++
			total += n
		}
	}
	assert.Equal(t, 1, nonEmpty)
	assert.Equal(t, 8, total)
}

func TestLanesDropWhenFull(t *testing.T) {
	log := zaptest.NewLogger(t)
	lanes := NewLanes(1, 2, &fakeEvaluator{}, &fakeAlertStore{}, stream.NewHub(16, log), nil, log)

	// Workers not running; the third submit overflows the lane and is
	// dropped without blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			lanes.Submit(testRecord("AUV-01"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full lane")
	}
	assert.Equal(t, 2, len(lanes.lanes[0]))
}
