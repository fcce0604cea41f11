package health

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"auv-monitor/ingestion/internal/metrics"
)

func TestDegradedCombinesBothSignals(t *testing.T) {
	s := NewState()
	assert.False(t, s.Degraded())

	s.SetStorageDegraded(true)
	assert.True(t, s.Degraded())
	assert.True(t, s.StorageDegraded())
	assert.False(t, s.ZonesDegraded())

	s.SetStorageDegraded(false)
	s.SetZonesDegraded(true)
	assert.True(t, s.Degraded())

	s.SetZonesDegraded(false)
	assert.False(t, s.Degraded())
}

func TestSettersKeepGaugeCurrent(t *testing.T) {
	s := NewState()
	s.SetStorageDegraded(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineDegraded))

	// Zone degradation alone must surface on the gauge, same as the
	// storage path.
	s.SetZonesDegraded(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PipelineDegraded))

	// One signal clearing does not mask the other.
	s.SetStorageDegraded(true)
	s.SetZonesDegraded(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PipelineDegraded))

	s.SetStorageDegraded(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineDegraded))
}
