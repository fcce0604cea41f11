// Package metrics exposes pipeline counters via Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_records_accepted_total",
		Help: "Telemetry records admitted into the pipeline.",
	})
	RecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_records_rejected_total",
		Help: "Telemetry records rejected at admission, by reason.",
	}, []string{"reason"})

	BatchFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_batch_flushes_total",
		Help: "Batches flushed to storage.",
	})
	BatchFlushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_batch_flush_failures_total",
		Help: "Batch flush attempts that failed.",
	})
	RecordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_records_dropped_total",
		Help: "Records dropped after the storage retry budget was exhausted.",
	})

	LaneDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_lane_drops_total",
		Help: "Records dropped because an evaluation lane queue was full.",
	})

	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_alerts_fired_total",
		Help: "Alert events emitted after deduplication, by severity.",
	}, []string{"severity"})

	SubscriberDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_stream_disconnects_total",
		Help: "Stream subscribers disconnected for falling behind.",
	})
	StreamSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestion_stream_subscribers",
		Help: "Live stream subscribers, by kind.",
	}, []string{"kind"})

	PipelineDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingestion_pipeline_degraded",
		Help: "1 when the pipeline reports a degraded-health condition.",
	})
)
