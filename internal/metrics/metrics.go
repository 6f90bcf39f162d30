package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_events_ingested_total",
		Help: "Total number of base events ingested, labelled by service.",
	}, []string{"service"})

	DerivedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_derived_events_total",
		Help: "Total number of derived events produced by rule evaluation, labelled by target service.",
	}, []string{"service"})

	DedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_dedup_hits_total",
		Help: "Total number of ingestions short-circuited by a deduplication key match.",
	})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_outbox_published_total",
		Help: "Total number of outbox messages successfully published.",
	})

	OutboxPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_outbox_publish_failures_total",
		Help: "Total number of failed publish attempts (message stays pending).",
	})

	OutboxExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_outbox_exhausted_total",
		Help: "Total number of outbox messages marked failed after exhausting the attempt budget.",
	})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_ingest_duration_ms",
		Help:    "Ingestion transaction latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)
