package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_events_processed_total",
		Help: "Total standardized events handled by the pipeline",
	}, []string{"result"})

	PipelineStepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_pipeline_step_failures_total",
		Help: "Best-effort pipeline steps that failed and were skipped",
	}, []string{"step"})

	ThumbnailFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_thumbnail_fetches_total",
		Help: "Thumbnail fetch attempts by result",
	}, []string{"result"})

	ThumbnailGateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_thumbnail_gate_decisions_total",
		Help: "Thumbnail gate outcomes",
	}, []string{"decision"})

	AlarmTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fusion_alarm_triggers_total",
		Help: "Zones transitioned to triggered by the alarm evaluator",
	})

	RealtimePublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_realtime_publishes_total",
		Help: "Realtime channel publishes by channel kind and result",
	}, []string{"channel", "result"})

	AutomationDispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusion_automation_dispatches_total",
		Help: "Events forwarded to the automation trigger service",
	}, []string{"result"})

	IngestInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fusion_ingest_inflight",
		Help: "Events currently being processed by the ingest consumer",
	})
)
