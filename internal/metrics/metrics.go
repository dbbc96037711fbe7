// Package metrics exposes Prometheus instrumentation for the event pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished tracks publish attempts by topic and outcome
	// (delivered, cached, rejected).
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "todohub_events_published_total",
		Help: "The total number of event publish attempts",
	}, []string{"topic", "outcome"})

	// PublishDuration tracks broker delivery latency in seconds.
	PublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "todohub_event_publish_duration_seconds",
		Help:    "Duration of broker publish calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})

	// CacheSize tracks the degraded-mode buffer size.
	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "todohub_event_cache_size",
		Help: "Number of events held in the degraded-mode cache",
	})

	// RemindersFired tracks reminder job executions by result
	// (notified, skipped_completed, skipped_missing, error).
	RemindersFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "todohub_reminders_fired_total",
		Help: "The total number of reminder job executions",
	}, []string{"result"})
)
