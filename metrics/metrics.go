// Package metrics provides Prometheus metrics for quill.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RelatedCacheTotal counts related-result cache lookups by outcome (hit, miss, error).
	RelatedCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "related_cache_total",
			Help:      "Related posts cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// RelatedFallbackTotal counts slots padded with recent items.
	RelatedFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "related_fallback_items_total",
			Help:      "Number of related slots filled by the recency fallback",
		},
	)

	// LoopChecksTotal counts redirect loop checks by result.
	LoopChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "redirect_loop_checks_total",
			Help:      "Redirect loop checks by result",
		},
		[]string{"result"},
	)

	// RedirectsServedTotal counts redirects answered by the middleware.
	RedirectsServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "redirects_served_total",
			Help:      "Redirect responses served",
		},
		[]string{"status"},
	)

	// EventsTotal counts consumed content events by type and status.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "content_events_total",
			Help:      "Content change events consumed",
		},
		[]string{"type", "status"},
	)

	// SnapshotItems tracks the number of items in the loaded snapshot.
	SnapshotItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quill",
			Name:      "snapshot_items",
			Help:      "Content items in the loaded snapshot",
		},
	)
)
