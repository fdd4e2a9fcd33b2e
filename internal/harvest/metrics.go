package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesUnavailable counts pages that reported an explicit
	// unavailability marker.
	PagesUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_pages_unavailable_total",
		Help: "Pages that rendered an explicit unavailable marker.",
	})
	// PagesDegraded counts pages read in markup-only degraded mode.
	PagesDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_pages_degraded_total",
		Help: "Pages extracted without structured init data.",
	})
	// ItemsResolved counts resolved records by the source tier that
	// produced them.
	ItemsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_items_resolved_total",
		Help: "Resolved metadata records by data source.",
	}, []string{"source"})
	// ItemsEmitted counts records newly accepted by the sink.
	ItemsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_items_emitted_total",
		Help: "Unified records accepted for emission.",
	})
	// DedupeDropped counts records dropped as per-run duplicates.
	DedupeDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_dedupe_dropped_total",
		Help: "Records dropped because their identifier was already emitted.",
	})
	// SinkFailures counts failed primary sink pushes (recovered via the
	// local fallback log).
	SinkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_sink_failures_total",
		Help: "Primary sink batch failures diverted to the fallback log.",
	})
	// ScrollRounds counts harvesting scroll iterations.
	ScrollRounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_scroll_rounds_total",
		Help: "Scroll rounds performed while harvesting listings.",
	})
	// Snapshots counts diagnostic screenshots persisted.
	Snapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_snapshots_total",
		Help: "Diagnostic screenshots captured.",
	})
)
