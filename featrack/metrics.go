package featrack

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "featrack_frames_tracked_total",
		Help: "Frames processed by the feature tracker, by mode (first, extend, stitch)",
	}, []string{"mode"})

	tracksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "featrack_tracks_created_total",
		Help: "Singleton tracks created for unmatched features",
	})

	statesAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "featrack_states_added_total",
		Help: "States appended or inserted into existing tracks",
	})

	tracksMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "featrack_tracks_merged_total",
		Help: "Fusion requests which joined two distinct tracks",
	})

	matchingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "featrack_matching_failures_total",
		Help: "Frames skipped because feature matching failed",
	})

	trackDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "featrack_track_duration_seconds",
		Help:    "Time spent in a single Track call, collaborators included",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
)
