package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oralis_sessions_started_total",
		Help: "Interview sessions started.",
	})

	SessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oralis_sessions_completed_total",
		Help: "Interview sessions reaching a terminal state.",
	}, []string{"status"})

	SegmentsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oralis_segments_finalized_total",
		Help: "Audio segments finalized, by label.",
	}, []string{"label"})

	ClipUploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oralis_clip_upload_failures_total",
		Help: "Recording uploads that failed and fell back to local download.",
	})

	ScoringFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oralis_scoring_failures_total",
		Help: "Evaluation submissions that failed.",
	})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oralis_turn_duration_seconds",
		Help:    "Duration of one prompt-and-response turn.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)
