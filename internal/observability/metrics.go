package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reunite",
		Name:      "match_runs_total",
		Help:      "Total matching runs, by mode (batch or incremental)",
	}, []string{"mode"})

	MatchesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reunite",
		Name:      "matches_accepted_total",
		Help:      "Total accepted case/sighting matches, by mode",
	}, []string{"mode"})

	FramesSampled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reunite",
		Name:      "video_frames_sampled_total",
		Help:      "Total frames sampled from uploaded videos",
	}, []string{"video_id"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reunite",
		Name:      "faces_detected_total",
		Help:      "Total faces detected across all inputs",
	})

	VideoDetections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reunite",
		Name:      "video_detections_total",
		Help:      "Total accepted video detections",
	}, []string{"video_id"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reunite",
		Name:      "video_scan_duration_seconds",
		Help:      "Wall-clock duration of complete video scans",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reunite",
		Name:      "inference_duration_seconds",
		Help:      "Duration of face engine stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reunite",
		Name:      "scan_queue_depth",
		Help:      "Number of pending video scan tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reunite",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reunite",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
