package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindlog_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ActiveWebSockets is the number of open live-count sockets.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mindlog_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts events dropped for slow or closed clients.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindlog_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// GraphBuilds counts mind-map graph requests by cache outcome.
	GraphBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindlog_graph_builds_total",
		Help: "Mind-map graph requests by cache result",
	}, []string{"result"})

	// TitleRefreshUpdates counts logs whose cached related titles were rewritten.
	TitleRefreshUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindlog_title_refresh_updates_total",
		Help: "Logs whose related titles were refreshed by the background job",
	})

	// TitleRefreshRuns counts refresher passes by outcome.
	TitleRefreshRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindlog_title_refresh_runs_total",
		Help: "Related title refresher runs by outcome",
	}, []string{"outcome"})

	// ImageUploads counts upload attempts by outcome.
	ImageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindlog_image_uploads_total",
		Help: "Image uploads by outcome",
	}, []string{"outcome"})
)
