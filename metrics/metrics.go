// Package metrics provides Prometheus collectors for the modem link, the
// frame demultiplexer and the embedded HTTP server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// CommandBuckets covers AT exchanges from a few milliseconds up to a slow
// access point join.
var CommandBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20}

var (
	// CommandsTotal counts AT command exchanges by outcome.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifigw_commands_total",
			Help: "AT command exchanges",
		},
		[]string{"result"},
	)

	// CommandDuration records the time from command write to terminator.
	CommandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wifigw_command_duration_seconds",
			Help:    "AT command duration",
			Buckets: CommandBuckets,
		},
	)

	// DroppedBytes counts bytes lost to a full buffer.
	DroppedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifigw_dropped_bytes_total",
			Help: "Bytes dropped because a buffer was full",
		},
		[]string{"buffer"},
	)

	// FramesTotal counts +IPD frames handed to a handler.
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifigw_frames_total",
			Help: "Inbound frames dispatched",
		},
		[]string{"result"},
	)

	// FrameResyncs counts staging overflows recovered by seeking the next marker.
	FrameResyncs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wifigw_frame_resyncs_total",
			Help: "Staging buffer resynchronizations",
		},
	)

	// MalformedMarkers counts marker occurrences rejected as noise.
	MalformedMarkers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wifigw_frame_malformed_total",
			Help: "Malformed frame markers skipped",
		},
	)

	// DiscardedBytes counts bytes the demultiplexer threw away.
	DiscardedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifigw_discarded_bytes_total",
			Help: "Bytes discarded by the demultiplexer",
		},
		[]string{"reason"},
	)

	// ResponsesTotal counts HTTP responses by status code.
	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wifigw_http_responses_total",
			Help: "HTTP responses sent",
		},
		[]string{"code"},
	)

	// ParseErrors counts inbound payloads that were not valid requests.
	ParseErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wifigw_http_parse_errors_total",
			Help: "Unparsable HTTP requests",
		},
	)

	// RouteMisses counts requests answered by the not-found responder.
	RouteMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wifigw_http_route_misses_total",
			Help: "Requests without a matching route",
		},
	)

	// DiscoveryReplies counts answered discovery searches.
	DiscoveryReplies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wifigw_discovery_replies_total",
			Help: "Discovery search replies sent",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CommandsTotal,
		CommandDuration,
		DroppedBytes,
		FramesTotal,
		FrameResyncs,
		MalformedMarkers,
		DiscardedBytes,
		ResponsesTotal,
		ParseErrors,
		RouteMisses,
		DiscoveryReplies,
	)
}
