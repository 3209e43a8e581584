package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Pipeline health
	MetricOverlapCheckLatency = "pipeline.overlap_check_latency"
	MetricSweepLag            = "sweep.lag_seconds"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricAutoAccepts = "business.deadline_auto_accepts"
	MetricVoids       = "business.deadline_voids"
)
