package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "permitflow",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "permitflow",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Pipeline metrics
	CoordinateSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "pipeline",
		Name:      "coordinate_submissions_total",
		Help:      "Total coordinate submissions, by outcome",
	}, []string{"outcome"})

	OverlapsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "pipeline",
		Name:      "overlaps_detected_total",
		Help:      "Total overlaps detected against approved boundaries",
	})

	OverlapCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "permitflow",
		Subsystem: "pipeline",
		Name:      "overlap_check_duration_seconds",
		Help:      "Time spent comparing a submission against the reference set",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	ItemReviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "pipeline",
		Name:      "item_reviews_total",
		Help:      "Total item review decisions, by kind and decision",
	}, []string{"kind", "decision"})

	SweepAutoAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "sweep",
		Name:      "auto_accepted_total",
		Help:      "Total records auto-accepted by the deadline sweeper",
	})

	SweepVoided = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "sweep",
		Name:      "voided_total",
		Help:      "Total applications voided by the deadline sweeper",
	})

	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "sweep",
		Name:      "errors_total",
		Help:      "Total per-record errors during deadline sweeps",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "permitflow",
		Subsystem: "sweep",
		Name:      "duration_seconds",
		Help:      "Duration of a full deadline sweep",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "permitflow",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "permitflow",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "permitflow",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "permitflow",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "permitflow",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
// The duck-typed interface keeps pgxpool out of this package.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
