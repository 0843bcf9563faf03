package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sizefit_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sizefit_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Engine metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sizefit_runs_total",
			Help: "Total number of resize runs by outcome",
		},
		[]string{"mode", "verdict"}, // mode: fit, resize; verdict: within, best_effort, short_circuit, error
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sizefit_run_duration_seconds",
			Help:    "Resize run duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	RunBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sizefit_run_bytes",
			Help:    "Input/output bytes per run",
			Buckets: []float64{1024, 10240, 102400, 512000, 1048576, 5242880, 10485760},
		},
		[]string{"direction"}, // input, output
	)

	TrialEncodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sizefit_trial_encodes",
			Help:    "Trial encodes spent per size-targeting run",
			Buckets: []float64{0, 1, 2, 4, 6, 10, 15, 22},
		},
	)

	PhasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sizefit_phase_exits_total",
			Help: "Size-targeting runs by the last phase they ran",
		},
		[]string{"phase"},
	)

	FormatSubstitutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sizefit_format_substitutions_total",
			Help: "Lossless or non-encodable sources switched to a lossy format",
		},
		[]string{"from", "to"},
	)

	// Queue/Pool metrics
	WorkerPoolQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sizefit_worker_pool_queue_size",
			Help: "Current number of jobs in worker pool queue",
		},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sizefit_worker_pool_active_jobs",
			Help: "Current number of active resize jobs",
		},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sizefit_rate_limit_exceeded_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
		[]string{"ip_prefix"}, // First octet for privacy
	)

	// Concurrency metrics
	ConcurrentRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sizefit_concurrent_requests",
			Help: "Current number of concurrent requests being processed",
		},
	)

	ConcurrencyLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sizefit_concurrency_limit_exceeded_total",
			Help: "Total number of requests rejected due to concurrency limit",
		},
	)

	// Memory metrics
	MemoryPoolHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sizefit_memory_pool_hits_total",
			Help: "Total number of encode buffer pool hits",
		},
		[]string{"size"}, // small, medium, large, xlarge
	)

	MemoryPoolMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sizefit_memory_pool_misses_total",
			Help: "Total number of encode buffer pool misses",
		},
		[]string{"size"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordRun records a finished resize run
func RecordRun(mode, verdict string, duration float64, inputBytes, outputBytes int) {
	RunsTotal.WithLabelValues(mode, verdict).Inc()
	RunDuration.WithLabelValues(mode).Observe(duration)
	RunBytes.WithLabelValues("input").Observe(float64(inputBytes))
	if outputBytes > 0 {
		RunBytes.WithLabelValues("output").Observe(float64(outputBytes))
	}
}

// RecordSearch records how a size-targeting run ended inside the engine
func RecordSearch(phase string, trials int) {
	PhasesTotal.WithLabelValues(phase).Inc()
	TrialEncodes.Observe(float64(trials))
}

// RecordSubstitution records a format substitution
func RecordSubstitution(from, to string) {
	FormatSubstitutions.WithLabelValues(from, to).Inc()
}

// UpdateWorkerPoolMetrics updates worker pool metrics
func UpdateWorkerPoolMetrics(queueSize, activeJobs int) {
	WorkerPoolQueueSize.Set(float64(queueSize))
	WorkerPoolActiveJobs.Set(float64(activeJobs))
}

// RecordRateLimitExceeded records a rate limit rejection
func RecordRateLimitExceeded(ipPrefix string) {
	RateLimitExceeded.WithLabelValues(ipPrefix).Inc()
}

// UpdateConcurrency updates concurrent request gauge
func UpdateConcurrency(count int) {
	ConcurrentRequests.Set(float64(count))
}

// RecordConcurrencyLimitExceeded records a concurrency limit rejection
func RecordConcurrencyLimitExceeded() {
	ConcurrencyLimitExceeded.Inc()
}

// RecordPoolHit records a buffer pool hit
func RecordPoolHit(size string) {
	MemoryPoolHits.WithLabelValues(size).Inc()
}

// RecordPoolMiss records a buffer pool miss
func RecordPoolMiss(size string) {
	MemoryPoolMisses.WithLabelValues(size).Inc()
}
