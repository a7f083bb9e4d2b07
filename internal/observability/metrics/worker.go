package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/file-intake/internal/core/domain"
)

// WorkerMetrics implements ports.WorkerObserver.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	tasksTotal      *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	taskInFlight    prometheus.Gauge
	queueDepth      prometheus.Gauge
	breakerSwitches *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	tasksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Total finished task attempts by status and rule.",
		},
		[]string{"service", "status", "rule"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "retries_total",
			Help:      "Total tasks re-enqueued after a failed attempt.",
		},
		[]string{"service"},
	)
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Task attempt duration in seconds by status.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	taskInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "tasks_in_flight",
			Help:      "Number of tasks currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Tasks waiting in the local queue.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	breakerSwitches := newBreakerTransitions()

	registry.MustRegister(tasksTotal, retriesTotal, taskDuration, taskInFlight, queueDepth, breakerSwitches)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		tasksTotal:      tasksTotal,
		retriesTotal:    retriesTotal,
		taskDuration:    taskDuration,
		taskInFlight:    taskInFlight,
		queueDepth:      queueDepth,
		breakerSwitches: breakerSwitches,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *WorkerMetrics) StartTask() {
	m.taskInFlight.Inc()
}

func (m *WorkerMetrics) FinishTask(outcome domain.Outcome, duration time.Duration) {
	m.taskInFlight.Dec()

	status := string(outcome.Status)
	if status == "" {
		status = "unknown"
	}
	rule := string(outcome.Rule)
	if rule == "" {
		rule = "none"
	}

	m.tasksTotal.WithLabelValues(m.service, status, rule).Inc()
	m.taskDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
	if outcome.Status == domain.OutcomeRetrying {
		m.retriesTotal.WithLabelValues(m.service).Inc()
	}
}

func (m *WorkerMetrics) ObserveQueueDepth(depth int) {
	if depth < 0 {
		depth = 0
	}
	m.queueDepth.Set(float64(depth))
}

// ObserveBreakerTransition matches resilience.Config.OnStateChange.
func (m *WorkerMetrics) ObserveBreakerTransition(operation, from, to string) {
	m.breakerSwitches.WithLabelValues(m.service, operation, from, to).Inc()
}

func newBreakerTransitions() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes by operation.",
		},
		[]string{"service", "operation", "from", "to"},
	)
}
