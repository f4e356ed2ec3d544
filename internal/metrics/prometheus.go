package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mrz1836/deskpilot/internal/constants"
)

// Prometheus implements Metrics on its own registry so several instances
// (one per test, one per process) never collide on registration.
type Prometheus struct {
	registry *prometheus.Registry

	tasksStarted      *prometheus.CounterVec
	tasksFinished     *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	stepsCompleted    prometheus.Histogram
	actions           *prometheus.CounterVec
	permissionDenials *prometheus.CounterVec
	inferenceRequests *prometheus.CounterVec
	inferenceLatency  *prometheus.HistogramVec
	detections        *prometheus.CounterVec
	detectionLatency  *prometheus.HistogramVec
}

var _ Metrics = (*Prometheus)(nil)

// NewPrometheus registers every collector on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	ns := constants.MetricsNamespace

	return &Prometheus{
		registry: reg,
		tasksStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tasks_started_total",
			Help:      "Total number of task sessions started",
		}, []string{"model"}),
		tasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tasks_finished_total",
			Help:      "Total number of task sessions by terminal status",
		}, []string{"status"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "task_duration_seconds",
			Help:      "Task session wall time in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
		}, []string{"status"}),
		stepsCompleted: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "task_steps_completed",
			Help:      "Side-effecting steps completed per task",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "actions_total",
			Help:      "Dispatched actions by type and outcome",
		}, []string{"action", "success"}),
		permissionDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "permission_denials_total",
			Help:      "Actions refused by the permission gate",
		}, []string{"capability"}),
		inferenceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "inference_requests_total",
			Help:      "Inference calls by model, mode and outcome",
		}, []string{"model", "mode", "status"}),
		inferenceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "inference_duration_seconds",
			Help:      "Inference call latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		}, []string{"model", "mode"}),
		detections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "detections_total",
			Help:      "UI element detections by element and outcome",
		}, []string{"element", "found"}),
		detectionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "detection_duration_seconds",
			Help:      "UI element detection latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"element"}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// TaskStarted implements Metrics.
func (p *Prometheus) TaskStarted(_, model string) {
	p.tasksStarted.WithLabelValues(model).Inc()
}

// TaskFinished implements Metrics.
func (p *Prometheus) TaskFinished(_, status string, stepsCompleted int, duration time.Duration) {
	p.tasksFinished.WithLabelValues(status).Inc()
	p.taskDuration.WithLabelValues(status).Observe(duration.Seconds())
	p.stepsCompleted.Observe(float64(stepsCompleted))
}

// ActionExecuted implements Metrics.
func (p *Prometheus) ActionExecuted(action string, success bool) {
	p.actions.WithLabelValues(action, strconv.FormatBool(success)).Inc()
}

// PermissionDenied implements Metrics.
func (p *Prometheus) PermissionDenied(capability string) {
	p.permissionDenials.WithLabelValues(capability).Inc()
}

// InferenceCompleted implements Metrics.
func (p *Prometheus) InferenceCompleted(model string, streamed bool, duration time.Duration, err error) {
	mode := "buffered"
	if streamed {
		mode = "stream"
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.inferenceRequests.WithLabelValues(model, mode, status).Inc()
	p.inferenceLatency.WithLabelValues(model, mode).Observe(duration.Seconds())
}

// DetectionCompleted implements Metrics.
func (p *Prometheus) DetectionCompleted(element string, found bool, duration time.Duration) {
	p.detections.WithLabelValues(element, strconv.FormatBool(found)).Inc()
	p.detectionLatency.WithLabelValues(element).Observe(duration.Seconds())
}

// Handler returns the /metrics HTTP handler for this registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (p *Prometheus) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
