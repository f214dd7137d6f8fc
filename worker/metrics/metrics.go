package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics carries the worker's Prometheus collectors. The active-job
// count is mirrored in an atomic so the readiness monitor can read it
// without going through the registry.
type Metrics struct {
	registry *prometheus.Registry

	JobsProcessed  *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	ConversionTime prometheus.Histogram
	DownloadTime   prometheus.Histogram
	UploadTime     prometheus.Histogram

	activeJobsGauge prometheus.Gauge
	activeJobs      atomic.Int64
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_jobs_processed_total",
			Help: "Total jobs processed by this worker",
		}, []string{"status"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_failures_total",
			Help: "Total failures by type",
		}, []string{"failure_type"}),
		ConversionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_conversion_time_seconds",
			Help:    "Time taken for video conversion",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		DownloadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_download_time_seconds",
			Help:    "Time to download input from object storage",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		UploadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_upload_time_seconds",
			Help:    "Time to upload output to object storage",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),
		activeJobsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worker_active_jobs",
			Help: "Jobs currently being processed",
		}),
	}

	m.registry.MustRegister(
		m.JobsProcessed,
		m.Failures,
		m.ConversionTime,
		m.DownloadTime,
		m.UploadTime,
		m.activeJobsGauge,
	)

	return m
}

func (m *Metrics) JobStarted() {
	m.activeJobs.Add(1)
	m.activeJobsGauge.Inc()
}

func (m *Metrics) JobFinished() {
	m.activeJobs.Add(-1)
	m.activeJobsGauge.Dec()
}

func (m *Metrics) ActiveJobs() int64 {
	return m.activeJobs.Load()
}

func (m *Metrics) RecordFailure(failureType string) {
	m.Failures.WithLabelValues(failureType).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on the given port in its own goroutine.
func (m *Metrics) Serve(port int, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("Metrics server started", zap.Int("port", port))
	return srv
}
