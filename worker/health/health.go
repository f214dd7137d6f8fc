package health

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

const (
	cpuReadyThreshold    = 85.0
	memoryReadyThreshold = 90.0
	cpuSampleWindow      = 100 * time.Millisecond
)

// Sample is one instantaneous utilization reading.
type Sample struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Readiness is the orchestrator-facing answer to "route work here?".
type Readiness struct {
	Ready         bool    `json:"ready"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	ActiveJobs    int64   `json:"active_jobs"`
}

// Monitor gates readiness on resource headroom and shutdown state.
type Monitor struct {
	sample       func(ctx context.Context) (Sample, error)
	shuttingDown func() bool
	activeJobs   func() int64
	logger       *zap.Logger
}

func NewMonitor(shuttingDown func() bool, activeJobs func() int64, logger *zap.Logger) *Monitor {
	return &Monitor{
		sample:       systemSample,
		shuttingDown: shuttingDown,
		activeJobs:   activeJobs,
		logger:       logger,
	}
}

func systemSample(ctx context.Context) (Sample, error) {
	percents, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
	if err != nil {
		return Sample{}, fmt.Errorf("sample cpu: %w", err)
	}
	if len(percents) == 0 {
		return Sample{}, fmt.Errorf("sample cpu: no readings")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("sample memory: %w", err)
	}

	return Sample{CPUPercent: percents[0], MemoryPercent: vm.UsedPercent}, nil
}

func (m *Monitor) Readiness(ctx context.Context) (Readiness, error) {
	s, err := m.sample(ctx)
	if err != nil {
		return Readiness{}, err
	}

	return Readiness{
		Ready: s.CPUPercent < cpuReadyThreshold &&
			s.MemoryPercent < memoryReadyThreshold &&
			!m.shuttingDown(),
		CPUPercent:    round2(s.CPUPercent),
		MemoryPercent: round2(s.MemoryPercent),
		ActiveJobs:    m.activeJobs(),
	}, nil
}

// Handler serves the liveness and readiness probes.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		readiness, err := m.Readiness(r.Context())
		if err != nil {
			m.logger.Error("Readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		status := http.StatusOK
		if !readiness.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readiness)
	})

	return mux
}

// Serve starts the probe server on its own goroutine.
func (m *Monitor) Serve(port int) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Health server stopped", zap.Error(err))
		}
	}()

	m.logger.Info("Health check server started", zap.Int("port", port))
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
