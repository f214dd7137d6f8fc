package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func fixedMonitor(t *testing.T, s Sample, shuttingDown bool, activeJobs int64) *Monitor {
	m := NewMonitor(
		func() bool { return shuttingDown },
		func() int64 { return activeJobs },
		zaptest.NewLogger(t),
	)
	m.sample = func(ctx context.Context) (Sample, error) { return s, nil }
	return m
}

func TestReadiness_Thresholds(t *testing.T) {
	tests := []struct {
		name         string
		cpu, mem     float64
		shuttingDown bool
		wantReady    bool
	}{
		{"idle", 10, 20, false, true},
		{"cpu at limit", 85, 20, false, false},
		{"cpu above limit", 95.5, 20, false, false},
		{"cpu just below limit", 84.9, 20, false, true},
		{"memory at limit", 10, 90, false, false},
		{"memory above limit", 10, 97, false, false},
		{"memory just below limit", 10, 89.9, false, true},
		{"shutting down", 10, 20, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := fixedMonitor(t, Sample{CPUPercent: tt.cpu, MemoryPercent: tt.mem}, tt.shuttingDown, 0)

			r, err := m.Readiness(context.Background())
			if err != nil {
				t.Fatalf("Readiness failed: %v", err)
			}
			if r.Ready != tt.wantReady {
				t.Errorf("cpu=%v mem=%v shutdown=%v: expected ready=%v, got %v",
					tt.cpu, tt.mem, tt.shuttingDown, tt.wantReady, r.Ready)
			}
		})
	}
}

func TestHealthEndpoint_AlwaysAlive(t *testing.T) {
	m := fixedMonitor(t, Sample{CPUPercent: 99, MemoryPercent: 99}, true, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] != "alive" {
		t.Errorf("Expected status alive, got %q", body["status"])
	}
}

func TestReadyEndpoint_ReportsUtilization(t *testing.T) {
	m := fixedMonitor(t, Sample{CPUPercent: 42.123, MemoryPercent: 55.456}, false, 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var r Readiness
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if !r.Ready {
		t.Error("Expected ready=true")
	}
	if r.CPUPercent != 42.12 || r.MemoryPercent != 55.46 {
		t.Errorf("Expected rounded utilization, got cpu=%v mem=%v", r.CPUPercent, r.MemoryPercent)
	}
	if r.ActiveJobs != 3 {
		t.Errorf("Expected 3 active jobs, got %d", r.ActiveJobs)
	}
}

func TestReadyEndpoint_Overloaded_Returns503(t *testing.T) {
	m := fixedMonitor(t, Sample{CPUPercent: 91, MemoryPercent: 20}, false, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}

	var r Readiness
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if r.Ready {
		t.Error("Expected ready=false in 503 body")
	}
}

func TestReadyEndpoint_SamplerError_Returns500(t *testing.T) {
	m := fixedMonitor(t, Sample{}, false, 0)
	m.sample = func(ctx context.Context) (Sample, error) {
		return Sample{}, errors.New("proc unavailable")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
}
