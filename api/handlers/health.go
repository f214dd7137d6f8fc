package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"videoConverter/api/dto"
)

// HealthDeps are the connectivity probes behind the API health summary.
type HealthDeps struct {
	Broker      func() bool
	ObjectStore func(ctx context.Context) bool
	Database    func(ctx context.Context) bool
}

type HealthHandler struct {
	deps HealthDeps
}

func NewHealthHandler(deps HealthDeps) *HealthHandler {
	return &HealthHandler{deps: deps}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := dto.HealthResponse{
		RabbitMQ: h.deps.Broker(),
		Minio:    h.deps.ObjectStore(r.Context()),
		Database: h.deps.Database(r.Context()),
	}

	resp.Status = "healthy"
	if !resp.RabbitMQ || !resp.Minio || !resp.Database {
		resp.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
