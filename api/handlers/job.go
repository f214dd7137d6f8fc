package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"videoConverter/api/dto"
	"videoConverter/api/middleware"
	"videoConverter/api/repository"
	"videoConverter/api/service"
	"videoConverter/api/validation"
)

type JobService interface {
	CreateUploadURL(ctx context.Context, req *dto.UploadURLRequest) (*dto.UploadURLResponse, error)
	CreateJob(ctx context.Context, req *dto.CreateJobRequest) (*dto.JobResponse, error)
	GetJob(ctx context.Context, jobID string) (*dto.JobResponse, error)
	GetDownloadURL(ctx context.Context, jobID string) (*dto.DownloadURLResponse, error)
	ListJobs(ctx context.Context, status string, limit int) ([]dto.JobResponse, error)
	Stats(ctx context.Context) (*dto.StatsResponse, error)
}

type JobHandler struct {
	service JobService
	logger  *zap.Logger
}

func NewJobHandler(service JobService, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		service: service,
		logger:  logger,
	}
}

func (h *JobHandler) Register(r *mux.Router) {
	r.HandleFunc("/upload/request", h.UploadURL).Methods(http.MethodPost)
	r.HandleFunc("/jobs", h.CreateJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.GetJob).Methods(http.MethodGet)
	r.HandleFunc("/download/{id}", h.DownloadURL).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
}

func (h *JobHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	var req dto.UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, "Invalid request body", err, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.CreateUploadURL(r.Context(), &req)
	if err != nil {
		h.handleError(w, "Failed to generate upload URL", err, traceID, statusFor(err))
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	var req dto.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, "Invalid request body", err, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.CreateJob(r.Context(), &req)
	if err != nil {
		h.handleError(w, "Failed to create job", err, traceID, statusFor(err))
		return
	}

	h.logger.Info("Job created",
		zap.String("trace_id", traceID),
		zap.String("job_id", resp.ID),
	)
	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	jobID := mux.Vars(r)["id"]

	resp, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.handleError(w, "Failed to get job", err, traceID, statusFor(err))
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *JobHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	jobID := mux.Vars(r)["id"]

	resp, err := h.service.GetDownloadURL(r.Context(), jobID)
	if err != nil {
		h.handleError(w, "Failed to generate download URL", err, traceID, statusFor(err))
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp, err := h.service.ListJobs(r.Context(), status, limit)
	if err != nil {
		h.handleError(w, "Failed to list jobs", err, traceID, statusFor(err))
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	resp, err := h.service.Stats(r.Context())
	if err != nil {
		h.handleError(w, "Failed to collect stats", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dto.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrJobAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrJobNotReady):
		return http.StatusConflict
	case errors.Is(err, validation.ErrEmptyFilename),
		errors.Is(err, validation.ErrInvalidFileType),
		errors.Is(err, validation.ErrUnsupportedFormat),
		errors.Is(err, validation.ErrEmptyInputPath),
		errors.Is(err, validation.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *JobHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func (h *JobHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
