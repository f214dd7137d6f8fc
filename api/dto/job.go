package dto

import "errors"

var ErrJobNotFound = errors.New("job not found")

type CreateJobRequest struct {
	JobID        string `json:"job_id,omitempty"`
	InputPath    string `json:"input_path"`
	OutputFormat string `json:"output_format"`
}

type JobResponse struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	InputPath        string  `json:"input_path"`
	OutputPath       *string `json:"output_path,omitempty"`
	OutputFormat     string  `json:"output_format"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	ErrorMessage     *string `json:"error_message,omitempty"`
	ConversionTimeMS *int64  `json:"conversion_time_ms,omitempty"`
}

type UploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
}

type UploadURLResponse struct {
	UploadURL  string `json:"upload_url"`
	ObjectPath string `json:"object_path"`
	JobID      string `json:"job_id"`
	ExpiresIn  int    `json:"expires_in"`
}

type DownloadURLResponse struct {
	DownloadURL string `json:"download_url"`
	ExpiresIn   int    `json:"expires_in"`
}

type StatsResponse struct {
	Counts     map[string]int64 `json:"counts"`
	QueueDepth int              `json:"queue_depth"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	RabbitMQ bool   `json:"rabbitmq"`
	Minio    bool   `json:"minio"`
	Database bool   `json:"database"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}
