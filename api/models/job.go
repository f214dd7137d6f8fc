package models

import (
	"time"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

type Job struct {
	ID               string
	Status           JobStatus
	InputPath        string
	OutputPath       *string
	OutputFormat     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ErrorMessage     *string
	ConversionTimeMS *int64
}
