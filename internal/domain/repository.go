package domain

import (
	"context"
	"time"
)

// GenerationStore persists batch jobs and their generated images.
type GenerationStore interface {
	CreateJob(ctx context.Context, job *GenerationJob) error
	UpdateJob(ctx context.Context, job GenerationJob) error
	// CreateGeneratedImage returns the new record id.
	CreateGeneratedImage(ctx context.Context, img GeneratedImage) (string, error)
	HasActiveJob(ctx context.Context, organizationID string) (bool, error)
	GetJob(ctx context.Context, organizationID, jobID string) (*GenerationJob, error)
	// FailStaleJobs marks processing jobs started before cutoff as failed.
	FailStaleJobs(ctx context.Context, cutoff time.Time) (int, error)
}

// OrganizationRepository manages tenant plan settings.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id string) (*Organization, error)
	SetPhotoLimit(ctx context.Context, id string, limit *int) error
}
