package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"plantshot/internal/domain"
	"plantshot/internal/infra"
	"plantshot/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationStore.
type GenerationRepositoryPG struct {
	db infra.SQLExecutor
}

// NewGenerationRepository creates a repository backed by PostgreSQL.
var _ domain.GenerationStore = (*GenerationRepositoryPG)(nil)

func NewGenerationRepository(db infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{db: db}
}

// CreateJob inserts a processing job. An empty ID is filled with a new UUID.
func (r *GenerationRepositoryPG) CreateJob(ctx context.Context, job *domain.GenerationJob) error {
	if job == nil {
		return fmt.Errorf("create generation job: %w", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if job.Total == 0 {
		job.Total = len(job.ImageTypes)
	}
	if job.Kind == "" {
		job.Kind = domain.JobKindBatch
	}
	var started time.Time
	if err := r.db.QueryRow(ctx, sqlinline.QInsertGenerationJob,
		job.ID,
		job.OrganizationID,
		job.ProductID,
		job.ImageTypes,
		job.Total,
		string(job.Kind),
	).Scan(&job.CreatedAt, &started); err != nil {
		return fmt.Errorf("create generation job: %w", err)
	}
	job.StartedAt = &started
	job.Status = domain.JobStatusProcessing
	return nil
}

// UpdateJob writes the counters and terminal status.
func (r *GenerationRepositoryPG) UpdateJob(ctx context.Context, job domain.GenerationJob) error {
	if _, err := r.db.Exec(ctx, sqlinline.QUpdateGenerationJob,
		job.ID,
		job.Completed,
		job.Failed,
		string(job.Status),
		job.CompletedAt,
	); err != nil {
		return fmt.Errorf("update generation job: %w", err)
	}
	return nil
}

// CreateGeneratedImage stores one generation outcome and returns its id.
func (r *GenerationRepositoryPG) CreateGeneratedImage(ctx context.Context, img domain.GeneratedImage) (string, error) {
	var id string
	if err := r.db.QueryRow(ctx, sqlinline.QInsertGeneratedImage,
		img.OrganizationID,
		img.ProductID,
		img.JobID,
		img.SourceImageID,
		img.SourceImageURL,
		img.ParentImageID,
		img.ImageType,
		string(img.Status),
		img.URL,
		img.Prompt,
		img.Seed,
		img.Temperature,
		img.DurationMS,
		img.ErrorMessage,
	).Scan(&id); err != nil {
		return "", fmt.Errorf("create generated image: %w", err)
	}
	return id, nil
}

func (r *GenerationRepositoryPG) HasActiveJob(ctx context.Context, organizationID string) (bool, error) {
	var active bool
	if err := r.db.QueryRow(ctx, sqlinline.QHasActiveGenerationJob, organizationID).Scan(&active); err != nil {
		return false, fmt.Errorf("check active generation job: %w", err)
	}
	return active, nil
}

// GetJob loads a job scoped to its organization.
func (r *GenerationRepositoryPG) GetJob(ctx context.Context, organizationID, jobID string) (*domain.GenerationJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}
	var (
		job    domain.GenerationJob
		kind   string
		status string
	)
	err := r.db.QueryRow(ctx, sqlinline.QSelectGenerationJob, jobID, organizationID).Scan(
		&job.ID,
		&kind,
		&job.OrganizationID,
		&job.ProductID,
		&job.ImageTypes,
		&job.Total,
		&job.Completed,
		&job.Failed,
		&status,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get generation job: %w", err)
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	return &job, nil
}

// FailStaleJobs fails processing jobs started before cutoff and returns how
// many were updated.
func (r *GenerationRepositoryPG) FailStaleJobs(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, sqlinline.QFailStaleGenerationJobs, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fail stale generation jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
