package domain

import "time"

// JobStatus enumerates GenerationJob lifecycle states.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobKind separates full batches from single-image regenerations. Only batches
// occupy an organization's batch slot.
type JobKind string

const (
	JobKindBatch      JobKind = "batch"
	JobKindRegenerate JobKind = "regenerate"
)

// GenerationJob is the durable record of one batch request.
type GenerationJob struct {
	ID             string
	Kind           JobKind
	OrganizationID string
	ProductID      string
	ImageTypes     []string
	Total          int
	Completed      int
	Failed         int
	Status         JobStatus
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// Resolved reports how many image types reached a terminal state.
func (j GenerationJob) Resolved() int {
	return j.Completed + j.Failed
}

// Finish returns a copy of the job in its terminal state. Status is failed only
// when every requested type failed.
func (j GenerationJob) Finish(completed, failed int, at time.Time) GenerationJob {
	j.Completed = completed
	j.Failed = failed
	if j.Completed+j.Failed > j.Total {
		j.Total = j.Completed + j.Failed
	}
	j.Status = JobStatusCompleted
	if j.Total > 0 && j.Failed == j.Total {
		j.Status = JobStatusFailed
	}
	j.CompletedAt = &at
	return j
}
