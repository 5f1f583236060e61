package domain

import "time"

// ImageStatus enumerates the persisted outcome of a single generation.
type ImageStatus string

const (
	ImageStatusCompleted ImageStatus = "completed"
	ImageStatusFailed    ImageStatus = "failed"
)

// ReviewStatus is owned by the review workflow; the pipeline only writes pending.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// GeneratedImage is the durable record of one generation attempt. Failed
// attempts are stored too, with an empty URL and the error text.
type GeneratedImage struct {
	ID             string
	OrganizationID string
	ProductID      string
	JobID          string
	SourceImageID  string
	SourceImageURL string
	ParentImageID  *string
	ImageType      string
	Status         ImageStatus
	URL            string
	Prompt         string
	Seed           int
	Temperature    float64
	DurationMS     int64
	ReviewStatus   ReviewStatus
	ErrorMessage   string
	CreatedAt      time.Time
}
