// Package events carries pipeline progress to whoever is listening: the SSE
// response of the requesting client and, optionally, a Kafka topic.
package events

import "time"

// Type names the event on the wire.
type Type string

const (
	TypeBatchStart    Type = "batch-start"
	TypeJobStart      Type = "job-start"
	TypeJobComplete   Type = "job-complete"
	TypeJobError      Type = "job-error"
	TypeBatchComplete Type = "batch-complete"
)

// Event is one progress notification. Fields irrelevant to the type are left
// empty and omitted from JSON.
type Event struct {
	Type           Type      `json:"type"`
	BatchID        string    `json:"batchId,omitempty"`
	OrganizationID string    `json:"organizationId,omitempty"`
	ProductID      string    `json:"productId,omitempty"`
	JobID          string    `json:"jobId,omitempty"`
	ImageType      string    `json:"imageType,omitempty"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	ImageID        string    `json:"imageId,omitempty"`
	Error          string    `json:"error,omitempty"`
	TotalJobs      int       `json:"totalJobs,omitempty"`
	SuccessCount   *int      `json:"successCount,omitempty"`
	FailedCount    *int      `json:"failedCount,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Handler receives events synchronously, in emission order.
type Handler func(Event)

// Fanout delivers each event to every non-nil handler in order.
func Fanout(handlers ...Handler) Handler {
	var active []Handler
	for _, h := range handlers {
		if h != nil {
			active = append(active, h)
		}
	}
	return func(ev Event) {
		for _, h := range active {
			h(ev)
		}
	}
}
