package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"plantshot/internal/domain"
)

type generationJobResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	ProductID   string     `json:"product_id"`
	ImageTypes  []string   `json:"image_types"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	org := strings.TrimSpace(chi.URLParam(r, "org_id"))
	if _, err := uuid.Parse(org); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "org_id must be a uuid")
		return
	}
	jobID := strings.TrimSpace(chi.URLParam(r, "job_id"))
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Jobs.GetJob(r.Context(), org, jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if job == nil {
		a.fail(w, domain.ErrNotFound)
		return
	}
	a.json(w, http.StatusOK, generationJobResponse{
		ID:          job.ID,
		Kind:        string(job.Kind),
		ProductID:   job.ProductID,
		ImageTypes:  job.ImageTypes,
		Total:       job.Total,
		Completed:   job.Completed,
		Failed:      job.Failed,
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	})
}
