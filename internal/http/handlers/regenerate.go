package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"plantshot/internal/domain"
	"plantshot/internal/imagegen"
	"plantshot/internal/pipeline"
)

type regenerateResponse struct {
	BatchID string       `json:"batch_id"`
	Job     pipeline.Job `json:"job"`
}

// Regenerate produces one new image for a type and answers with the job.
func (a *App) Regenerate(w http.ResponseWriter, r *http.Request) {
	org, productID, err := routeScope(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var body regenerateRequest
	if err := decodeBody(w, r, &body); err != nil {
		a.fail(w, err)
		return
	}
	imageType, err := imagegen.ParseImageType(body.ImageType)
	if err != nil {
		a.fail(w, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	aspect, size, err := parseOutput(body.AspectRatio, body.ImageSize)
	if err != nil {
		a.fail(w, err)
		return
	}

	product := body.Product
	product.ID = productID
	req := pipeline.RegenerateRequest{
		OrganizationID: org,
		Product:        product,
		ImageType:      imageType,
		SourceImageURL: body.SourceImageURL,
		SourceImageID:  body.SourceImageID,
		ParentImageURL: body.ParentImageURL,
		ParentImageID:  body.ParentImageID,
		Attempt:        body.Attempt,
		AspectRatio:    aspect,
		ImageSize:      size,
		BatchID:        uuid.NewString(),
		OnEvent:        a.Mirror,
	}

	job, err := a.Generation.Regenerate(context.WithoutCancel(r.Context()), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	status := http.StatusOK
	if job.Status == pipeline.JobFailed {
		status = http.StatusBadGateway
	}
	a.json(w, status, regenerateResponse{BatchID: req.BatchID, Job: job})
}
