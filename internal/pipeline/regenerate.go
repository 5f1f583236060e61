package pipeline

import (
	"context"
	"fmt"
	"strings"

	"plantshot/internal/domain"
	"plantshot/internal/events"
	"plantshot/internal/imagegen"
)

// RegenerateRequest asks for a fresh take on a single image type.
type RegenerateRequest struct {
	OrganizationID string
	Product        imagegen.Product
	ImageType      imagegen.ImageType
	SourceImageURL string
	SourceImageID  string
	// ParentImageURL, when set, replaces the source and is recorded as the
	// parent of the new image.
	ParentImageURL string
	ParentImageID  string
	// Attempt varies the seed so each regeneration differs from the last.
	Attempt     int
	AspectRatio imagegen.AspectRatio
	ImageSize   imagegen.ImageSize
	BatchID     string
	OnEvent     events.Handler
}

func (o *Orchestrator) validateRegenerate(req RegenerateRequest) error {
	if strings.TrimSpace(req.OrganizationID) == "" || strings.TrimSpace(req.Product.ID) == "" {
		return fmt.Errorf("%w: organization and product are required", domain.ErrInvalidRequest)
	}
	if req.ImageType == "" {
		return fmt.Errorf("%w: image type is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.SourceImageURL) == "" && strings.TrimSpace(req.ParentImageURL) == "" {
		return fmt.Errorf("%w: source or parent image url is required", domain.ErrInvalidRequest)
	}
	if req.Attempt < 0 {
		return fmt.Errorf("%w: attempt must not be negative", domain.ErrInvalidRequest)
	}
	return nil
}

// Regenerate runs a one-job batch. It emits the same events as Run.
func (o *Orchestrator) Regenerate(ctx context.Context, req RegenerateRequest) (Job, error) {
	if err := o.validateRegenerate(req); err != nil {
		return Job{}, err
	}

	sourceURL := strings.TrimSpace(req.SourceImageURL)
	if sourceURL == "" {
		sourceURL = req.ParentImageURL
	}
	b := o.newBatch(req.BatchID, req.OrganizationID, req.Product, sourceURL, req.SourceImageID, req.AspectRatio, req.ImageSize, req.OnEvent)
	jobs := []Job{newJob(o.newID(), req.ImageType)}

	b.emit(events.Event{Type: events.TypeBatchStart, TotalJobs: 1})

	record := domain.GenerationJob{
		ID:             b.id,
		OrganizationID: b.organizationID,
		ProductID:      b.product.ID,
		ImageTypes:     []string{string(req.ImageType)},
		Total:          1,
		Kind:           domain.JobKindRegenerate,
	}
	if err := contained("create generation job", func() error { return o.store.CreateJob(ctx, &record) }); err != nil {
		o.logger.Error().Err(err).Str("batch_id", b.id).Msg("pipeline: create generation job failed")
		return o.abort(ctx, b, jobs, nil, "could not start generation: "+err.Error())[0], nil
	}

	fetchURL := sourceURL
	parentURL := strings.TrimSpace(req.ParentImageURL)
	if parentURL != "" {
		fetchURL = parentURL
	}
	src, err := o.client.URLToBase64(ctx, fetchURL)
	if err != nil {
		o.logger.Error().Err(err).Str("batch_id", b.id).Msg("pipeline: regenerate source fetch failed")
		return o.abort(ctx, b, jobs, &record, fmt.Sprintf("%s: %v", domain.ErrSourceUnavailable, err))[0], nil
	}

	var parent *whiteOutput
	if parentURL != "" {
		parent = &whiteOutput{recordID: req.ParentImageID, url: parentURL}
	}
	seed := imagegen.SeedForAttempt(b.product.ID, req.ImageType, req.Attempt)
	jobs[0], _ = o.runJob(ctx, b, jobs[0], src, parent, seed)

	return o.finish(ctx, b, jobs, &record)[0], nil
}
