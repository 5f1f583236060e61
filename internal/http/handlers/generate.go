package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"plantshot/internal/events"
	"plantshot/internal/pipeline"
)

// Generate admits a batch and streams its progress as server-sent events.
// Rejections are plain JSON responses sent before the stream opens.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	org, productID, err := routeScope(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var body generateRequest
	if err := decodeBody(w, r, &body); err != nil {
		a.fail(w, err)
		return
	}
	types, err := parseTypes(body.ImageTypes)
	if err != nil {
		a.fail(w, err)
		return
	}
	aspect, size, err := parseOutput(body.AspectRatio, body.ImageSize)
	if err != nil {
		a.fail(w, err)
		return
	}

	product := body.Product
	product.ID = productID
	req := pipeline.Request{
		OrganizationID:    org,
		Product:           product,
		SourceImageURL:    body.SourceImageURL,
		SourceImageID:     body.SourceImageID,
		SecondaryImageURL: body.SecondaryImageURL,
		ImageTypes:        types,
		AspectRatio:       aspect,
		ImageSize:         size,
		BatchID:           uuid.NewString(),
	}
	if err := a.Generation.Validate(req); err != nil {
		a.fail(w, err)
		return
	}

	admission, err := a.Generation.Admit(r.Context(), org, len(types))
	if err != nil {
		a.fail(w, err)
		return
	}

	stream := events.NewSSEWriter(w)
	req.OnEvent = events.Fanout(stream.Send, a.Mirror)

	// The batch keeps running if the client goes away.
	runCtx := context.WithoutCancel(r.Context())
	jobs, err := a.Generation.RunAdmitted(runCtx, admission, req)
	if err != nil {
		a.Logger.Error().Err(err).Str("batch_id", req.BatchID).Msg("handlers: batch run failed")
		return
	}
	succeeded, failed := pipeline.Tally(jobs)
	logEvent := a.Logger.Info()
	if streamErr := stream.Err(); streamErr != nil {
		logEvent = a.Logger.Warn().AnErr("stream_error", streamErr)
	}
	logEvent.
		Str("batch_id", req.BatchID).
		Str("organization_id", org).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("handlers: batch finished")
}
