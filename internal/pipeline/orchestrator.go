// Package pipeline runs a batch of image generations for one product photo.
// The white-background image is produced first so the types that need a clean
// background can be generated from it.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"plantshot/internal/domain"
	"plantshot/internal/events"
	"plantshot/internal/imagegen"
	"plantshot/internal/infra"
	"plantshot/internal/providers/genai"
	"plantshot/internal/storage"
)

// ImageClient is the subset of the generation client the pipeline uses.
type ImageClient interface {
	Generate(ctx context.Context, req genai.Request) genai.Result
	GenerateMultiSource(ctx context.Context, req genai.MultiRequest) genai.Result
	URLToBase64(ctx context.Context, url string) (genai.InlineImage, error)
}

// Store persists batch records and generated images.
type Store interface {
	CreateJob(ctx context.Context, job *domain.GenerationJob) error
	UpdateJob(ctx context.Context, job domain.GenerationJob) error
	CreateGeneratedImage(ctx context.Context, img domain.GeneratedImage) (string, error)
}

// UsageTracker records billing usage once a batch has resolved.
type UsageTracker interface {
	Track(ctx context.Context, organizationID string, succeeded, failed int)
}

// Request describes one batch.
type Request struct {
	OrganizationID    string
	Product           imagegen.Product
	SourceImageURL    string
	SourceImageID     string
	SecondaryImageURL string
	ImageTypes        []imagegen.ImageType
	AspectRatio       imagegen.AspectRatio
	ImageSize         imagegen.ImageSize
	// BatchID becomes the GenerationJob id. Generated when empty.
	BatchID string
	OnEvent events.Handler
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Client   ImageClient
	Store    Store
	Uploader storage.Uploader
	Usage    UsageTracker
	Logger   *infra.Logger
	// MaxBatchSize caps the number of types per batch. Zero disables the cap.
	MaxBatchSize int
}

// Orchestrator executes batches strictly sequentially.
type Orchestrator struct {
	client       ImageClient
	store        Store
	uploader     storage.Uploader
	usage        UsageTracker
	logger       *infra.Logger
	maxBatchSize int
	now          func() time.Time
	newID        func() string
}

func NewOrchestrator(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Orchestrator{
		client:       d.Client,
		store:        d.Store,
		uploader:     d.Uploader,
		usage:        d.Usage,
		logger:       logger,
		maxBatchSize: d.MaxBatchSize,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Validate checks a batch request without side effects.
func (o *Orchestrator) Validate(req Request) error {
	if strings.TrimSpace(req.OrganizationID) == "" {
		return fmt.Errorf("%w: organization id is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Product.ID) == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.SourceImageURL) == "" {
		return fmt.Errorf("%w: source image url is required", domain.ErrInvalidRequest)
	}
	if len(req.ImageTypes) == 0 {
		return fmt.Errorf("%w: at least one image type is required", domain.ErrInvalidRequest)
	}
	if o.maxBatchSize > 0 && len(req.ImageTypes) > o.maxBatchSize {
		return fmt.Errorf("%w: %d image types requested, at most %d allowed", domain.ErrInvalidRequest, len(req.ImageTypes), o.maxBatchSize)
	}
	return nil
}

// batch is the per-run state shared by the jobs of one request.
type batch struct {
	id             string
	organizationID string
	product        imagegen.Product
	sourceURL      string
	sourceID       string
	secondaryURL   string
	secondary      *genai.InlineImage
	secondaryDone  bool
	aspect         imagegen.AspectRatio
	size           imagegen.ImageSize
	emit           func(events.Event)
}

// whiteOutput is the white-background result dependent types build on.
type whiteOutput struct {
	image    genai.InlineImage
	recordID string
	url      string
}

// Run executes the batch and returns every job in request order. Generated
// bytes are dropped once uploaded, except the white-background image which is
// held until the dependent types have run. Only request validation errors are returned; generation and
// persistence failures are reported on the jobs and through events.
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]Job, error) {
	if err := o.Validate(req); err != nil {
		return nil, err
	}

	b := o.newBatch(req.BatchID, req.OrganizationID, req.Product, req.SourceImageURL, req.SourceImageID, req.AspectRatio, req.ImageSize, req.OnEvent)
	b.secondaryURL = strings.TrimSpace(req.SecondaryImageURL)
	log := o.logger.With().
		Str("batch_id", b.id).
		Str("organization_id", b.organizationID).
		Str("product_id", b.product.ID).
		Logger()

	jobs := make([]Job, len(req.ImageTypes))
	typeNames := make([]string, len(req.ImageTypes))
	for i, t := range req.ImageTypes {
		jobs[i] = newJob(o.newID(), t)
		typeNames[i] = string(t)
	}

	b.emit(events.Event{Type: events.TypeBatchStart, TotalJobs: len(jobs)})
	log.Info().Strs("image_types", typeNames).Msg("pipeline: batch started")

	record := domain.GenerationJob{
		ID:             b.id,
		OrganizationID: b.organizationID,
		ProductID:      b.product.ID,
		ImageTypes:     typeNames,
		Total:          len(jobs),
		Kind:           domain.JobKindBatch,
	}
	if err := contained("create generation job", func() error { return o.store.CreateJob(ctx, &record) }); err != nil {
		log.Error().Err(err).Msg("pipeline: create generation job failed")
		return o.abort(ctx, b, jobs, nil, "could not start generation: "+err.Error()), nil
	}

	source, err := o.client.URLToBase64(ctx, b.sourceURL)
	if err != nil {
		log.Error().Err(err).Msg("pipeline: source image fetch failed")
		return o.abort(ctx, b, jobs, &record, fmt.Sprintf("%s: %v", domain.ErrSourceUnavailable, err)), nil
	}

	var white *whiteOutput
	whiteIdx := -1
	for i, j := range jobs {
		if j.ImageType == imagegen.TypeWhiteBackground {
			whiteIdx = i
			break
		}
	}
	if whiteIdx >= 0 {
		done, image := o.runJob(ctx, b, jobs[whiteIdx], source, nil, imagegen.Seed(b.product.ID, imagegen.TypeWhiteBackground))
		jobs[whiteIdx] = done
		if done.Status == JobCompleted {
			white = &whiteOutput{
				image:    image,
				recordID: done.RecordID,
				url:      done.ImageURL,
			}
		}
	}

	for i, j := range jobs {
		if i == whiteIdx {
			continue
		}
		src := source
		var parent *whiteOutput
		if white != nil && imagegen.DependsOnWhiteBackground(j.ImageType) {
			src = white.image
			parent = white
		}
		jobs[i], _ = o.runJob(ctx, b, j, src, parent, imagegen.Seed(b.product.ID, j.ImageType))
	}

	return o.finish(ctx, b, jobs, &record), nil
}

func (o *Orchestrator) newBatch(id, org string, product imagegen.Product, sourceURL, sourceID string, aspect imagegen.AspectRatio, size imagegen.ImageSize, handler events.Handler) *batch {
	if strings.TrimSpace(id) == "" {
		id = o.newID()
	}
	b := &batch{
		id:             id,
		organizationID: org,
		product:        product,
		sourceURL:      strings.TrimSpace(sourceURL),
		sourceID:       sourceID,
		aspect:         aspect,
		size:           size,
	}
	b.emit = func(ev events.Event) {
		if handler == nil {
			return
		}
		ev.BatchID = b.id
		ev.OrganizationID = b.organizationID
		ev.ProductID = b.product.ID
		ev.Timestamp = o.now().UTC()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error().
					Str("batch_id", b.id).
					Str("event", string(ev.Type)).
					Msgf("pipeline: event handler panicked: %v", r)
			}
		}()
		handler(ev)
	}
	return b
}

// runJob generates, uploads and records one image. It never panics and never
// returns a job in a non-terminal state. The generated image is returned
// alongside a completed job and is not kept on the job itself.
func (o *Orchestrator) runJob(ctx context.Context, b *batch, job Job, src genai.InlineImage, parent *whiteOutput, seed int) (out Job, image genai.InlineImage) {
	log := o.logger.With().
		Str("batch_id", b.id).
		Str("job_id", job.ID).
		Str("image_type", string(job.ImageType)).
		Logger()
	started := o.now()
	recorded := false

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Error().Str("stack", string(debug.Stack())).Msgf("pipeline: job panicked: %v", r)
		out = job.fail(fmt.Sprintf("internal error: %v", r), o.since(started))
		image = genai.InlineImage{}
		if !recorded {
			out = o.record(ctx, b, out, log)
		}
		b.emit(events.Event{Type: events.TypeJobError, JobID: out.ID, ImageType: string(out.ImageType), Error: out.Error})
	}()

	prompt, cfg := imagegen.Build(job.ImageType, b.product)
	useMulti := job.ImageType == imagegen.TypeComposite && o.secondaryImage(ctx, b) != nil
	if useMulti {
		prompt = imagegen.BuildComposite(b.product)
	}
	job = job.start(prompt, seed, cfg.Temperature)
	if parent != nil {
		job = job.withParent(parent.recordID, parent.url)
	}
	b.emit(events.Event{Type: events.TypeJobStart, JobID: job.ID, ImageType: string(job.ImageType)})

	aspect := b.aspect
	if aspect == "" {
		aspect = cfg.DefaultAspectRatio
	}
	temperature := cfg.Temperature
	var res genai.Result
	if useMulti {
		res = o.client.GenerateMultiSource(ctx, genai.MultiRequest{
			Prompt:      prompt,
			Sources:     []genai.InlineImage{src, *b.secondary},
			AspectRatio: aspect,
			Temperature: &temperature,
			Seed:        &seed,
		})
	} else {
		res = o.client.Generate(ctx, genai.Request{
			Prompt:      prompt,
			Source:      src,
			AspectRatio: aspect,
			ImageSize:   b.size,
			Temperature: &temperature,
			Seed:        &seed,
		})
	}

	if !res.Success {
		log.Warn().Int("attempts", res.Attempts).Int("status", res.StatusCode).Msg("pipeline: generation failed: " + res.Error)
		job = job.fail(res.Error, o.since(started))
		recorded = true
		job = o.record(ctx, b, job, log)
		b.emit(events.Event{Type: events.TypeJobError, JobID: job.ID, ImageType: string(job.ImageType), Error: job.Error})
		return job, genai.InlineImage{}
	}

	path := storage.ObjectPath(b.organizationID, b.product.ID, string(job.ImageType), res.MimeType)
	url, err := o.uploader.Upload(ctx, res.ImageBase64, res.MimeType, path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("pipeline: upload failed")
		job = job.fail(fmt.Sprintf("upload generated image: %v", err), o.since(started))
		recorded = true
		job = o.record(ctx, b, job, log)
		b.emit(events.Event{Type: events.TypeJobError, JobID: job.ID, ImageType: string(job.ImageType), Error: job.Error})
		return job, genai.InlineImage{}
	}

	job = job.complete(url, o.since(started))
	recorded = true
	job = o.record(ctx, b, job, log)
	log.Info().Int64("duration_ms", job.DurationMS).Int("attempts", res.Attempts).Msg("pipeline: job completed")
	b.emit(events.Event{
		Type:      events.TypeJobComplete,
		JobID:     job.ID,
		ImageType: string(job.ImageType),
		ImageURL:  job.ImageURL,
		ImageID:   job.RecordID,
	})
	return job, genai.InlineImage{Base64: res.ImageBase64, MimeType: res.MimeType}
}

// record persists the job outcome. A persistence failure, panics included,
// leaves RecordID empty and does not change the job status.
func (o *Orchestrator) record(ctx context.Context, b *batch, job Job, log infra.Logger) Job {
	status := domain.ImageStatusCompleted
	if job.Status != JobCompleted {
		status = domain.ImageStatusFailed
	}
	img := domain.GeneratedImage{
		OrganizationID: b.organizationID,
		ProductID:      b.product.ID,
		JobID:          b.id,
		SourceImageID:  b.sourceID,
		SourceImageURL: b.sourceURL,
		ImageType:      string(job.ImageType),
		Status:         status,
		URL:            job.ImageURL,
		Prompt:         job.Prompt,
		Seed:           job.Seed,
		Temperature:    job.Temperature,
		DurationMS:     job.DurationMS,
		ReviewStatus:   domain.ReviewStatusPending,
		ErrorMessage:   job.Error,
	}
	if job.ParentImageID != "" {
		parent := job.ParentImageID
		img.ParentImageID = &parent
	}
	var id string
	err := contained("persist generated image", func() (err error) {
		id, err = o.store.CreateGeneratedImage(ctx, img)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("pipeline: persist generated image failed")
		return job
	}
	return job.withRecord(id)
}

// secondaryImage fetches the optional second source once per batch. A failed
// fetch falls back to single-source generation.
func (o *Orchestrator) secondaryImage(ctx context.Context, b *batch) *genai.InlineImage {
	if b.secondaryURL == "" {
		return nil
	}
	if !b.secondaryDone {
		b.secondaryDone = true
		img, err := o.client.URLToBase64(ctx, b.secondaryURL)
		if err != nil {
			o.logger.Warn().Err(err).Str("batch_id", b.id).Msg("pipeline: secondary image unavailable; using single source")
			return nil
		}
		b.secondary = &img
	}
	return b.secondary
}

// abort fails every job after a setup error and still closes the batch.
func (o *Orchestrator) abort(ctx context.Context, b *batch, jobs []Job, record *domain.GenerationJob, reason string) []Job {
	for i, j := range jobs {
		jobs[i] = j.fail(reason, 0)
		b.emit(events.Event{Type: events.TypeJobError, JobID: j.ID, ImageType: string(j.ImageType), Error: reason})
	}
	return o.finish(ctx, b, jobs, record)
}

// finish closes the batch record, tracks usage and emits batch-complete. Store
// and tracker failures are logged so the terminal event is always sent.
func (o *Orchestrator) finish(ctx context.Context, b *batch, jobs []Job, record *domain.GenerationJob) []Job {
	succeeded, failed := Tally(jobs)

	if record != nil {
		final := record.Finish(succeeded, failed, o.now().UTC())
		if err := contained("update generation job", func() error { return o.store.UpdateJob(ctx, final) }); err != nil {
			o.logger.Error().Err(err).Str("batch_id", b.id).Msg("pipeline: update generation job failed")
		}
		*record = final
	}
	if o.usage != nil {
		err := contained("track usage", func() error {
			o.usage.Track(ctx, b.organizationID, succeeded, failed)
			return nil
		})
		if err != nil {
			o.logger.Error().Err(err).Str("batch_id", b.id).Msg("pipeline: usage tracking failed")
		}
	}

	o.logger.Info().
		Str("batch_id", b.id).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("pipeline: batch complete")
	b.emit(events.Event{Type: events.TypeBatchComplete, SuccessCount: &succeeded, FailedCount: &failed})
	return jobs
}

func (o *Orchestrator) since(start time.Time) int64 {
	return o.now().Sub(start).Milliseconds()
}

// contained runs fn and turns a panic into an error naming the step.
func contained(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", step, r)
		}
	}()
	return fn()
}
