package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"plantshot/internal/domain"
	"plantshot/internal/events"
	"plantshot/internal/imagegen"
	"plantshot/internal/providers/genai"
)

const (
	testProductID = "P-100"
	testOrgID     = "9a4e0a52-5f0c-4f79-a0a3-0f7c2f1f8a10"
	sourceURL     = "https://cdn.example.com/source.jpg"
)

type clientCall struct {
	imageType imagegen.ImageType
	multi     bool
	req       genai.Request
	multiReq  genai.MultiRequest
}

// fakeClient resolves the image type of each call from its seed.
type fakeClient struct {
	mu        sync.Mutex
	seedTypes map[int]imagegen.ImageType
	failures  map[imagegen.ImageType]string
	panicOn   imagegen.ImageType
	fetchErr  map[string]error
	fetched   []string
	calls     []clientCall
}

func newFakeClient(productID string) *fakeClient {
	seeds := make(map[int]imagegen.ImageType)
	for _, t := range imagegen.AllTypes {
		seeds[imagegen.Seed(productID, t)] = t
	}
	return &fakeClient{
		seedTypes: seeds,
		failures:  map[imagegen.ImageType]string{},
		fetchErr:  map[string]error{},
	}
}

func (f *fakeClient) result(t imagegen.ImageType) genai.Result {
	if t == f.panicOn && t != "" {
		panic(fmt.Sprintf("unexpected response shape for %s", t))
	}
	if msg, ok := f.failures[t]; ok {
		return genai.Result{Error: msg, StatusCode: 400, Attempts: 1}
	}
	return genai.Result{Success: true, ImageBase64: "out-" + string(t), MimeType: "image/png", Attempts: 1}
}

func (f *fakeClient) Generate(_ context.Context, req genai.Request) genai.Result {
	f.mu.Lock()
	t := f.seedTypes[*req.Seed]
	f.calls = append(f.calls, clientCall{imageType: t, req: req})
	f.mu.Unlock()
	return f.result(t)
}

func (f *fakeClient) GenerateMultiSource(_ context.Context, req genai.MultiRequest) genai.Result {
	f.mu.Lock()
	t := f.seedTypes[*req.Seed]
	f.calls = append(f.calls, clientCall{imageType: t, multi: true, multiReq: req})
	f.mu.Unlock()
	return f.result(t)
}

func (f *fakeClient) URLToBase64(_ context.Context, url string) (genai.InlineImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if err := f.fetchErr[url]; err != nil {
		return genai.InlineImage{}, err
	}
	return genai.InlineImage{Base64: "fetched:" + url, MimeType: "image/jpeg"}, nil
}

func (f *fakeClient) call(t imagegen.ImageType) (clientCall, bool) {
	for _, c := range f.calls {
		if c.imageType == t {
			return c, true
		}
	}
	return clientCall{}, false
}

type memStore struct {
	mu        sync.Mutex
	createErr error
	imageErr  error
	panicOn   imagegen.ImageType
	active    bool
	jobs      []domain.GenerationJob
	updates   []domain.GenerationJob
	images    []domain.GeneratedImage
}

func (s *memStore) CreateJob(_ context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	job.Status = domain.JobStatusProcessing
	now := time.Now()
	job.StartedAt = &now
	s.jobs = append(s.jobs, *job)
	return nil
}

func (s *memStore) UpdateJob(_ context.Context, job domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, job)
	return nil
}

func (s *memStore) CreateGeneratedImage(_ context.Context, img domain.GeneratedImage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.imageErr != nil {
		return "", s.imageErr
	}
	if s.panicOn != "" && img.ImageType == string(s.panicOn) {
		panic("connection pool closed")
	}
	s.images = append(s.images, img)
	return fmt.Sprintf("img-%d", len(s.images)), nil
}

func (s *memStore) HasActiveJob(context.Context, string) (bool, error) {
	return s.active, nil
}

func (s *memStore) image(t imagegen.ImageType) (domain.GeneratedImage, bool) {
	for _, img := range s.images {
		if img.ImageType == string(t) {
			return img, true
		}
	}
	return domain.GeneratedImage{}, false
}

type fakeUploader struct {
	err   error
	paths []string
}

func (u *fakeUploader) Upload(_ context.Context, data64, mimeType, objectPath string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if data64 == "" {
		return "", errors.New("empty payload")
	}
	u.paths = append(u.paths, objectPath)
	return "https://cdn.example.com/" + objectPath, nil
}

type trackCall struct {
	org               string
	succeeded, failed int
}

type fakeTracker struct {
	calls []trackCall
}

func (t *fakeTracker) Track(_ context.Context, org string, succeeded, failed int) {
	t.calls = append(t.calls, trackCall{org: org, succeeded: succeeded, failed: failed})
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []events.Type {
	out := make([]events.Type, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func (l *eventLog) last() events.Event {
	return l.events[len(l.events)-1]
}

type fixture struct {
	client   *fakeClient
	store    *memStore
	uploader *fakeUploader
	tracker  *fakeTracker
	events   *eventLog
	orch     *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		client:   newFakeClient(testProductID),
		store:    &memStore{},
		uploader: &fakeUploader{},
		tracker:  &fakeTracker{},
		events:   &eventLog{},
	}
	f.orch = NewOrchestrator(Deps{
		Client:       f.client,
		Store:        f.store,
		Uploader:     f.uploader,
		Usage:        f.tracker,
		MaxBatchSize: 8,
	})
	return f
}

func (f *fixture) request(types ...imagegen.ImageType) Request {
	return Request{
		OrganizationID: testOrgID,
		Product:        imagegen.Product{ID: testProductID, Name: "Monstera", HeightCM: 100, PotDiameterCM: 17},
		SourceImageURL: sourceURL,
		SourceImageID:  "src-1",
		ImageTypes:     types,
		OnEvent:        f.events.handle,
	}
}
