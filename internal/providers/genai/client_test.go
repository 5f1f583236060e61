package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"plantshot/internal/imagegen"
)

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func imageResponse(data string) string {
	return `{"candidates":[{"content":{"parts":[{"text":"here you go"},{"inlineData":{"mimeType":"image/png","data":"` + data + `"}}]}}]}`
}

func newTestClient(t *testing.T, baseURL string, sleeps *recordedSleeps) *Client {
	t.Helper()
	opts := Options{APIKey: "test-key", BaseURL: baseURL, Model: "gemini-test"}
	if sleeps != nil {
		opts.Sleep = sleeps.sleep
	}
	client, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestGenerateSendsPayloadAndReturnsImage(t *testing.T) {
	var captured generateContentRequest
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte(imageResponse("aW1n")))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	res := client.Generate(context.Background(), Request{
		Prompt:      "Isolate the plant",
		Source:      InlineImage{Base64: "c3Jj", MimeType: "image/jpeg"},
		AspectRatio: imagegen.Aspect3x4,
		ImageSize:   imagegen.Size2048,
		Temperature: floatPtr(0.2),
		Seed:        intPtr(42),
	})

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.ImageBase64 != "aW1n" || res.MimeType != "image/png" {
		t.Fatalf("image = %q (%s)", res.ImageBase64, res.MimeType)
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", res.Attempts)
	}
	if gotPath != "/models/gemini-test:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("key = %q", gotKey)
	}

	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected contents: %+v", captured.Contents)
	}
	parts := captured.Contents[0].Parts
	if parts[0].InlineData == nil || parts[0].InlineData.Data != "c3Jj" || parts[0].InlineData.MimeType != "image/jpeg" {
		t.Fatalf("first part should be the source image: %+v", parts[0])
	}
	if parts[1].Text != "Isolate the plant" {
		t.Fatalf("second part text = %q", parts[1].Text)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text == "" {
		t.Fatalf("system instruction missing")
	}
	if len(captured.SafetySettings) != len(safetyCategories) {
		t.Fatalf("safety settings = %d, want %d", len(captured.SafetySettings), len(safetyCategories))
	}
	for _, s := range captured.SafetySettings {
		if s.Threshold != safetyThreshold {
			t.Fatalf("threshold for %s = %s", s.Category, s.Threshold)
		}
	}
	cfg := captured.GenerationConfig
	if cfg.Temperature == nil || *cfg.Temperature != 0.2 {
		t.Fatalf("temperature = %v", cfg.Temperature)
	}
	if cfg.Seed == nil || *cfg.Seed != 42 {
		t.Fatalf("seed = %v", cfg.Seed)
	}
	if cfg.ImageConfig == nil || cfg.ImageConfig.AspectRatio != "3:4" || cfg.ImageConfig.ImageSize != "2K" {
		t.Fatalf("image config = %+v", cfg.ImageConfig)
	}
	if !reflect.DeepEqual(cfg.ResponseModalities, []string{"TEXT", "IMAGE"}) {
		t.Fatalf("modalities = %v", cfg.ResponseModalities)
	}
}

func TestGenerateRetriesTransientStatusesWithBackoff(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded"}}`))
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	client := newTestClient(t, srv.URL, sleeps)
	res := client.Generate(context.Background(), Request{Prompt: "p", Source: InlineImage{Base64: "eA==", MimeType: "image/png"}})

	if res.Success {
		t.Fatalf("expected failure")
	}
	if calls != 4 || res.Attempts != 4 {
		t.Fatalf("calls = %d attempts = %d, want 4", calls, res.Attempts)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if !reflect.DeepEqual(sleeps.delays, want) {
		t.Fatalf("delays = %v, want %v", sleeps.delays, want)
	}
	if res.StatusCode != http.StatusServiceUnavailable || !strings.Contains(res.Error, "overloaded") {
		t.Fatalf("result = %+v", res)
	}
}

func TestGenerateRecoversAfterTransientFailure(t *testing.T) {
	statuses := []int{http.StatusTooManyRequests, http.StatusInternalServerError}
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() { calls++ }()
		if calls < len(statuses) {
			w.WriteHeader(statuses[calls])
			return
		}
		_, _ = w.Write([]byte(imageResponse("b2s=")))
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	client := newTestClient(t, srv.URL, sleeps)
	res := client.Generate(context.Background(), Request{Prompt: "p", Source: InlineImage{Base64: "eA==", MimeType: "image/png"}})

	if !res.Success || res.Attempts != 3 {
		t.Fatalf("result = %+v", res)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if !reflect.DeepEqual(sleeps.delays, want) {
		t.Fatalf("delays = %v, want %v", sleeps.delays, want)
	}
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad prompt"))
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	client := newTestClient(t, srv.URL, sleeps)
	res := client.Generate(context.Background(), Request{Prompt: "p", Source: InlineImage{Base64: "eA==", MimeType: "image/png"}})

	if res.Success || calls != 1 || len(sleeps.delays) != 0 {
		t.Fatalf("calls = %d delays = %v result = %+v", calls, sleeps.delays, res)
	}
	if res.StatusCode != http.StatusBadRequest || res.Error != "gemini status 400: bad prompt" {
		t.Fatalf("result = %+v", res)
	}
}

func TestGenerateFailsWithoutImagePart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"I cannot"}]},"finishReason":"SAFETY"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &recordedSleeps{})
	res := client.Generate(context.Background(), Request{Prompt: "p", Source: InlineImage{Base64: "eA==", MimeType: "image/png"}})

	if res.Success {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(res.Error, "no image data") || !strings.Contains(res.Error, "SAFETY") {
		t.Fatalf("error = %q", res.Error)
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", res.Attempts)
	}
}

func TestGenerateRetriesAttemptTimeout(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(imageResponse("b2s=")))
	}))
	defer srv.Close()

	sleeps := &recordedSleeps{}
	client, err := NewClient(Options{
		APIKey:         "k",
		BaseURL:        srv.URL,
		Sleep:          sleeps.sleep,
		AttemptTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	res := client.Generate(context.Background(), Request{Prompt: "p", Source: InlineImage{Base64: "eA==", MimeType: "image/png"}})
	if !res.Success || res.Attempts != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(sleeps.delays) != 1 || sleeps.delays[0] != 5*time.Second {
		t.Fatalf("delays = %v", sleeps.delays)
	}
}

func TestGenerateWithoutAPIKey(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	res := client.Generate(context.Background(), Request{Prompt: "p"})
	if res.Success || res.Error == "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestTimeoutForLargeImages(t *testing.T) {
	client := newTestClient(t, "http://example.invalid", nil)
	if got := client.timeoutFor(imagegen.Size4096); got != LargeAttemptTimeout {
		t.Fatalf("4096 timeout = %s", got)
	}
	if got := client.timeoutFor(imagegen.Size2048); got != DefaultAttemptTimeout {
		t.Fatalf("2048 timeout = %s", got)
	}
}

func TestGenerateMultiSourceSendsEverySource(t *testing.T) {
	var captured generateContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(imageResponse("Y29tcA==")))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	res := client.GenerateMultiSource(context.Background(), MultiRequest{
		Prompt: "combine",
		Sources: []InlineImage{
			{Base64: "YQ==", MimeType: "image/png"},
			{Base64: "Yg==", MimeType: "image/jpeg"},
		},
		AspectRatio: imagegen.Aspect1x1,
	})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	parts := captured.Contents[0].Parts
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	if parts[0].InlineData.Data != "YQ==" || parts[1].InlineData.Data != "Yg==" || parts[2].Text != "combine" {
		t.Fatalf("parts = %+v", parts)
	}
	if captured.GenerationConfig.ImageConfig == nil || captured.GenerationConfig.ImageConfig.ImageSize != "" {
		t.Fatalf("image config = %+v", captured.GenerationConfig.ImageConfig)
	}
}

func TestGenerateMultiSourceRequiresTwoSources(t *testing.T) {
	client := newTestClient(t, "http://example.invalid", nil)
	res := client.GenerateMultiSource(context.Background(), MultiRequest{Prompt: "p", Sources: []InlineImage{{Base64: "YQ=="}}})
	if res.Success || !strings.Contains(res.Error, "at least 2") {
		t.Fatalf("result = %+v", res)
	}
}

func TestURLToBase64(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	img, err := client.URLToBase64(context.Background(), srv.URL+"/photo.png")
	if err != nil {
		t.Fatalf("URLToBase64: %v", err)
	}
	if img.MimeType != "image/png" {
		t.Fatalf("mime = %q", img.MimeType)
	}
	if img.Base64 != base64.StdEncoding.EncodeToString(payload) {
		t.Fatalf("base64 mismatch")
	}
}

func TestURLToBase64RejectsOversizedImages(t *testing.T) {
	tests := []struct {
		name    string
		chunked bool
		want    string
	}{
		{name: "declared length", chunked: false, want: "content length"},
		{name: "streamed body", chunked: true, want: "body exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/jpeg")
				if tt.chunked {
					_, _ = w.Write([]byte("0123456789"))
					w.(http.Flusher).Flush()
					_, _ = w.Write([]byte("0123456789"))
					return
				}
				_, _ = w.Write([]byte(strings.Repeat("x", 32)))
			}))
			defer srv.Close()

			client, err := NewClient(Options{APIKey: "k", MaxFetchBytes: 16})
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			_, err = client.URLToBase64(context.Background(), srv.URL)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestURLToBase64ReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	if _, err := client.URLToBase64(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryScheduleCapsAtThirtySeconds(t *testing.T) {
	schedule := newRetrySchedule()
	var got []time.Duration
	for i := 0; i < 5; i++ {
		got = append(got, schedule.NextBackOff())
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, -1, -1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("schedule = %v, want %v", got, want)
	}
}
