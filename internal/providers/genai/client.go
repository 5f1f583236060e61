package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"plantshot/internal/imagegen"
	"plantshot/internal/infra"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash-image"

	// DefaultAttemptTimeout bounds a single upstream call.
	DefaultAttemptTimeout = 180 * time.Second
	// LargeAttemptTimeout applies to 4096px requests.
	LargeAttemptTimeout = 300 * time.Second
)

const systemInstruction = "You are a professional product photographer for a horticulture wholesaler. " +
	"Every image you produce must look like a real photograph taken in a studio or on location: " +
	"natural colours, accurate proportions, sharp focus on the plant, no illustrations, no text overlays, no watermarks. " +
	"When a source photo is provided, the plant, its pot and its proportions must stay faithful to that photo."

var safetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

const safetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger

	// MinInterval spaces consecutive upstream calls. Zero disables pacing.
	MinInterval time.Duration
	// Sleep waits between retries; tests replace it to observe the schedule.
	Sleep func(ctx context.Context, d time.Duration) error

	AttemptTimeout      time.Duration
	LargeAttemptTimeout time.Duration
	FetchTimeout        time.Duration
	MaxFetchBytes       int64
}

// Client talks to the Gemini generateContent endpoint for image output.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error

	attemptTimeout      time.Duration
	largeAttemptTimeout time.Duration
	fetchTimeout        time.Duration
	maxFetchBytes       int64
}

// InlineImage is a base64 encoded image with its MIME type.
type InlineImage struct {
	Base64   string
	MimeType string
}

// Request describes a single-source generation.
type Request struct {
	Prompt      string
	Source      InlineImage
	AspectRatio imagegen.AspectRatio
	ImageSize   imagegen.ImageSize
	Temperature *float64
	Seed        *int
}

// MultiRequest combines two or more source images into one output.
type MultiRequest struct {
	Prompt      string
	Sources     []InlineImage
	AspectRatio imagegen.AspectRatio
	Temperature *float64
	Seed        *int
}

// Result is the outcome of a generation. Expected failures are reported here
// rather than as Go errors.
type Result struct {
	Success     bool
	ImageBase64 string
	MimeType    string
	Error       string
	StatusCode  int
	Attempts    int
}

// NewClient constructs a Gemini client. A nil HTTP client gets a default one
// without an overall timeout; attempts are bounded by their own contexts.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse gemini base url: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	c := &Client{
		apiKey:              strings.TrimSpace(opts.APIKey),
		baseURL:             baseURL,
		model:               model,
		httpClient:          client,
		logger:              logger,
		limiter:             limiter,
		sleep:               sleep,
		attemptTimeout:      opts.AttemptTimeout,
		largeAttemptTimeout: opts.LargeAttemptTimeout,
		fetchTimeout:        opts.FetchTimeout,
		maxFetchBytes:       opts.MaxFetchBytes,
	}
	if c.attemptTimeout <= 0 {
		c.attemptTimeout = DefaultAttemptTimeout
	}
	if c.largeAttemptTimeout <= 0 {
		c.largeAttemptTimeout = LargeAttemptTimeout
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = DefaultFetchTimeout
	}
	if c.maxFetchBytes <= 0 {
		c.maxFetchBytes = MaxFetchBytes
	}
	return c, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type generationConfig struct {
	Temperature        *float64     `json:"temperature,omitempty"`
	Seed               *int         `json:"seed,omitempty"`
	ResponseModalities []string     `json:"responseModalities"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SafetySettings    []safetySetting  `json:"safetySettings"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateContentResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

func newPayload(prompt string, images []InlineImage, aspect imagegen.AspectRatio, size imagegen.ImageSize, temperature *float64, seed *int) generateContentRequest {
	parts := make([]part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, part{InlineData: &inlineData{MimeType: img.MimeType, Data: img.Base64}})
	}
	parts = append(parts, part{Text: prompt})

	cfg := generationConfig{
		Temperature:        temperature,
		Seed:               seed,
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if aspect != "" || size != 0 {
		cfg.ImageConfig = &imageConfig{AspectRatio: string(aspect), ImageSize: size.Token()}
	}

	safety := make([]safetySetting, 0, len(safetyCategories))
	for _, category := range safetyCategories {
		safety = append(safety, safetySetting{Category: category, Threshold: safetyThreshold})
	}

	return generateContentRequest{
		Contents:          []content{{Role: "user", Parts: parts}},
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		GenerationConfig:  cfg,
		SafetySettings:    safety,
	}
}

// attemptOutcome is the result of one HTTP round trip.
type attemptOutcome struct {
	result    Result
	retryable bool
}

func (c *Client) invoke(ctx context.Context, body []byte, timeout time.Duration) attemptOutcome {
	if err := c.limiter.Wait(ctx); err != nil {
		return attemptOutcome{result: Result{Error: fmt.Sprintf("wait for rate limiter: %v", err)}}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return attemptOutcome{result: Result{Error: fmt.Sprintf("create request: %v", err)}}
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil && isTimeout(attemptCtx, err) {
			return attemptOutcome{
				result:    Result{Error: fmt.Sprintf("gemini request timed out after %s", timeout)},
				retryable: true,
			}
		}
		return attemptOutcome{result: Result{Error: fmt.Sprintf("invoke gemini: %v", err)}}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == nil && isTimeout(attemptCtx, err) {
			return attemptOutcome{
				result:    Result{StatusCode: resp.StatusCode, Error: fmt.Sprintf("gemini response timed out after %s", timeout)},
				retryable: true,
			}
		}
		return attemptOutcome{result: Result{StatusCode: resp.StatusCode, Error: fmt.Sprintf("read gemini response: %v", err)}}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return attemptOutcome{
			result:    Result{StatusCode: resp.StatusCode, Error: describeHTTPError(resp.StatusCode, data)},
			retryable: isRetryableStatus(resp.StatusCode),
		}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return attemptOutcome{result: Result{StatusCode: resp.StatusCode, Error: fmt.Sprintf("decode gemini response: %v", err)}}
	}
	return attemptOutcome{result: extractImage(decoded, resp.StatusCode)}
}

func extractImage(resp generateContentResponse, status int) Result {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				mime := p.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				return Result{Success: true, ImageBase64: p.InlineData.Data, MimeType: mime, StatusCode: status}
			}
		}
	}

	msg := "no image data in gemini response"
	switch {
	case resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "":
		msg = fmt.Sprintf("%s: prompt blocked (%s)", msg, resp.PromptFeedback.BlockReason)
	case len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "":
		msg = fmt.Sprintf("%s: finish reason %s", msg, resp.Candidates[0].FinishReason)
	}
	return Result{StatusCode: status, Error: msg}
}

func describeHTTPError(status int, body []byte) string {
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Sprintf("gemini status %d: %s", status, apiErr.Error.Message)
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return fmt.Sprintf("gemini status %d: %s", status, text)
	}
	return fmt.Sprintf("gemini status %d", status)
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func isTimeout(attemptCtx context.Context, err error) bool {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
