package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"plantshot/internal/imagegen"
)

const (
	retryInitialInterval = 5 * time.Second
	retryMaxInterval     = 30 * time.Second
	retryMultiplier      = 2
	maxRetries           = 3
)

// Generate sends one source image plus an instruction and returns the first
// image the model produces. 429, 500, 503 and attempt timeouts are retried.
func (c *Client) Generate(ctx context.Context, req Request) Result {
	payload := newPayload(req.Prompt, []InlineImage{req.Source}, req.AspectRatio, req.ImageSize, req.Temperature, req.Seed)
	return c.generate(ctx, payload, c.timeoutFor(req.ImageSize))
}

// GenerateMultiSource behaves like Generate but supplies every source image in
// the same request.
func (c *Client) GenerateMultiSource(ctx context.Context, req MultiRequest) Result {
	if len(req.Sources) < 2 {
		return Result{Error: fmt.Sprintf("multi-source generation needs at least 2 images, got %d", len(req.Sources))}
	}
	payload := newPayload(req.Prompt, req.Sources, req.AspectRatio, 0, req.Temperature, req.Seed)
	return c.generate(ctx, payload, c.attemptTimeout)
}

func (c *Client) timeoutFor(size imagegen.ImageSize) time.Duration {
	if size == imagegen.Size4096 {
		return c.largeAttemptTimeout
	}
	return c.attemptTimeout
}

func (c *Client) generate(ctx context.Context, payload generateContentRequest, timeout time.Duration) Result {
	if c.apiKey == "" {
		return Result{Error: "gemini api key is not configured"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal request: %v", err)}
	}

	schedule := newRetrySchedule()
	attempts := 0
	for {
		attempts++
		outcome := c.invoke(ctx, body, timeout)
		outcome.result.Attempts = attempts
		if outcome.result.Success || !outcome.retryable {
			if !outcome.result.Success {
				c.logger.Warn().
					Str("model", c.model).
					Int("attempt", attempts).
					Int("status", outcome.result.StatusCode).
					Msg("genai: generation failed: " + outcome.result.Error)
			}
			return outcome.result
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			c.logger.Warn().
				Str("model", c.model).
				Int("attempt", attempts).
				Int("status", outcome.result.StatusCode).
				Msg("genai: retries exhausted: " + outcome.result.Error)
			return outcome.result
		}

		c.logger.Info().
			Str("model", c.model).
			Int("attempt", attempts).
			Int("status", outcome.result.StatusCode).
			Dur("delay", delay).
			Msg("genai: retrying transient failure")

		if err := c.sleep(ctx, delay); err != nil {
			outcome.result.Error = fmt.Sprintf("%s (retry aborted: %v)", outcome.result.Error, err)
			return outcome.result
		}
	}
}

// newRetrySchedule yields 5s, 10s, 20s and then backoff.Stop.
func newRetrySchedule() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     retryInitialInterval,
		RandomizationFactor: 0,
		Multiplier:          retryMultiplier,
		MaxInterval:         retryMaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithMaxRetries(b, maxRetries)
}
