package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultFetchTimeout bounds downloading a source image.
	DefaultFetchTimeout = 30 * time.Second
	// MaxFetchBytes is the largest source image accepted.
	MaxFetchBytes int64 = 50 << 20
)

// URLToBase64 downloads an image and returns it base64 encoded with the MIME
// type reported by the server.
func (c *Client) URLToBase64(ctx context.Context, imageURL string) (InlineImage, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return InlineImage{}, fmt.Errorf("fetch image: empty url")
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return InlineImage{}, fmt.Errorf("fetch image: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return InlineImage{}, fmt.Errorf("fetch image: timed out after %s: %w", c.fetchTimeout, err)
		}
		return InlineImage{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return InlineImage{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	if resp.ContentLength > c.maxFetchBytes {
		return InlineImage{}, fmt.Errorf("fetch image: content length %d exceeds limit of %d bytes", resp.ContentLength, c.maxFetchBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxFetchBytes+1))
	if err != nil {
		return InlineImage{}, fmt.Errorf("fetch image: read body: %w", err)
	}
	if int64(len(data)) > c.maxFetchBytes {
		return InlineImage{}, fmt.Errorf("fetch image: body exceeds limit of %d bytes", c.maxFetchBytes)
	}
	if len(data) == 0 {
		return InlineImage{}, fmt.Errorf("fetch image: empty body")
	}

	return InlineImage{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MimeType: detectMimeType(resp.Header.Get("Content-Type"), data),
	}, nil
}

func detectMimeType(header string, data []byte) string {
	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mediaType, "image/") {
			return mediaType
		}
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return "image/jpeg"
}
