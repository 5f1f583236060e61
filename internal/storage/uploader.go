// Package storage writes generated images to durable object storage and
// returns their public URLs.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Uploader stores a base64 encoded image at path. Implementations reject paths
// that already exist with domain.ErrObjectExists.
type Uploader interface {
	Upload(ctx context.Context, data64, mimeType, objectPath string) (string, error)
}

// ObjectPath returns a unique key for a generated image.
func ObjectPath(organizationID, productID, imageType, mimeType string) string {
	return path.Join(
		"organizations", safeSegment(organizationID),
		"products", safeSegment(productID),
		safeSegment(imageType),
		uuid.NewString()+ExtensionFor(mimeType),
	)
}

// ExtensionFor maps an image MIME type to a file extension.
func ExtensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

func safeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}

func decodePayload(data64 string) ([]byte, error) {
	data64 = strings.TrimSpace(data64)
	if data64 == "" {
		return nil, errors.New("storage: empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(data64)
	if err != nil {
		return nil, fmt.Errorf("storage: decode payload: %w", err)
	}
	return data, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
