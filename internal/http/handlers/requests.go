package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"plantshot/internal/domain"
	"plantshot/internal/imagegen"
)

const maxRequestBody = 1 << 20

type generateRequest struct {
	Product           imagegen.Product `json:"product"`
	SourceImageURL    string           `json:"source_image_url"`
	SourceImageID     string           `json:"source_image_id"`
	SecondaryImageURL string           `json:"secondary_image_url"`
	ImageTypes        []string         `json:"image_types"`
	AspectRatio       string           `json:"aspect_ratio"`
	ImageSize         int              `json:"image_size"`
}

type regenerateRequest struct {
	Product        imagegen.Product `json:"product"`
	ImageType      string           `json:"image_type"`
	SourceImageURL string           `json:"source_image_url"`
	SourceImageID  string           `json:"source_image_id"`
	ParentImageURL string           `json:"parent_image_url"`
	ParentImageID  string           `json:"parent_image_id"`
	Attempt        int              `json:"attempt"`
	AspectRatio    string           `json:"aspect_ratio"`
	ImageSize      int              `json:"image_size"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid payload: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

// routeScope reads the organization and product from the path.
func routeScope(r *http.Request) (string, string, error) {
	org := strings.TrimSpace(chi.URLParam(r, "org_id"))
	if _, err := uuid.Parse(org); err != nil {
		return "", "", fmt.Errorf("%w: org_id must be a uuid", domain.ErrInvalidRequest)
	}
	product := strings.TrimSpace(chi.URLParam(r, "product_id"))
	if product == "" {
		return "", "", fmt.Errorf("%w: product_id required", domain.ErrInvalidRequest)
	}
	return org, product, nil
}

func parseOutput(aspect string, size int) (imagegen.AspectRatio, imagegen.ImageSize, error) {
	ratio, err := imagegen.ParseAspectRatio(aspect)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	imageSize, err := imagegen.ParseImageSize(size)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return ratio, imageSize, nil
}

func parseTypes(raw []string) ([]imagegen.ImageType, error) {
	out := make([]imagegen.ImageType, 0, len(raw))
	for _, s := range raw {
		t, err := imagegen.ParseImageType(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
		}
		out = append(out, t)
	}
	return out, nil
}
