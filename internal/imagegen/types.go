package imagegen

import (
	"fmt"
	"strings"
)

// ImageType identifies one derivative image variant. Values are a wire contract
// shared with request validation and persisted records.
type ImageType string

const (
	TypeWhiteBackground ImageType = "white-background"
	TypeMeasuringTape   ImageType = "measuring-tape"
	TypeDetail          ImageType = "detail"
	TypeComposite       ImageType = "composite"
	TypeTray            ImageType = "tray"
	TypeLifestyle       ImageType = "lifestyle"
	TypeSeasonal        ImageType = "seasonal"
	TypeDanishCart      ImageType = "danish-cart"
)

// AllTypes lists the supported image types in their canonical order.
var AllTypes = []ImageType{
	TypeWhiteBackground,
	TypeMeasuringTape,
	TypeDetail,
	TypeComposite,
	TypeTray,
	TypeLifestyle,
	TypeSeasonal,
	TypeDanishCart,
}

// AspectRatio is one of the output ratios the generation API accepts.
type AspectRatio string

const (
	Aspect1x1  AspectRatio = "1:1"
	Aspect4x3  AspectRatio = "4:3"
	Aspect3x4  AspectRatio = "3:4"
	Aspect16x9 AspectRatio = "16:9"
	Aspect9x16 AspectRatio = "9:16"
)

// ImageSize is the requested output resolution in pixels on the long edge.
type ImageSize int

const (
	Size1024 ImageSize = 1024
	Size2048 ImageSize = 2048
	Size4096 ImageSize = 4096
)

// Token returns the resolution token understood by the generation API.
func (s ImageSize) Token() string {
	switch s {
	case Size1024:
		return "1K"
	case Size2048:
		return "2K"
	case Size4096:
		return "4K"
	default:
		return ""
	}
}

// Carrier describes how a product ships: pots per tray and trays per cart layer.
type Carrier struct {
	Type          string `json:"type"`
	PlantsPerTray int    `json:"plants_per_tray"`
	TraysPerLayer int    `json:"trays_per_layer"`
	Layers        int    `json:"layers"`
}

// Product carries the catalog attributes that shape a prompt.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	HeightCM      float64  `json:"height_cm"`
	PotDiameterCM float64  `json:"pot_diameter_cm"`
	Category      string   `json:"category"`
	Artificial    bool     `json:"artificial"`
	CanBloom      bool     `json:"can_bloom"`
	Carrier       *Carrier `json:"carrier,omitempty"`
}

// GenerationConfig is the per-type sampling configuration.
type GenerationConfig struct {
	Temperature        float64
	DefaultAspectRatio AspectRatio
}

// ParseImageType validates a raw image type string.
func ParseImageType(raw string) (ImageType, error) {
	t := ImageType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported image type %q", raw)
}

// ParseAspectRatio validates an aspect ratio. Empty input is allowed and
// returns an empty ratio so callers can fall back to the type default.
func ParseAspectRatio(raw string) (AspectRatio, error) {
	raw = strings.TrimSpace(raw)
	switch AspectRatio(raw) {
	case "":
		return "", nil
	case Aspect1x1, Aspect4x3, Aspect3x4, Aspect16x9, Aspect9x16:
		return AspectRatio(raw), nil
	default:
		return "", fmt.Errorf("unsupported aspect ratio %q", raw)
	}
}

// ParseImageSize validates a resolution. Zero means "provider default".
func ParseImageSize(v int) (ImageSize, error) {
	switch ImageSize(v) {
	case 0, Size1024, Size2048, Size4096:
		return ImageSize(v), nil
	default:
		return 0, fmt.Errorf("unsupported image size %d", v)
	}
}
