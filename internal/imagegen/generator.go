// Package imagegen requests food photos from external image models.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"meal-image-service/internal/config"
)

// ErrNoImage the provider answered without any image payload
var ErrNoImage = errors.New("no image data returned from model")

// Image a decoded image payload plus any text the model sent along
type Image struct {
	Data     []byte
	MIMEType string
	Text     []string
}

// Extension file extension matching the MIME type
func (i *Image) Extension() string {
	switch strings.ToLower(i.MIMEType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/png", "":
		return ".png"
	}
	// sniff when the provider reports something unexpected
	switch http.DetectContentType(i.Data) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Generator one image model backend
type Generator interface {
	// Generate requests a single image for prompt
	Generate(ctx context.Context, prompt string) (*Image, error)
	// Name provider identifier for logs and health
	Name() string
}

// NewGenerator builds the backend selected by cfg.Generator.Provider
func NewGenerator(ctx context.Context, cfg *config.Config) (Generator, error) {
	switch cfg.Generator.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg), nil
	case config.ProviderGeminiSDK:
		return NewGeminiSDKClient(ctx, cfg)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown image provider %q", cfg.Generator.Provider)
	}
}
