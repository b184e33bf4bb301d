package imagegen

import (
	"context"
	"errors"
	"fmt"

	"meal-image-service/internal/config"
	"meal-image-service/internal/utils"

	"google.golang.org/genai"
)

// GeminiSDKClient calls Gemini through the official Go SDK
type GeminiSDKClient struct {
	client *genai.Client
	model  string
}

// NewGeminiSDKClient creates the SDK client; it does not contact the API
func NewGeminiSDKClient(ctx context.Context, cfg *config.Config) (*GeminiSDKClient, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.Gemini.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: utils.NewHTTPClient(cfg),
	}
	if cfg.Gemini.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Gemini.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiSDKClient{client: client, model: cfg.Gemini.Model}, nil
}

// Name provider identifier
func (g *GeminiSDKClient) Name() string {
	return config.ProviderGeminiSDK
}

// Generate asks for text and image parts and returns the first inline image
func (g *GeminiSDKClient) Generate(ctx context.Context, prompt string) (*Image, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if res == nil || len(res.Candidates) == 0 || res.Candidates[0] == nil || res.Candidates[0].Content == nil {
		return nil, errors.New("no candidates returned from model")
	}

	img := &Image{}
	for _, part := range res.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			img.Text = append(img.Text, part.Text)
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && img.Data == nil {
			img.Data = part.InlineData.Data
			img.MIMEType = part.InlineData.MIMEType
		}
	}

	if img.Data == nil {
		return nil, ErrNoImage
	}
	return img, nil
}
