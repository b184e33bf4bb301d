package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"

	"meal-image-service/internal/config"
	"meal-image-service/internal/utils"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient DALL-E style image generation
type OpenAIClient struct {
	client *openai.Client
	model  string
	size   string
}

// NewOpenAIClient builds the client from config
func NewOpenAIClient(cfg *config.Config) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		oc.BaseURL = cfg.OpenAI.BaseURL
	}
	oc.HTTPClient = utils.NewHTTPClient(cfg)

	size := cfg.OpenAI.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.OpenAI.Model,
		size:   size,
	}
}

// Name provider identifier
func (o *OpenAIClient) Name() string {
	return config.ProviderOpenAI
}

// Generate requests one base64 encoded PNG
func (o *OpenAIClient) Generate(ctx context.Context, prompt string) (*Image, error) {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          o.model,
		N:              1,
		Size:           o.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	for _, d := range resp.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		img := &Image{Data: data, MIMEType: "image/png"}
		if d.RevisedPrompt != "" {
			img.Text = append(img.Text, d.RevisedPrompt)
		}
		return img, nil
	}

	return nil, ErrNoImage
}
