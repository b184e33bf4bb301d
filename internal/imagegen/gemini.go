package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"meal-image-service/internal/config"
	"meal-image-service/internal/utils"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// geminiRequest generateContent request body
type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

// geminiResponse the parts of a generateContent response we read
type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// GeminiClient calls the Gemini REST API through resty
type GeminiClient struct {
	client  *resty.Client
	apiKey  string
	model   string
	baseURL string
}

// NewGeminiClient builds the REST client from config
func NewGeminiClient(cfg *config.Config) *GeminiClient {
	return &GeminiClient{
		client:  utils.NewRestyClient(cfg),
		apiKey:  cfg.Gemini.APIKey,
		model:   cfg.Gemini.Model,
		baseURL: strings.TrimRight(cfg.Gemini.BaseURL, "/"),
	}
}

// Name provider identifier
func (g *GeminiClient) Name() string {
	return config.ProviderGemini
}

// Generate asks for text and image parts and returns the first inline image
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (*Image, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}},
		GenerationConfig: geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(body).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	var gr geminiResponse
	if err := sonic.Unmarshal(resp.Body(), &gr); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}

	return g.extract(&gr)
}

// extract decodes the first inline image and collects text parts
func (g *GeminiClient) extract(gr *geminiResponse) (*Image, error) {
	if len(gr.Candidates) == 0 {
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", gr.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("no candidates returned from model")
	}

	img := &Image{}
	for _, part := range gr.Candidates[0].Content.Parts {
		if part.Text != "" {
			img.Text = append(img.Text, part.Text)
			continue
		}
		if part.InlineData == nil || part.InlineData.Data == "" || img.Data != nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode inline image: %w", err)
		}
		img.Data = data
		img.MIMEType = part.InlineData.MIMEType
	}

	if img.Data == nil {
		if reason := gr.Candidates[0].FinishReason; reason != "" && reason != "STOP" {
			return nil, fmt.Errorf("%w (finish reason %s)", ErrNoImage, reason)
		}
		return nil, ErrNoImage
	}
	return img, nil
}
