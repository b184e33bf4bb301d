package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"meal-image-service/internal/config"
	"meal-image-service/internal/types"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\nfake-image-bytes")

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Gemini.APIKey = "test-key"
	cfg.Gemini.BaseURL = baseURL
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.BaseURL = baseURL + "/v1"
	return cfg
}

func geminiBody(parts ...map[string]any) string {
	b, _ := sonic.MarshalString(map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"role": "model", "parts": parts},
				"finishReason": "STOP",
			},
		},
	})
	return b
}

func TestBuildPrompt(t *testing.T) {
	meal := types.MealPlan{Day: "Friday", Breakfast: "Idli", Snack: "Chai", Lunch: "Dosa"}
	now := time.Date(2026, 3, 6, 9, 30, 0, 0, time.UTC)

	p := BuildPrompt(meal, "seed-123", now)

	for _, want := range []string{"Friday", "Idli", "Chai", "Dosa", "seed-123", "2026-03-06T09:30:00Z", "upper left corner"} {
		assert.Contains(t, p, want)
	}
	assert.NotEqual(t, p, BuildPrompt(meal, "seed-456", now))
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".png", (&Image{MIMEType: "image/png"}).Extension())
	assert.Equal(t, ".jpg", (&Image{MIMEType: "image/jpeg"}).Extension())
	assert.Equal(t, ".webp", (&Image{MIMEType: "image/webp"}).Extension())
	assert.Equal(t, ".png", (&Image{}).Extension())
	assert.Equal(t, ".jpg", (&Image{MIMEType: "application/octet-stream", Data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF")}).Extension())
}

func TestNewGenerator(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")

	for provider, want := range map[string]string{
		config.ProviderGemini:    config.ProviderGemini,
		config.ProviderGeminiSDK: config.ProviderGeminiSDK,
		config.ProviderOpenAI:    config.ProviderOpenAI,
	} {
		cfg.Generator.Provider = provider
		gen, err := NewGenerator(context.Background(), cfg)
		require.NoError(t, err, provider)
		assert.Equal(t, want, gen.Name())
	}

	cfg.Generator.Provider = "nope"
	_, err := NewGenerator(context.Background(), cfg)
	assert.Error(t, err)
}

func TestGeminiClientGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, geminiBody(
			map[string]any{"text": "Here is your meal photo."},
			map[string]any{"inlineData": map[string]any{
				"mimeType": "image/png",
				"data":     base64.StdEncoding.EncodeToString(pngMagic),
			}},
		))
	}))
	defer srv.Close()

	g := NewGeminiClient(testConfig(srv.URL))
	img, err := g.Generate(context.Background(), "a thali")
	require.NoError(t, err)

	assert.Equal(t, pngMagic, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, []string{"Here is your meal photo."}, img.Text)

	assert.Equal(t, "/v1beta/models/"+config.Default().Gemini.Model+":generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	gc := gotBody["generationConfig"].(map[string]any)
	assert.Equal(t, []any{"TEXT", "IMAGE"}, gc["responseModalities"])
}

func TestGeminiClientNoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, geminiBody(map[string]any{"text": "I cannot draw that."}))
	}))
	defer srv.Close()

	_, err := NewGeminiClient(testConfig(srv.URL)).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestGeminiClientBlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	_, err := NewGeminiClient(testConfig(srv.URL)).Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGeminiClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"quota"}}`)
	}))
	defer srv.Close()

	_, err := NewGeminiClient(testConfig(srv.URL)).Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGeminiSDKClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, geminiBody(
			map[string]any{"text": "caption"},
			map[string]any{"inlineData": map[string]any{
				"mimeType": "image/png",
				"data":     base64.StdEncoding.EncodeToString(pngMagic),
			}},
		))
	}))
	defer srv.Close()

	g, err := NewGeminiSDKClient(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	img, err := g.Generate(context.Background(), "a thali")
	require.NoError(t, err)
	assert.Equal(t, pngMagic, img.Data)
	assert.Equal(t, []string{"caption"}, img.Text)
}

func TestGeminiSDKClientRequiresKey(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Gemini.APIKey = ""

	_, err := NewGeminiSDKClient(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpenAIClientGenerate(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created":1,"data":[{"b64_json":"`+
			base64.StdEncoding.EncodeToString(pngMagic)+`","revised_prompt":"a bright thali"}]}`)
	}))
	defer srv.Close()

	o := NewOpenAIClient(testConfig(srv.URL))
	img, err := o.Generate(context.Background(), "a thali")
	require.NoError(t, err)

	assert.Equal(t, "/v1/images/generations", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, pngMagic, img.Data)
	assert.Equal(t, []string{"a bright thali"}, img.Text)
}

func TestOpenAIClientEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created":1,"data":[]}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(testConfig(srv.URL)).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoImage)
}

// fakeGenerator fails the first failures calls
type fakeGenerator struct {
	failures int
	calls    atomic.Int32
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (*Image, error) {
	n := int(f.calls.Add(1))
	if n <= f.failures {
		return nil, errors.New("upstream unavailable")
	}
	return &Image{Data: pngMagic, MIMEType: "image/png", Text: []string{"ok"}}, nil
}

func TestRetrierSucceedsAfterFailures(t *testing.T) {
	gen := &fakeGenerator{failures: 2}
	r := NewRetrier(gen, 3, time.Millisecond, 0)

	res, err := r.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, pngMagic, res.Image.Data)
	assert.EqualValues(t, 3, gen.calls.Load())
}

func TestRetrierGivesUpAfterMaxAttempts(t *testing.T) {
	gen := &fakeGenerator{failures: 100}
	r := NewRetrier(gen, 3, time.Millisecond, 0)

	res, err := r.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
	assert.Equal(t, 3, res.Attempts)
	assert.Nil(t, res.Image)
	assert.EqualValues(t, 3, gen.calls.Load(), "never more than three calls")
}

func TestRetrierWaitsBetweenAttempts(t *testing.T) {
	gen := &fakeGenerator{failures: 2}
	r := NewRetrier(gen, 3, 20*time.Millisecond, 0)

	start := time.Now()
	_, err := r.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRetrierStopsOnCancel(t *testing.T) {
	gen := &fakeGenerator{failures: 100}
	r := NewRetrier(gen, 3, time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := r.Generate(ctx, "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Attempts)
}

// slowGenerator blocks until its context ends
type slowGenerator struct{ calls atomic.Int32 }

func (s *slowGenerator) Name() string { return "slow" }

func (s *slowGenerator) Generate(ctx context.Context, prompt string) (*Image, error) {
	s.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRetrierAttemptTimeout(t *testing.T) {
	gen := &slowGenerator{}
	r := NewRetrier(gen, 2, time.Millisecond, 10*time.Millisecond)

	res, err := r.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, res.Attempts)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestRetrierTreatsEmptyImageAsFailure(t *testing.T) {
	r := NewRetrier(emptyGenerator{}, 2, 0, 0)

	res, err := r.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, 2, res.Attempts)
}

type emptyGenerator struct{}

func (emptyGenerator) Name() string { return "empty" }

func (emptyGenerator) Generate(context.Context, string) (*Image, error) {
	return &Image{}, nil
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Second), context.Canceled)
}
