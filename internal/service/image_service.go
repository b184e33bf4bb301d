package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"meal-image-service/internal/config"
	"meal-image-service/internal/errors"
	"meal-image-service/internal/imagegen"
	"meal-image-service/internal/logger"
	"meal-image-service/internal/metrics"
	"meal-image-service/internal/store"
	"meal-image-service/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Composer draws the overlay onto a raw image file
type Composer interface {
	Compose(rawPath string, meal types.MealPlan) ([]byte, error)
}

// GenerateResult one stored generation
type GenerateResult struct {
	Name       string
	Meal       types.MealPlan
	Attempts   int
	Composited bool
	CreatedAt  time.Time
}

// ImageService image service interface
type ImageService interface {
	// GenerateImage requests a photo for meal, overlays it and stores the result
	GenerateImage(ctx context.Context, meal types.MealPlan) (*GenerateResult, error)
	// ListImages stored images, newest first
	ListImages() ([]store.Entry, error)
	// GetImage contents of one stored image
	GetImage(name string) ([]byte, store.Entry, error)
}

// imageService image service implementation
type imageService struct {
	retrier  *imagegen.Retrier
	composer Composer
	store    *store.Store
	keep     int
	tempDir  string
	now      func() time.Time
}

// NewImageService creates the image service
func NewImageService(cfg *config.Config, retrier *imagegen.Retrier, composer Composer, st *store.Store) ImageService {
	return &imageService{
		retrier:  retrier,
		composer: composer,
		store:    st,
		keep:     cfg.Storage.KeepFiles,
		tempDir:  cfg.Storage.TempDir,
		now:      time.Now,
	}
}

// GenerateImage runs the generation pipeline. A compositing failure still
// stores the raw photo so the caller receives an image.
func (s *imageService) GenerateImage(ctx context.Context, meal types.MealPlan) (*GenerateResult, error) {
	start := s.now()
	defer func() {
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	}()

	logger.Info("processing image generation request",
		zap.String("day", meal.Day),
		zap.String("breakfast", meal.Breakfast),
		zap.String("snack", meal.Snack),
		zap.String("lunch", meal.Lunch),
	)

	prompt := imagegen.BuildPrompt(meal, uuid.NewString(), start)
	res, err := s.retrier.Generate(ctx, prompt)
	if err != nil {
		metrics.Generations.WithLabelValues(metrics.OutcomeFailure).Inc()
		logger.Error("image generation failed",
			zap.Int("attempts", res.Attempts),
			zap.Error(err),
		)
		return nil, errors.NewImageGenerationError(res.Attempts, err)
	}

	data, composited := s.compose(res.Image, meal)

	name := store.NewName(meal.Day, start)
	if !composited {
		name = store.NewNameWithExt(meal.Day, res.Image.Extension(), start)
	}

	removed, err := s.store.Save(name, data, s.keep)
	if len(removed) > 0 {
		metrics.FilesRemoved.Add(float64(len(removed)))
		logger.Info("removed old images", zap.Strings("files", removed))
	}
	if err != nil {
		if _, statErr := os.Stat(filepath.Join(s.store.Dir(), name)); statErr != nil {
			metrics.Generations.WithLabelValues(metrics.OutcomeFailure).Inc()
			logger.Error("failed to store image", zap.String("name", name), zap.Error(err))
			return nil, errors.NewImageStorageError(err)
		}
		// the file is written, only cleanup of old files failed
		logger.Warn("cleanup of old images failed", zap.Error(err))
	}

	outcome := metrics.OutcomeSuccess
	if !composited {
		outcome = metrics.OutcomeFallback
	}
	metrics.Generations.WithLabelValues(outcome).Inc()

	logger.Info("image generated",
		zap.String("name", name),
		zap.Int("attempts", res.Attempts),
		zap.Bool("composited", composited),
	)

	return &GenerateResult{
		Name:       name,
		Meal:       meal,
		Attempts:   res.Attempts,
		Composited: composited,
		CreatedAt:  start,
	}, nil
}

// compose writes the raw bytes to a temp file, overlays it and returns the
// PNG. On any failure the raw bytes come back with composited false.
func (s *imageService) compose(img *imagegen.Image, meal types.MealPlan) ([]byte, bool) {
	rawPath, err := s.writeTemp(img)
	if err != nil {
		s.fallback(err)
		return img.Data, false
	}
	defer os.Remove(rawPath)

	data, err := s.composer.Compose(rawPath, meal)
	if err != nil {
		s.fallback(err)
		return img.Data, false
	}
	return data, true
}

func (s *imageService) fallback(err error) {
	metrics.CompositeFallbacks.Inc()
	logger.Warn("compositing failed, storing raw image", zap.Error(err))
}

func (s *imageService) writeTemp(img *imagegen.Image) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "meal-raw-*"+img.Extension())
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(img.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

// ListImages stored images, newest first
func (s *imageService) ListImages() ([]store.Entry, error) {
	entries, err := s.store.List()
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return entries, nil
}

// GetImage contents of one stored image; unknown names are a 404 naming the file
func (s *imageService) GetImage(name string) ([]byte, store.Entry, error) {
	data, entry, err := s.store.Read(name)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, store.Entry{}, errors.NewNotFoundError(fmt.Sprintf("image %s not found", name))
		}
		return nil, store.Entry{}, errors.NewInternalError(err)
	}
	return data, entry, nil
}
