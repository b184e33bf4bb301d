package imagegen

import (
	"context"
	"fmt"
	"time"

	"meal-image-service/internal/logger"
	"meal-image-service/internal/metrics"

	"go.uber.org/zap"
)

// Result outcome of a retried generation
type Result struct {
	Image    *Image
	Attempts int
}

// Retrier calls a Generator up to MaxAttempts times with a constant pause.
// Every failure is retried the same way; the last error is returned.
type Retrier struct {
	Generator      Generator
	MaxAttempts    int
	Delay          time.Duration
	AttemptTimeout time.Duration // zero means no per-attempt limit
}

// NewRetrier wraps gen with the given limits
func NewRetrier(gen Generator, maxAttempts int, delay, attemptTimeout time.Duration) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{
		Generator:      gen,
		MaxAttempts:    maxAttempts,
		Delay:          delay,
		AttemptTimeout: attemptTimeout,
	}
}

// Generate runs the attempts. The returned Result is non-nil even on error so
// callers can report how many attempts were made.
func (r *Retrier) Generate(ctx context.Context, prompt string) (*Result, error) {
	result := &Result{}
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		result.Attempts = attempt
		metrics.GenerationAttempts.WithLabelValues(r.Generator.Name()).Inc()

		img, err := r.once(ctx, prompt)
		if err == nil {
			result.Image = img
			for _, text := range img.Text {
				logger.Info("model text response",
					zap.String("provider", r.Generator.Name()),
					zap.String("text", text),
				)
			}
			return result, nil
		}
		lastErr = err

		logger.Warn("image generation attempt failed",
			zap.String("provider", r.Generator.Name()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.MaxAttempts),
			zap.Error(err),
		)

		// the caller gave up, no point in another attempt
		if ctx.Err() != nil {
			return result, fmt.Errorf("image generation canceled: %w", ctx.Err())
		}

		if attempt < r.MaxAttempts {
			if err := sleep(ctx, r.Delay); err != nil {
				return result, fmt.Errorf("image generation canceled: %w", err)
			}
		}
	}

	return result, lastErr
}

func (r *Retrier) once(ctx context.Context, prompt string) (*Image, error) {
	if r.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.AttemptTimeout)
		defer cancel()
	}

	img, err := r.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if img == nil || len(img.Data) == 0 {
		return nil, ErrNoImage
	}
	return img, nil
}

// sleep waits d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
