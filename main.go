package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"meal-image-service/internal/apiserver"
	"meal-image-service/internal/compositor"
	"meal-image-service/internal/config"
	"meal-image-service/internal/imagegen"
	"meal-image-service/internal/logger"
	mw "meal-image-service/internal/middleware"
	"meal-image-service/internal/service"
	"meal-image-service/internal/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cmd := &cli.Command{
		Name:   "meal-image-service",
		Usage:  "Generate branded daily meal photos over HTTP",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: serve,
			},
			{
				Name:  "cleanup",
				Usage: "Delete all but the newest generated images and exit",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep",
						Usage: "number of images to keep (defaults to storage.keep_files)",
					},
				},
				Action: cleanup,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// App application instance
type App struct {
	config  *config.Config
	server  *echo.Echo
	limiter *mw.RateLimiter
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func serve(ctx context.Context, _ *cli.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	return app.Run(ctx)
}

func cleanup(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	keep := cfg.Storage.KeepFiles
	if cmd.IsSet("keep") {
		keep = int(cmd.Int("keep"))
	}
	if keep < 0 {
		return fmt.Errorf("keep must not be negative, got %d", keep)
	}

	st, err := store.New(cfg.Storage.OutputDir)
	if err != nil {
		return err
	}

	removed, err := st.Cleanup(keep)
	logger.Info("cleanup finished",
		zap.String("output_dir", st.Dir()),
		zap.Int("keep", keep),
		zap.Strings("removed", removed),
	)
	return err
}

// newApp wires generator, compositor, store and routes
func newApp(ctx context.Context, cfg *config.Config) (*App, error) {
	gen, err := imagegen.NewGenerator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create image generator: %w", err)
	}
	retrier := imagegen.NewRetrier(gen, cfg.Generator.MaxAttempts, cfg.Generator.RetryDelay, cfg.Generator.RequestTimeout)

	comp, err := compositor.New(cfg.Compositor)
	if err != nil {
		return nil, err
	}
	if !comp.LogoPresent() {
		logger.Warn("logo file not found, overlay uses placeholder",
			zap.String("logo_path", comp.LogoPath()),
			zap.Bool("placeholder", cfg.Compositor.Placeholder),
		)
	}

	st, err := store.New(cfg.Storage.OutputDir)
	if err != nil {
		return nil, err
	}

	svc := service.NewImageService(cfg, retrier, comp, st)

	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	var limiter *mw.RateLimiter
	if cfg.Security.RateLimitEnabled {
		limiter = mw.NewRateLimiter(cfg.Security.RateLimitRPS)
	}

	apiserver.RegisterRoutes(e, apiserver.Deps{
		Config:   cfg,
		Service:  svc,
		Overlay:  comp,
		Provider: gen.Name(),
		Limiter:  limiter,
	})

	logger.Info("application configured",
		zap.String("provider", gen.Name()),
		zap.String("environment", cfg.Server.Environment),
		zap.String("output_dir", st.Dir()),
		zap.Int("keep_files", cfg.Storage.KeepFiles),
		zap.Int("max_attempts", cfg.Generator.MaxAttempts),
		zap.Duration("retry_delay", cfg.Generator.RetryDelay),
		zap.Bool("rate_limit", limiter != nil),
		zap.Bool("bearer_auth", cfg.Security.BearerToken != ""),
	)

	return &App{
		config:  cfg,
		server:  e,
		limiter: limiter,
	}, nil
}

// Run serves until ctx is canceled, then shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", zap.String("address", a.config.GetAddress()))
		if err := a.server.Start(a.config.GetAddress()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()

		if a.limiter != nil {
			a.limiter.Close()
		}
		return a.server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
