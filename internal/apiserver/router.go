package apiserver

import (
	"meal-image-service/internal/config"
	"meal-image-service/internal/middleware"
	"meal-image-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version reported by GET /; set at build time with -ldflags
var Version = "dev"

// OverlaySource reports the logo and font the overlay is drawn with
type OverlaySource interface {
	LogoPath() string
	LogoPresent() bool
	FontSource() string
}

// Deps everything the routes need
type Deps struct {
	Config   *config.Config
	Service  service.ImageService
	Overlay  OverlaySource
	Provider string
	// Limiter guards POST /generate-image when non-nil
	Limiter *middleware.RateLimiter
}

// RegisterRoutes registers the echo routes
func RegisterRoutes(e *echo.Echo, deps Deps) {
	e.HTTPErrorHandler = middleware.ErrorHandler()
	e.JSONSerializer = SonicJSONSerializer{}

	e.Use(middleware.RequestLogger(deps.Config))
	e.Use(middleware.Metrics())

	h := newHandler(deps)

	e.GET("/", h.banner)
	e.GET("/health", h.health)
	e.GET("/ping", h.ping)

	generate := []echo.MiddlewareFunc{middleware.BearerAuth(deps.Config.Security.BearerToken)}
	if deps.Limiter != nil {
		generate = append(generate, deps.Limiter.Middleware())
	}
	e.POST("/generate-image", h.generateImage, generate...)

	e.GET("/images", h.listImages)
	e.GET("/images/:filename", h.getImage)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// endpoints listed by the banner
var endpoints = []string{
	"GET /",
	"GET /health",
	"GET /ping",
	"POST /generate-image",
	"GET /images",
	"GET /images/:filename",
	"GET /metrics",
}
