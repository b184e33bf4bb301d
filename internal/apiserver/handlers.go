package apiserver

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"meal-image-service/internal/config"
	"meal-image-service/internal/errors"
	"meal-image-service/internal/logger"
	"meal-image-service/internal/service"
	"meal-image-service/internal/store"
	"meal-image-service/internal/types"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const serviceName = "meal-image-service"

type handler struct {
	cfg      *config.Config
	svc      service.ImageService
	overlay  OverlaySource
	provider string
	started  time.Time
}

func newHandler(deps Deps) *handler {
	return &handler{
		cfg:      deps.Config,
		svc:      deps.Service,
		overlay:  deps.Overlay,
		provider: deps.Provider,
		started:  time.Now(),
	}
}

func (h *handler) banner(c echo.Context) error {
	return c.JSON(http.StatusOK, types.BannerResponse{
		Service:     serviceName,
		Version:     Version,
		Status:      "running",
		Environment: h.cfg.Server.Environment,
		Endpoints:   endpoints,
	})
}

func (h *handler) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, types.PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC(),
	})
}

func (h *handler) health(c echo.Context) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	const mib = 1 << 20
	uptime := time.Since(h.started)

	stored := 0
	if entries, err := h.svc.ListImages(); err == nil {
		stored = len(entries)
	}

	resp := types.HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Environment:   h.cfg.Server.Environment,
		Provider:      h.provider,
		Memory: types.MemoryStats{
			AllocMB:     float64(ms.Alloc) / mib,
			SysMB:       float64(ms.Sys) / mib,
			HeapInUseMB: float64(ms.HeapInuse) / mib,
			Goroutines:  runtime.NumGoroutine(),
		},
		OutputDir:    h.cfg.Storage.OutputDir,
		StoredImages: stored,
	}
	if h.overlay != nil {
		resp.LogoPath = h.overlay.LogoPath()
		resp.LogoPresent = h.overlay.LogoPresent()
		resp.FontSource = h.overlay.FontSource()
	}

	return c.JSON(http.StatusOK, resp)
}

// generateImage accepts a meal object or an array of them. A body that
// cannot be decoded is not rejected, the default meal is used instead.
func (h *handler) generateImage(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errors.NewBadRequestError("failed to read request body", err)
	}

	meal, err := types.ParseMealPlan(body)
	if err != nil {
		logger.Warn("using default meal data", zap.Error(err))
	}

	res, err := h.svc.GenerateImage(c.Request().Context(), meal)
	if err != nil {
		return err
	}

	imageURL := "/images/" + url.PathEscape(res.Name)
	direct := h.absoluteURL(c, imageURL)

	return c.JSON(http.StatusOK, types.GenerateImageResponse{
		Message:         "image generated successfully",
		ImagePath:       filepath.Join(h.cfg.Storage.OutputDir, res.Name),
		ImageURL:        imageURL,
		ImageDisplayURL: fmt.Sprintf("%s?t=%d", direct, res.CreatedAt.UnixMilli()),
		DirectLink:      direct,
		Meal:            res.Meal,
		Attempts:        res.Attempts,
		Composited:      res.Composited,
		Timestamp:       res.CreatedAt.UTC(),
	})
}

func (h *handler) listImages(c echo.Context) error {
	entries, err := h.svc.ListImages()
	if err != nil {
		return err
	}

	images := lo.Map(entries, func(e store.Entry, _ int) types.ImageInfo {
		return types.ImageInfo{
			Name:    e.Name,
			URL:     "/images/" + url.PathEscape(e.Name),
			ModTime: e.ModTime.UTC(),
			Size:    e.Size,
		}
	})

	return c.JSON(http.StatusOK, types.ImageListResponse{
		Count:  len(images),
		Images: images,
	})
}

func (h *handler) getImage(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("filename"))
	if err != nil {
		name = c.Param("filename")
	}

	data, entry, err := h.svc.GetImage(name)
	if err != nil {
		return err
	}

	etag := store.ETag(data)
	header := c.Response().Header()
	header.Set("ETag", etag)
	// names are unique per generation, contents never change
	header.Set("Cache-Control", "public, max-age=31536000, immutable")
	header.Set("Last-Modified", entry.ModTime.UTC().Format(http.TimeFormat))

	if match := c.Request().Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		return c.NoContent(http.StatusNotModified)
	}

	return c.Blob(http.StatusOK, store.ContentType(name), data)
}

// absoluteURL prefixes path with the public URL, or the request's own origin
func (h *handler) absoluteURL(c echo.Context, path string) string {
	if h.cfg.Server.PublicURL != "" {
		return h.cfg.Server.PublicURL + path
	}
	return c.Scheme() + "://" + c.Request().Host + path
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
