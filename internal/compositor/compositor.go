// Package compositor draws the brand logo and meal labels onto a generated
// food photo and encodes the result as PNG.
package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io/fs"
	"os"

	"meal-image-service/internal/config"
	"meal-image-service/internal/logger"
	"meal-image-service/internal/types"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // Gemini may answer with WebP
)

var placeholderColor = color.NRGBA{R: 0xE8, G: 0x6A, B: 0x1F, A: 0xFF}

// Compositor draws a fixed layout onto base images. Safe for concurrent use.
type Compositor struct {
	layout      Layout
	logoPath    string
	placeholder bool
	fonts       fontChain
}

// New builds a compositor from config
func New(cfg config.CompositorConfig) (*Compositor, error) {
	layout, err := LayoutFromConfig(cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("invalid compositor layout: %w", err)
	}

	c := &Compositor{
		layout:      layout,
		logoPath:    cfg.LogoPath,
		placeholder: cfg.Placeholder,
		fonts:       loadFontChain(cfg.FontPath),
	}

	logger.Info("compositor ready",
		zap.String("font_source", c.fonts.source),
		zap.String("logo_path", c.logoPath),
		zap.Bool("placeholder", c.placeholder),
		zap.Int("labels", len(layout.Labels)),
	)

	return c, nil
}

// FontSource which link of the font fallback chain is in use
func (c *Compositor) FontSource() string {
	return c.fonts.source
}

// LogoPresent reports whether the logo file exists
func (c *Compositor) LogoPresent() bool {
	if c.logoPath == "" {
		return false
	}
	info, err := os.Stat(c.logoPath)
	return err == nil && info.Mode().IsRegular()
}

// LogoPath configured logo file
func (c *Compositor) LogoPath() string {
	return c.logoPath
}

// Compose loads the raw image at rawPath, draws logo and labels and returns
// PNG bytes
func (c *Compositor) Compose(rawPath string, meal types.MealPlan) ([]byte, error) {
	base, err := imaging.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}

	canvas := c.ComposeImage(base, meal)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ComposeImage draws onto a copy of base
func (c *Compositor) ComposeImage(base image.Image, meal types.MealPlan) *image.RGBA {
	b := base.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), base, b.Min, draw.Src)

	c.drawLogo(canvas)

	for _, p := range c.layout.Plan(meal) {
		c.drawLabel(canvas, p)
	}

	return canvas
}

// drawLogo draws the logo scaled into its slot, or the placeholder
func (c *Compositor) drawLogo(canvas *image.RGBA) {
	slot := c.layout.Logo
	if slot.Empty() {
		return
	}

	logo, err := c.loadLogo()
	if err == nil {
		scaled := imaging.Resize(logo, slot.Dx(), slot.Dy(), imaging.Lanczos)
		draw.Draw(canvas, slot, scaled, image.Point{}, draw.Over)
		return
	}

	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("logo file not found", zap.String("path", c.logoPath))
	} else {
		logger.Warn("logo file unusable", zap.String("path", c.logoPath), zap.Error(err))
	}

	if !c.placeholder {
		return
	}

	draw.Draw(canvas, slot, image.NewUniform(placeholderColor), image.Point{}, draw.Over)

	face := c.fonts.face(placeholderFontPts)
	defer face.Close()

	const text = "LOGO"
	width := font.MeasureString(face, text).Ceil()
	m := face.Metrics()
	height := (m.Ascent + m.Descent).Ceil()
	x := slot.Min.X + (slot.Dx()-width)/2
	y := slot.Min.Y + (slot.Dy()-height)/2 + m.Ascent.Ceil()
	drawString(canvas, face, color.White, x, y, text)
}

func (c *Compositor) loadLogo() (image.Image, error) {
	if c.logoPath == "" {
		return nil, fs.ErrNotExist
	}
	if _, err := os.Stat(c.logoPath); err != nil {
		return nil, err
	}
	return imaging.Open(c.logoPath)
}

// drawLabel draws a backing box then the text, with (X, Y) the box corner
func (c *Compositor) drawLabel(canvas *image.RGBA, p Placement) {
	face := c.fonts.face(p.Style.FontSize)
	defer face.Close()

	m := face.Metrics()
	width := font.MeasureString(face, p.Text).Ceil()
	height := (m.Ascent + m.Descent).Ceil()
	pad := p.Style.Padding

	if p.Style.Background != nil {
		box := image.Rect(p.X, p.Y, p.X+width+2*pad, p.Y+height+2*pad)
		draw.Draw(canvas, box, image.NewUniform(p.Style.Background), image.Point{}, draw.Over)
	}

	drawString(canvas, face, p.Style.Color, p.X+pad, p.Y+pad+m.Ascent.Ceil(), p.Text)
}

// drawString draws text with its baseline at y
func drawString(dst draw.Image, face font.Face, col color.Color, x, y int, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
