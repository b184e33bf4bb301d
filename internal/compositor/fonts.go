package compositor

import (
	"os"

	"meal-image-service/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// Font sources, in fallback order
const (
	FontSourceFile     = "file"
	FontSourceGoBold   = "gobold"
	FontSourceBasic    = "basicfont"
	defaultFontDPI     = 72
	placeholderFontPts = 40
)

// fontChain a parsed font plus where it came from. The parsed font is safe
// for concurrent use; faces are not, so each Compose creates its own.
type fontChain struct {
	parsed *opentype.Font
	source string
}

// loadFontChain tries the configured file, then embedded Go Bold, then the
// fixed-size basic font
func loadFontChain(path string) fontChain {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			var f *opentype.Font
			f, err = opentype.Parse(data)
			if err == nil {
				return fontChain{parsed: f, source: FontSourceFile}
			}
		}
		logger.Warn("font file unusable, falling back",
			zap.String("path", path),
			zap.Error(err),
		)
	}

	f, err := opentype.Parse(gobold.TTF)
	if err == nil {
		return fontChain{parsed: f, source: FontSourceGoBold}
	}
	logger.Warn("embedded font unusable, using basic font", zap.Error(err))

	return fontChain{source: FontSourceBasic}
}

// face returns a face at size points; callers close it
func (fc fontChain) face(size float64) font.Face {
	if fc.parsed != nil {
		face, err := opentype.NewFace(fc.parsed, &opentype.FaceOptions{
			Size:    size,
			DPI:     defaultFontDPI,
			Hinting: font.HintingFull,
		})
		if err == nil {
			return face
		}
		logger.Warn("font face creation failed", zap.Float64("size", size), zap.Error(err))
	}
	return basicfont.Face7x13
}
