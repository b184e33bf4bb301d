package compositor

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"meal-image-service/internal/config"
	"meal-image-service/internal/types"
)

// LabelStyle how one label is drawn
type LabelStyle struct {
	FontSize   float64
	Color      color.Color
	Background color.Color // nil draws no backing box
	Padding    int
}

// LabelSlot a fixed position for one meal role
type LabelSlot struct {
	Role  string
	X, Y  int // top-left corner of the label box
	Style LabelStyle
}

// Layout positions of the logo and labels on the photo
type Layout struct {
	Logo   image.Rectangle
	Labels []LabelSlot
}

// Placement a label resolved against a meal plan
type Placement struct {
	Role  string
	Text  string
	X, Y  int
	Style LabelStyle
}

// LayoutFromConfig converts the configured layout, filling style defaults
func LayoutFromConfig(c config.LayoutConfig) (Layout, error) {
	if c.Logo.Width < 0 || c.Logo.Height < 0 {
		return Layout{}, fmt.Errorf("logo slot size must not be negative")
	}

	layout := Layout{
		Logo: image.Rect(c.Logo.X, c.Logo.Y, c.Logo.X+c.Logo.Width, c.Logo.Y+c.Logo.Height),
	}

	for i, l := range c.Labels {
		if strings.TrimSpace(l.Role) == "" {
			return Layout{}, fmt.Errorf("label %d: role is required", i)
		}

		style := LabelStyle{
			FontSize: l.FontSize,
			Color:    color.White,
			Padding:  l.Padding,
		}
		if style.FontSize <= 0 {
			style.FontSize = 36
		}
		if l.Color != "" {
			col, err := ParseHexColor(l.Color)
			if err != nil {
				return Layout{}, fmt.Errorf("label %s: %w", l.Role, err)
			}
			style.Color = col
		}
		if l.Background != "" {
			col, err := ParseHexColor(l.Background)
			if err != nil {
				return Layout{}, fmt.Errorf("label %s: %w", l.Role, err)
			}
			style.Background = col
		}

		layout.Labels = append(layout.Labels, LabelSlot{
			Role:  l.Role,
			X:     l.X,
			Y:     l.Y,
			Style: style,
		})
	}

	return layout, nil
}

// DefaultLayout the built-in layout
func DefaultLayout() Layout {
	layout, err := LayoutFromConfig(config.DefaultLayout())
	if err != nil {
		panic(err)
	}
	return layout
}

// Plan resolves label text for a meal. Slots whose dish is empty are skipped.
func (l Layout) Plan(meal types.MealPlan) []Placement {
	placements := make([]Placement, 0, len(l.Labels))
	for _, slot := range l.Labels {
		dish := meal.Dish(slot.Role)
		if dish == "" {
			continue
		}
		placements = append(placements, Placement{
			Role:  slot.Role,
			Text:  fmt.Sprintf("%s: %s", slot.Role, dish),
			X:     slot.X,
			Y:     slot.Y,
			Style: slot.Style,
		})
	}
	return placements
}

// ParseHexColor parses #RGB, #RRGGBB or #RRGGBBAA
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}

	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
