// Package style defines text overlay styling and its merge semantics.
package style

import (
	"regexp"
	"strconv"
	"strings"
)

// Style holds the full drawtext styling for one overlay. Font sizes are
// authored against a 1080px-wide canvas and scaled by callers.
type Style struct {
	FontPath            string
	FontSize            int
	TextColor           string
	BorderWidth         int
	BorderColor         string
	ShadowX             int
	ShadowY             int
	ShadowColor         string
	Position            string
	BackgroundEnabled   bool
	BackgroundColor     string
	BackgroundOpacity   float64
	TextOpacity         float64
	Alignment           string
	MaxTextWidthPercent int
	LineSpacing         int
}

// Fonts maps the two available brand font weights to files on disk.
type Fonts struct {
	Medium   string
	SemiBold string
}

// Override carries optional per-request style changes. Nil fields leave the
// base style untouched.
type Override struct {
	FontWeight          *int     `json:"font_weight,omitempty" validate:"omitempty,gte=100,lte=900"`
	FontSize            *int     `json:"font_size,omitempty" validate:"omitempty,gte=12,lte=200"`
	TextColor           *string  `json:"text_color,omitempty" validate:"omitempty,color"`
	BorderWidth         *int     `json:"border_width,omitempty" validate:"omitempty,gte=0,lte=10"`
	BorderColor         *string  `json:"border_color,omitempty" validate:"omitempty,color"`
	ShadowX             *int     `json:"shadow_x,omitempty" validate:"omitempty,gte=-20,lte=20"`
	ShadowY             *int     `json:"shadow_y,omitempty" validate:"omitempty,gte=-20,lte=20"`
	ShadowColor         *string  `json:"shadow_color,omitempty" validate:"omitempty,color"`
	BackgroundEnabled   *bool    `json:"background_enabled,omitempty"`
	BackgroundColor     *string  `json:"background_color,omitempty" validate:"omitempty,color"`
	BackgroundOpacity   *float64 `json:"background_opacity,omitempty" validate:"omitempty,gte=0,lte=1"`
	TextOpacity         *float64 `json:"text_opacity,omitempty" validate:"omitempty,gte=0,lte=1"`
	Position            *string  `json:"position,omitempty" validate:"omitempty,oneof=center top-left top-right top-center bottom-left bottom-right bottom-center middle-left middle-right custom"`
	CustomX             *int     `json:"custom_x,omitempty" validate:"omitempty,gte=0"`
	CustomY             *int     `json:"custom_y,omitempty" validate:"omitempty,gte=0"`
	Alignment           *string  `json:"alignment,omitempty" validate:"omitempty,oneof=left center right"`
	MaxTextWidthPercent *int     `json:"max_text_width_percent,omitempty" validate:"omitempty,gte=10,lte=100"`
	LineSpacing         *int     `json:"line_spacing,omitempty" validate:"omitempty,gte=-50,lte=50"`
}

// semiBoldWeightCutoff splits the numeric weight range across the two
// available font files.
const semiBoldWeightCutoff = 450

// Apply merges an override onto a base style and returns the result. The base
// is copied, never mutated. FontWeight selects between the two font files
// rather than mapping to a weight axis.
func Apply(base Style, o *Override, fonts Fonts) Style {
	s := base
	if o == nil {
		return s
	}

	if o.FontWeight != nil {
		if *o.FontWeight < semiBoldWeightCutoff {
			s.FontPath = fonts.Medium
		} else {
			s.FontPath = fonts.SemiBold
		}
	}
	if o.FontSize != nil {
		s.FontSize = *o.FontSize
	}
	if o.TextColor != nil {
		s.TextColor = *o.TextColor
	}
	if o.BorderWidth != nil {
		s.BorderWidth = *o.BorderWidth
	}
	if o.BorderColor != nil {
		s.BorderColor = *o.BorderColor
	}
	if o.ShadowX != nil {
		s.ShadowX = *o.ShadowX
	}
	if o.ShadowY != nil {
		s.ShadowY = *o.ShadowY
	}
	if o.ShadowColor != nil {
		s.ShadowColor = *o.ShadowColor
	}
	if o.BackgroundEnabled != nil {
		s.BackgroundEnabled = *o.BackgroundEnabled
	}
	if o.BackgroundColor != nil {
		s.BackgroundColor = *o.BackgroundColor
	}
	if o.BackgroundOpacity != nil {
		s.BackgroundOpacity = *o.BackgroundOpacity
	}
	if o.TextOpacity != nil {
		s.TextOpacity = *o.TextOpacity
	}
	if o.Position != nil {
		s.Position = *o.Position
	}
	if o.Alignment != nil {
		s.Alignment = *o.Alignment
	}
	if o.MaxTextWidthPercent != nil {
		s.MaxTextWidthPercent = *o.MaxTextWidthPercent
	}
	if o.LineSpacing != nil {
		s.LineSpacing = *o.LineSpacing
	}

	return s
}

// namedColors maps supported color names to ffmpeg hex notation.
var namedColors = map[string]string{
	"white":   "0xFFFFFF",
	"black":   "0x000000",
	"red":     "0xFF0000",
	"green":   "0x00FF00",
	"blue":    "0x0000FF",
	"yellow":  "0xFFFF00",
	"cyan":    "0x00FFFF",
	"magenta": "0xFF00FF",
	"orange":  "0xFFA500",
	"purple":  "0x800080",
	"pink":    "0xFFC0CB",
	"gray":    "0x808080",
	"grey":    "0x808080",
}

var hexColorRe = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)

// ParseColor converts a named color or hex string to ffmpeg 0xRRGGBB
// notation. Unknown values fall back to white.
func ParseColor(color string) string {
	if hex, ok := namedColors[strings.ToLower(color)]; ok {
		return hex
	}
	if strings.HasPrefix(color, "#") {
		return "0x" + color[1:]
	}
	return "0xFFFFFF"
}

// ValidColor reports whether a color is a supported name or a 6-digit hex
// value, with or without the leading #.
func ValidColor(color string) bool {
	if _, ok := namedColors[strings.ToLower(color)]; ok {
		return true
	}
	return hexColorRe.MatchString(color)
}

// positionExprs maps position presets to drawtext x/y expressions.
var positionExprs = map[string][2]string{
	"center":        {"(w-text_w)/2", "(h-text_h)/2"},
	"top-left":      {"10", "10"},
	"top-right":     {"w-text_w-10", "10"},
	"top-center":    {"(w-text_w)/2", "10"},
	"bottom-left":   {"10", "h-text_h-10"},
	"bottom-right":  {"w-text_w-10", "h-text_h-10"},
	"bottom-center": {"(w-text_w)/2", "h-text_h-10"},
	"middle-left":   {"10", "(h-text_h)/2"},
	"middle-right":  {"w-text_w-10", "(h-text_h)/2"},
}

// PositionExpr resolves the drawtext x/y expressions for a style, honoring a
// position override and explicit coordinates for "custom". A custom position
// without both coordinates falls back to center, as does an unknown preset.
func PositionExpr(s Style, o *Override) (x, y string) {
	position := s.Position
	if o != nil && o.Position != nil {
		position = *o.Position
	}

	if position == "custom" && o != nil && o.CustomX != nil && o.CustomY != nil {
		return strconv.Itoa(*o.CustomX), strconv.Itoa(*o.CustomY)
	}

	if expr, ok := positionExprs[position]; ok {
		return expr[0], expr[1]
	}
	center := positionExprs["center"]
	return center[0], center[1]
}
