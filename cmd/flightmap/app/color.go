package app

import (
	"image/color"
	"math"
)

// ColorTheme represents a predefined color scheme for altitude
// visualization:
// - ClassicTheme: blue (low) to red (high)
// - GrayscaleTheme: dark (low) to white (high)
// - ThermalTheme: black to red to yellow to white
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"
	GrayscaleTheme ColorTheme = "grayscale"
	ThermalTheme   ColorTheme = "thermal"

	defaultColorMapSize = 256
)

var validColorThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	ThermalTheme:   {},
}

// AltitudeBounds is the altitude range mapped onto a theme.
type AltitudeBounds struct {
	Min float64
	Max float64
}

// ColorMapper provides altitude-to-color mapping over a pre-computed
// gradient.
type ColorMapper struct {
	colorMap    []color.Color
	boundsMin   float64
	boundsRange float64
}

// NewColorMapper creates a color mapper for the theme and bounds.
func NewColorMapper(theme ColorTheme, bounds AltitudeBounds) *ColorMapper {
	themeFn := getColorTheme(theme)

	cm := ColorMapper{
		colorMap:    make([]color.Color, defaultColorMapSize),
		boundsMin:   bounds.Min,
		boundsRange: bounds.Max - bounds.Min,
	}
	for i := range cm.colorMap {
		cm.colorMap[i] = themeFn(float64(i) / float64(defaultColorMapSize-1))
	}
	return &cm
}

// GetColor returns the gradient color for an altitude.
func (cm *ColorMapper) GetColor(altitude float64) color.Color {
	if cm.boundsRange <= 0 {
		return cm.colorMap[0]
	}

	normalized := (altitude - cm.boundsMin) / cm.boundsRange
	i := int(normalized * float64(len(cm.colorMap)-1))
	if i < 0 {
		i = 0
	}
	if i >= len(cm.colorMap) {
		i = len(cm.colorMap) - 1
	}
	return cm.colorMap[i]
}

func getColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case GrayscaleTheme:
		return grayscaleColor
	case ThermalTheme:
		return thermalColor
	default:
		return classicColor
	}
}

// classicColor maps a normalized altitude [0-1] to a blue-to-red HSV
// sweep, gamma corrected for better visual perception.
func classicColor(normalized float64) color.Color {
	n := math.Max(0, math.Min(1, normalized))

	hsv := HSV{
		H: 240 - (n * 240),
		S: 0.9 + (n * 0.1),
		V: 0.4 + 0.6*math.Pow(n, 0.7),
	}
	return HSVToRGB(hsv)
}

func grayscaleColor(normalized float64) color.Color {
	n := math.Max(0, math.Min(1, normalized))
	v := uint8((0.2 + 0.8*n) * 255)
	return color.RGBA{R: v, G: v, B: v, A: 0xff}
}

// thermalColor maps altitude through the black-red-yellow-white ramp
// familiar from heat maps.
func thermalColor(normalized float64) color.Color {
	n := math.Max(0, math.Min(1, normalized))

	var hsv HSV
	switch {
	case n < 0.33:
		hsv = HSV{H: 0, S: 1.0, V: 0.2 + n*2.4}
	case n < 0.66:
		hsv = HSV{H: (n - 0.33) * 180, S: 1.0, V: 1.0}
	default:
		hsv = HSV{H: 60, S: 1.0 - (n-0.66)*3, V: 1.0}
	}
	return HSVToRGB(hsv)
}

// HSV represents a color in HSV color space
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// HSVToRGB converts HSV color space to RGB
// H: [0-360], S: [0-1], V: [0-1]
func HSVToRGB(hsv HSV) color.Color {
	h := hsv.H
	s := hsv.S
	v := hsv.V

	if s <= 0.0 {
		rgb := uint8(v * 255)
		return color.RGBA{R: rgb, G: rgb, B: rgb, A: 0xff}
	}

	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64

	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}
