package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 120.0
	fontSize       = 12.0
	tickMarkLength = 5
	pixelsPerLabel = 150.0

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	minTrackHeight = 64
	maxTrackHeight = 4096
)

var trackColor = color.RGBA{A: 0xff}

// BorderConfig defines the sizes of white space around the track
type BorderConfig struct {
	Top    int // Space for longitude scale
	Left   int // Space for latitude scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for track visualization
type RenderConfig struct {
	Width         int        // Track area width in pixels
	FontSize      float64    // Font size in points
	Theme         ColorTheme // Color scheme for altitude values
	NoAnnotations bool       // Skip scales and the info bar
	Borders       BorderConfig
}

// TrackRenderer draws a recorded flight as an altitude-colored ground
// track with the correlated image positions marked on it.
type TrackRenderer struct {
	colorMap *ColorMapper
	config   RenderConfig
}

// NewTrackRenderer creates a track renderer with the given configuration
func NewTrackRenderer(config RenderConfig) *TrackRenderer {
	if config.Width == 0 {
		config.Width = 1024
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}

	return &TrackRenderer{config: config}
}

// Render creates an image of the flight track with annotations
func (r *TrackRenderer) Render(flight *FlightData) (*image.RGBA, error) {
	trackHeight := r.trackHeight(flight)

	fullWidth := r.config.Width + r.config.Borders.Left + r.config.Borders.Right
	fullHeight := trackHeight + r.config.Borders.Top + r.config.Borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	trackArea := image.Rect(
		r.config.Borders.Left,
		r.config.Borders.Top,
		r.config.Borders.Left+r.config.Width,
		r.config.Borders.Top+trackHeight,
	)

	if r.colorMap == nil {
		r.colorMap = NewColorMapper(r.config.Theme, AltitudeBounds{Min: flight.MinAlt, Max: flight.MaxAlt})
	}

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(annotatorConfig{
			FontSize: r.config.FontSize,
			Borders:  r.config.Borders,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, flight, trackArea); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderTrack(img, trackArea, flight)
	r.renderMarkers(img, trackArea, flight)

	return img, nil
}

// trackHeight preserves the geographic aspect ratio of the flight,
// shrinking longitude spans by the cosine of the mid latitude.
func (r *TrackRenderer) trackHeight(flight *FlightData) int {
	midLat := (flight.MinLat + flight.MaxLat) / 2 * math.Pi / 180
	lonSpan := (flight.MaxLon - flight.MinLon) * math.Cos(midLat)
	latSpan := flight.MaxLat - flight.MinLat

	height := int(float64(r.config.Width) * latSpan / lonSpan)
	if height < minTrackHeight {
		height = minTrackHeight
	}
	if height > maxTrackHeight {
		height = maxTrackHeight
	}
	return height
}

// project maps a coordinate into the track area, north up.
func project(flight *FlightData, lat, lon float64, area image.Rectangle) image.Point {
	xRatio := (lon - flight.MinLon) / (flight.MaxLon - flight.MinLon)
	yRatio := (flight.MaxLat - lat) / (flight.MaxLat - flight.MinLat)

	return image.Point{
		X: area.Min.X + int(xRatio*float64(area.Dx()-1)),
		Y: area.Min.Y + int(yRatio*float64(area.Dy()-1)),
	}
}

// renderTrack draws the flight path as altitude-colored segments
func (r *TrackRenderer) renderTrack(img *image.RGBA, area image.Rectangle, flight *FlightData) {
	prev := project(flight, flight.Samples[0].Latitude, flight.Samples[0].Longitude, area)
	for _, s := range flight.Samples[1:] {
		next := project(flight, s.Latitude, s.Longitude, area)
		drawLine(img, prev, next, r.colorMap.GetColor(s.Altitude))
		prev = next
	}
}

// renderMarkers draws a cross at each correlated image position
func (r *TrackRenderer) renderMarkers(img *image.RGBA, area image.Rectangle, flight *FlightData) {
	for _, m := range flight.Matches {
		pt := project(flight, m.Latitude, m.Longitude, area)
		for d := -3; d <= 3; d++ {
			img.Set(pt.X+d, pt.Y, trackColor)
			img.Set(pt.X, pt.Y+d, trackColor)
		}
	}
}

// drawLine draws a 2px Bresenham line
func drawLine(img *image.RGBA, from, to image.Point, c color.Color) {
	dx := abs(to.X - from.X)
	dy := -abs(to.Y - from.Y)
	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}

	x, y, err := from.X, from.Y, dx+dy
	for {
		img.Set(x, y, c)
		img.Set(x+1, y, c)
		if x == to.X && y == to.Y {
			return
		}
		if e2 := 2 * err; e2 >= dy {
			err += dy
			x += sx
		} else {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Internal annotator implementation
type annotatorConfig struct {
	FontSize float64
	Borders  BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, flight *FlightData, area image.Rectangle) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawLongitudeScale(img, flight, area); err != nil {
		return fmt.Errorf("drawing longitude scale: %w", err)
	}
	if err := a.drawLatitudeScale(img, flight, area); err != nil {
		return fmt.Errorf("drawing latitude scale: %w", err)
	}
	if err := a.drawInfoBar(img, flight); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) drawLongitudeScale(img *image.RGBA, flight *FlightData, area image.Rectangle) error {
	step := calculateNiceDegreeStep(flight.MaxLon-flight.MinLon, area.Dx())
	start := math.Ceil(flight.MinLon/step) * step

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := a.config.Borders.Top - fontHeight/2

	for lon := start; lon <= flight.MaxLon; lon += step {
		x := project(flight, flight.MaxLat, lon, area).X

		for y := a.config.Borders.Top - tickMarkLength; y < a.config.Borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatDegrees(lon, "E", "W")
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-(width.Round()/2), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing longitude label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawLatitudeScale(img *image.RGBA, flight *FlightData, area image.Rectangle) error {
	step := calculateNiceDegreeStep(flight.MaxLat-flight.MinLat, area.Dy())
	start := math.Ceil(flight.MinLat/step) * step

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for lat := start; lat <= flight.MaxLat; lat += step {
		y := project(flight, lat, flight.MinLon, area).Y

		for x := a.config.Borders.Left - tickMarkLength; x < a.config.Borders.Left; x++ {
			img.Set(x, y, color.Black)
		}

		textY := y + fontHeight/2 - metrics.Descent.Round()
		label := formatDegrees(lat, "N", "S")
		pt := freetype.Pt(10, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing latitude label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, flight *FlightData) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Flight #%d", flight.Session.ID))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Time: %s - %s (%s)",
		flight.Start().Format("2006-01-02 15:04:05"),
		flight.End().Format("15:04:05"),
		flight.End().Sub(flight.Start()).Round(time.Second)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Path: %s", formatDistance(flight.PathLength())))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Alt: %.0f-%.0f m", flight.MinAlt, flight.MaxAlt))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("%s samples, %s images",
		humanize.Comma(int64(len(flight.Samples))),
		humanize.Comma(int64(len(flight.Matches)))))

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// Helper functions

// calculateNiceDegreeStep picks a 1/2/5 decade step giving roughly
// one label per 150px.
func calculateNiceDegreeStep(span float64, pixels int) float64 {
	desiredSteps := math.Max(float64(pixels)/pixelsPerLabel, 1)
	targetStep := span / desiredSteps

	exponent := math.Floor(math.Log10(targetStep))
	base := math.Pow(10, exponent)

	for _, mantissa := range []float64{1, 2, 5, 10} {
		if step := mantissa * base; step >= targetStep {
			return step
		}
	}
	return base * 10
}

func formatDegrees(value float64, positive, negative string) string {
	suffix := positive
	if value < 0 {
		suffix = negative
		value = -value
	}
	return fmt.Sprintf("%.4f°%s", value, suffix)
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.2f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", meters)
}
