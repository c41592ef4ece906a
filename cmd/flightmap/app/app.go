package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/aeroview/geotag/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewStore(config.DBPath)
	defer store.Close()

	return renderFlight(ctx, store, config, logger)
}

func renderFlight(ctx context.Context, store *storage.Store, config *Config, logger *slog.Logger) error {
	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading session %d: %w", config.SessionID, err)
	}

	samples, err := store.Telemetry(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading telemetry: %w", err)
	}

	matches, err := store.Matches(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading matches: %w", err)
	}

	flight, err := NewFlightData(session, samples, matches)
	if err != nil {
		return err
	}

	logger.Info("flight loaded",
		slog.Group("stats",
			slog.String("start", flight.Start().Format(time.DateTime)),
			slog.String("end", flight.End().Format(time.DateTime)),
			slog.Int("samples", len(samples)),
			slog.Int("images", len(matches)),
			slog.String("path", formatDistance(flight.PathLength())),
		))

	renderer := NewTrackRenderer(RenderConfig{
		Width:         config.Width,
		Theme:         config.Theme,
		NoAnnotations: config.NoAnnotations,
	})

	logger.Info("rendering track",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", config.Width),
		))

	img, err := renderer.Render(flight)
	if err != nil {
		return fmt.Errorf("rendering track: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
