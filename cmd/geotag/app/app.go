package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aeroview/geotag/internal/geotag"
	"github.com/aeroview/geotag/internal/storage"
	"github.com/aeroview/geotag/internal/telemetry"
)

// Run executes one geotagging run end to end.
func Run(ctx context.Context, config *Config, opts Options, logger *slog.Logger) error {
	if opts.ImageDir == "" {
		return fmt.Errorf("no image directory provided")
	}
	if opts.PositionsPath == "" {
		return fmt.Errorf("no position fixes file provided")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = opts.ImageDir + "_tagged"
	}

	source := telemetry.NewCSVSource(opts.PositionsPath, opts.OrientationsPath)

	pipelineOpts := []func(*geotag.Pipeline){
		geotag.WithLogger(logger),
		geotag.WithWorkers(config.Pipeline.Workers),
	}
	if config.Pipeline.ToleranceSeconds > 0 {
		pipelineOpts = append(pipelineOpts, geotag.WithTolerance(time.Duration(config.Pipeline.ToleranceSeconds*float64(time.Second))))
	}
	if config.Pipeline.OffsetHours > 0 {
		pipelineOpts = append(pipelineOpts, geotag.WithFixedOffset(time.Duration(config.Pipeline.OffsetHours*float64(time.Hour))))
	}

	var store *storage.Store
	var sessionID int64
	if config.Storage.DataDirectory != "" {
		var err error
		if store, sessionID, err = createStorage(ctx, &config.Storage, opts); err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		pipelineOpts = append(pipelineOpts, geotag.WithRecorder(&runRecorder{store: store, sessionID: sessionID}))
	}

	start := time.Now()
	rejections, err := geotag.New(pipelineOpts...).Run(ctx, opts.ImageDir, source, opts.OutputDir, opts.ApplyOffset)
	if err != nil {
		return err
	}

	if store != nil {
		if err := store.FinishSession(ctx, sessionID); err != nil {
			logger.Error("finishing session", slog.String("error", err.Error()))
		}
	}

	for _, r := range rejections {
		logger.Warn("image rejected", slog.String("file", r.FileName), slog.String("reason", r.Reason))
	}
	logger.Info("run complete",
		slog.Int("rejected", len(rejections)),
		slog.String("output", opts.OutputDir),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
	)
	return nil
}

func createStorage(ctx context.Context, config *StorageConfig, opts Options) (*storage.Store, int64, error) {
	stat, err := os.Stat(config.DataDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("storage directory '%s' does not exist: %w", config.DataDirectory, err)
		}
		return nil, 0, fmt.Errorf("stat storage directory: %w", err)
	}
	if !stat.IsDir() {
		return nil, 0, fmt.Errorf("invalid storage directory '%s'", config.DataDirectory)
	}

	dbPath := filepath.Join(config.DataDirectory, fmt.Sprintf("geotag_run_%s.sqlite", time.Now().UTC().Format("20060102_150405")))

	var storeOpts []func(*storage.Store)
	if config.MaxBatchSize > 0 {
		storeOpts = append(storeOpts, storage.WithBatchSize(config.MaxBatchSize))
	}
	store := storage.NewStore(dbPath, storeOpts...)

	sessionID, err := store.CreateSession(ctx, opts.ImageDir, opts.OutputDir, opts)
	if err != nil {
		_ = store.Close()
		return nil, 0, fmt.Errorf("creating session: %w", err)
	}

	return store, sessionID, nil
}
