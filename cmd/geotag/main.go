package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aeroview/geotag/cmd/geotag/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath string
	var opts app.Options
	flag.StringVar(&configPath, "c", "", "Path to the configuration file (optional)")
	flag.StringVar(&opts.ImageDir, "images", "", "Directory containing flight images")
	flag.StringVar(&opts.OutputDir, "out", "", "Output directory (default: <images>_tagged)")
	flag.StringVar(&opts.PositionsPath, "gps", "", "Path to the position fixes CSV")
	flag.StringVar(&opts.OrientationsPath, "att", "", "Path to the orientation fixes CSV (optional)")
	flag.BoolVar(&opts.ApplyOffset, "offset", false, "Apply the fixed camera clock offset")
	flag.Parse()

	config := app.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = app.LoadConfig(configPath); err != nil {
			logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
			os.Exit(1)
		}
	}

	level, err := config.Settings.SlogLevel()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, opts, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
