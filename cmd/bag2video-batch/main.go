// Command bag2video-batch extracts a video from every recording found under a
// directory tree, into a videos directory next to each recording.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lherman-cs/bag2video/internal/batch"
	"github.com/lherman-cs/bag2video/internal/config"
	"github.com/lherman-cs/bag2video/internal/extract"
	"github.com/lherman-cs/bag2video/internal/logging"
	"github.com/lherman-cs/bag2video/internal/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	root := flag.String("root", cfg.Root, "Directory to scan for recordings")
	topic := flag.String("topic", cfg.Topic, "Image topic to extract")
	videoName := flag.String("video-name", cfg.VideoName, "File name of the videos, the thumbnails take its base name with .jpg")
	metricsFile := flag.String("metrics-file", cfg.MetricsFile, "Write Prometheus metrics to this textfile when done")
	logLevel := flag.String("log-level", cfg.LogLevel, "Logging level: debug, info, warn or error")
	logFormat := flag.String("log-format", cfg.LogFormat, "Logging format: console or json")
	flag.Parse()

	logger, err := logging.New(logging.Format(*logFormat), *logLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extractor := extract.New(logger,
		extract.WithDefaultFPS(cfg.DefaultFPS),
		extract.WithEncoderFactory(sink.DefaultEncoderFactory(cfg.Codec)),
	)
	metrics := batch.NewMetrics()
	driver := batch.New(logger, extractor, metrics, batch.Options{
		Topic:     *topic,
		VideoName: *videoName,
	})

	_, runErr := driver.Run(ctx, *root)

	if *metricsFile != "" {
		if err := metrics.WriteTextfile(*metricsFile); err != nil {
			logger.Error("failed to write metrics", zap.String("path", *metricsFile), zap.Error(err))
		}
	}
	return runErr
}
