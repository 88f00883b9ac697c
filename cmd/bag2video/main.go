// Command bag2video writes the images of one topic of a recording to a video file
// and a thumbnail.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/k0kubun/pp"
	"go.uber.org/zap"

	"github.com/lherman-cs/bag2video/internal/config"
	"github.com/lherman-cs/bag2video/internal/container"
	"github.com/lherman-cs/bag2video/internal/extract"
	"github.com/lherman-cs/bag2video/internal/logging"
	"github.com/lherman-cs/bag2video/internal/sink"
)

func usage() {
	fmt.Fprintf(os.Stderr, `%v converts the images of a recording into a video

Usage:
	%v -source <recording> -topic <topic> -output <video> [-thumbnail <image>]
	%v -source <recording> -list

A recording is a ROS 1 bag, an MCAP file or a rosbag2 directory.

Flags:
`, os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

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

	source := flag.String("source", "", "Recording to read")
	topic := flag.String("topic", "", "Image topic to extract")
	output := flag.String("output", "", "Video to write, .y4m is written without ffmpeg")
	thumbnail := flag.String("thumbnail", "", "Thumbnail to write, defaults to <output>_thumbnail.png")
	list := flag.Bool("list", false, "Print the connections of the recording and exit")
	logLevel := flag.String("log-level", cfg.LogLevel, "Logging level: debug, info, warn or error")
	logFormat := flag.String("log-format", cfg.LogFormat, "Logging format: console or json")

	flag.Usage = usage
	flag.Parse()

	if *source == "" {
		flag.Usage()
		return errors.New("missing -source")
	}

	if *list {
		return listConnections(*source)
	}

	if *topic == "" || *output == "" {
		flag.Usage()
		return errors.New("-topic and -output are required")
	}

	logger, err := logging.New(logging.Format(*logFormat), *logLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	extractor := extract.New(logger,
		extract.WithDefaultFPS(cfg.DefaultFPS),
		extract.WithEncoderFactory(sink.DefaultEncoderFactory(cfg.Codec)),
	)

	frames, err := extractor.Extract(*source, *topic, *output, *thumbnail)
	if err != nil {
		return err
	}
	logger.Info("done", zap.Int("frames", frames), zap.String("output", *output))
	return nil
}

func listConnections(source string) error {
	c, err := container.Open(source)
	if err != nil {
		return err
	}
	defer c.Close()

	conns, err := c.Connections()
	if err != nil {
		return err
	}

	for _, conn := range conns {
		// the full definition drowns everything else
		conn.Definition = nil
		pp.Println(conn)
	}
	return nil
}
