// Package extract turns the image stream of one topic into a video and a thumbnail.
package extract

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/lherman-cs/bag2video/internal/container"
	"github.com/lherman-cs/bag2video/internal/decode"
	"github.com/lherman-cs/bag2video/internal/fps"
	"github.com/lherman-cs/bag2video/internal/frame"
	"github.com/lherman-cs/bag2video/internal/sink"
)

type Option func(*Extractor)

// WithDefaultFPS sets the rate used for streams too short to estimate one.
func WithDefaultFPS(defaultFPS float64) Option {
	return func(e *Extractor) {
		e.defaultFPS = defaultFPS
	}
}

func WithEncoderFactory(factory sink.EncoderFactory) Option {
	return func(e *Extractor) {
		e.encoders = factory
	}
}

func WithOpener(open func(path string) (container.Container, error)) Option {
	return func(e *Extractor) {
		e.open = open
	}
}

// Extractor runs extractions. It keeps no state between runs and can be shared.
type Extractor struct {
	logger     *zap.Logger
	defaultFPS float64
	encoders   sink.EncoderFactory
	open       func(path string) (container.Container, error)
}

func New(logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Extractor{
		logger:     logger,
		defaultFPS: fps.DefaultFPS,
		encoders:   sink.DefaultEncoderFactory(sink.DefaultCodec),
		open:       container.Open,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes the images published on topic in source to videoPath, and the first
// one to thumbnailPath, or next to the video when thumbnailPath is empty. It returns
// the number of frames written. A missing topic, or one that does not carry images,
// writes nothing and is not an error.
func (e *Extractor) Extract(source, topic, videoPath, thumbnailPath string) (int, error) {
	c, err := e.open(source)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	return e.ExtractFrom(c, topic, videoPath, thumbnailPath)
}

// ExtractFrom is Extract over an opened container, which stays open.
func (e *Extractor) ExtractFrom(c container.Container, topic, videoPath, thumbnailPath string) (int, error) {
	logger := e.logger.With(zap.String("topic", topic), zap.String("video", videoPath))

	conn, err := container.FindConnection(c, topic)
	if errors.Is(err, container.ErrTopicNotFound) {
		logger.Warn("topic not found, nothing to extract")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	decoder, err := decode.For(conn)
	if errors.Is(err, decode.ErrUnsupportedType) {
		logger.Warn("topic does not carry images, nothing to extract", zap.String("type", conn.Type), zap.Error(err))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	it, err := c.Messages(conn)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	if thumbnailPath == "" {
		thumbnailPath = sink.ThumbnailPath(videoPath)
	}

	r := &run{
		logger:    logger,
		decoder:   decoder,
		estimator: fps.New(e.defaultFPS),
		thumbnail: sink.NewThumbnailSink(thumbnailPath, logger),
		video:     sink.NewVideoSink(videoPath, e.encoders),
	}
	defer r.video.Close()

	logger.Info("extracting", zap.String("type", conn.Type), zap.String("encoding", conn.Encoding))
	for {
		record, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// keep what was read before the container broke
			if finishErr := r.finish(); finishErr != nil {
				logger.Error("failed to finish video", zap.Error(finishErr))
			}
			return r.written, err
		}

		if err := r.handle(record); err != nil {
			return r.written, err
		}
	}

	if err := r.finish(); err != nil {
		return r.written, err
	}

	logger.Info("extracted",
		zap.Int("frames", r.written),
		zap.Int("skipped", r.skipped),
		zap.Float64("fps", r.estimator.FPS()),
	)
	return r.written, nil
}

// run is the state of one extraction.
type run struct {
	logger    *zap.Logger
	decoder   decode.Decodable
	estimator *fps.Estimator
	thumbnail *sink.ThumbnailSink
	video     *sink.VideoSink

	// decoded frames held back until the frame rate is known
	pending []*frame.Frame

	width, height int
	decoded       int
	written       int
	skipped       int
}

func (r *run) handle(record container.Record) error {
	f, err := r.decoder.Decode(record.Data, record.Timestamp)
	if err != nil {
		r.skipped++
		r.logger.Warn("skipping message", zap.Int64("timestamp", record.Timestamp), zap.Error(err))
		return nil
	}

	if r.decoded == 0 {
		r.width, r.height = f.Width, f.Height
		r.thumbnail.Capture(f)
	} else if f.Width != r.width || f.Height != r.height {
		r.skipped++
		r.logger.Warn("skipping frame of a different size",
			zap.Int64("timestamp", record.Timestamp),
			zap.Int("width", f.Width),
			zap.Int("height", f.Height),
		)
		return nil
	}
	r.decoded++

	r.estimator.Observe(f.Timestamp)
	if !r.estimator.Final() {
		r.pending = append(r.pending, f.Clone())
		return nil
	}

	if !r.video.Opened() {
		r.logger.Info("estimated frame rate", zap.Float64("fps", r.estimator.FPS()))
		if err := r.openAndFlush(); err != nil {
			return err
		}
	}
	return r.write(f)
}

func (r *run) openAndFlush() error {
	if err := r.video.EnsureOpen(r.width, r.height, r.estimator.FPS()); err != nil {
		return err
	}

	pending := r.pending
	r.pending = nil
	for _, f := range pending {
		if err := r.write(f); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) write(f *frame.Frame) error {
	if err := r.video.Write(f); err != nil {
		return fmt.Errorf("frame %d: %w", r.written, err)
	}
	r.written++
	return nil
}

// finish writes the frames of a stream too short to estimate a rate from and closes
// the video.
func (r *run) finish() error {
	if !r.video.Opened() && len(r.pending) > 0 {
		r.logger.Info("stream too short to estimate a frame rate",
			zap.Int("frames", len(r.pending)),
			zap.Float64("fps", r.estimator.FPS()),
		)
		if err := r.openAndFlush(); err != nil {
			return err
		}
	}
	return r.video.Close()
}
