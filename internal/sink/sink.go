// Package sink writes frames out: a video through a pluggable encoder, and a single
// thumbnail image.
package sink

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lherman-cs/bag2video/internal/frame"
)

var (
	ErrEncoderOpen       = errors.New("sink: failed to open encoder")
	ErrEncoderWrite      = errors.New("sink: failed to write frame")
	ErrFrameSizeMismatch = errors.New("sink: frame size differs from the video size")
	ErrNotOpen           = errors.New("sink: video is not open")
)

// Encoder receives frames of the size it was opened with.
type Encoder interface {
	Write(f *frame.Frame) error
	Close() error
}

// EncoderFactory opens an encoder writing to path. Opening truncates path.
type EncoderFactory func(path string, width, height int, fps float64) (Encoder, error)

// DefaultEncoderFactory writes .y4m files natively and anything else through ffmpeg.
func DefaultEncoderFactory(codec string) EncoderFactory {
	vidio := VidioEncoderFactory(codec)
	return func(path string, width, height int, fps float64) (Encoder, error) {
		if strings.EqualFold(filepath.Ext(path), ".y4m") {
			return NewY4MEncoder(path, width, height, fps)
		}
		return vidio(path, width, height, fps)
	}
}

// VideoSink owns at most one encoder at a time.
type VideoSink struct {
	path    string
	factory EncoderFactory

	encoder       Encoder
	width, height int
	fps           float64
}

func NewVideoSink(path string, factory EncoderFactory) *VideoSink {
	return &VideoSink{path: path, factory: factory}
}

// EnsureOpen opens the encoder, or reopens it when fps differs from the rate it is
// open with. Reopening discards what was written so far.
func (s *VideoSink) EnsureOpen(width, height int, fps float64) error {
	if s.encoder != nil {
		if fps == s.fps {
			return nil
		}
		if err := s.Close(); err != nil {
			return err
		}
		width, height = s.width, s.height
	}

	encoder, err := s.factory(s.path, width, height, fps)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncoderOpen, s.path, err)
	}

	s.encoder = encoder
	s.width, s.height, s.fps = width, height, fps
	return nil
}

func (s *VideoSink) Opened() bool {
	return s.encoder != nil
}

func (s *VideoSink) FPS() float64 {
	return s.fps
}

func (s *VideoSink) Write(f *frame.Frame) error {
	if s.encoder == nil {
		return ErrNotOpen
	}
	if f.Width != s.width || f.Height != s.height {
		return fmt.Errorf("%w: %dx%d, video is %dx%d", ErrFrameSizeMismatch, f.Width, f.Height, s.width, s.height)
	}

	if err := s.encoder.Write(f); err != nil {
		if errors.Is(err, ErrEncoderOpen) {
			return fmt.Errorf("%s: %w", s.path, err)
		}
		return fmt.Errorf("%w: %w", ErrEncoderWrite, err)
	}
	return nil
}

// Close flushes the encoder. Closing a closed sink is a no-op.
func (s *VideoSink) Close() error {
	if s.encoder == nil {
		return nil
	}
	err := s.encoder.Close()
	s.encoder = nil
	return err
}
