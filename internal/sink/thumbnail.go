package sink

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/lherman-cs/bag2video/internal/frame"
)

const thumbnailSuffix = "_thumbnail.png"

// ThumbnailPath is where the thumbnail of videoPath goes when no path is given: the
// video path with its extension replaced.
func ThumbnailPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + thumbnailSuffix
}

type imageEncoder func(w io.Writer, img image.Image) error

var thumbnailEncoders = map[string]imageEncoder{
	".png":  png.Encode,
	".jpg":  encodeJPEG,
	".jpeg": encodeJPEG,
	".bmp":  bmp.Encode,
	".tif":  encodeTIFF,
	".tiff": encodeTIFF,
}

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
}

func encodeTIFF(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// ThumbnailSink saves the first frame it is offered. The format follows the
// extension and defaults to png.
type ThumbnailSink struct {
	path    string
	written bool
	logger  *zap.Logger
}

func NewThumbnailSink(path string, logger *zap.Logger) *ThumbnailSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThumbnailSink{path: path, logger: logger}
}

func (s *ThumbnailSink) Path() string {
	return s.path
}

// Written reports whether a frame was offered, saving it may still have failed.
func (s *ThumbnailSink) Written() bool {
	return s.written
}

// Capture saves f unless a frame was offered before. Failures are logged, a run never
// fails because of its thumbnail.
func (s *ThumbnailSink) Capture(f *frame.Frame) {
	if s.written {
		return
	}
	s.written = true

	if err := s.save(f); err != nil {
		s.logger.Warn("failed to write thumbnail", zap.String("path", s.path), zap.Error(err))
		return
	}
	s.logger.Info("wrote thumbnail", zap.String("path", s.path))
}

func (s *ThumbnailSink) save(f *frame.Frame) error {
	img, err := f.Image()
	if err != nil {
		return err
	}

	encode, ok := thumbnailEncoders[strings.ToLower(filepath.Ext(s.path))]
	if !ok {
		encode = png.Encode
	}

	file, err := os.Create(s.path)
	if err != nil {
		return err
	}

	if err := encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	return file.Close()
}
