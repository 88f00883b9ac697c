// Package batch extracts a video from every recording under a directory tree.
package batch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lherman-cs/bag2video/internal/container"
)

const videosDir = "videos"

// Extractor is satisfied by *extract.Extractor.
type Extractor interface {
	Extract(source, topic, videoPath, thumbnailPath string) (int, error)
}

type Options struct {
	Topic     string
	VideoName string
}

type Summary struct {
	Extracted int
	Empty     int
	Skipped   int
	Failed    int
	Frames    int
}

type Driver struct {
	logger    *zap.Logger
	extractor Extractor
	metrics   *Metrics
	opts      Options
}

func New(logger *zap.Logger, extractor Extractor, metrics *Metrics, opts Options) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Driver{
		logger:    logger,
		extractor: extractor,
		metrics:   metrics,
		opts:      opts,
	}
}

// FindBagDirs returns the directories under root that directly contain .mcap or
// .bag files, in lexical order. Subdirectories that cannot be read are logged and
// skipped.
func FindBagDirs(logger *zap.Logger, root string) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root || d == nil || !d.IsDir() {
				return err
			}
			logger.Warn("skipping unreadable directory", zap.String("dir", path), zap.Error(err))
			return fs.SkipDir
		}
		if d.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".mcap", ".bag":
			dir := filepath.Dir(path)
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(dirs)
	return dirs, nil
}

// Outputs returns the video and the thumbnail paths of the recording in dir.
func (d *Driver) Outputs(dir string) (video, thumbnail string) {
	video = filepath.Join(dir, videosDir, d.opts.VideoName)
	thumbnail = strings.TrimSuffix(video, filepath.Ext(video)) + ".jpg"
	return video, thumbnail
}

// Run extracts every recording under root. Failing recordings are logged and counted,
// they do not stop the scan. ctx is checked between recordings.
func (d *Driver) Run(ctx context.Context, root string) (Summary, error) {
	logger := d.logger.With(zap.String("run", uuid.NewString()), zap.String("root", root))
	defer d.metrics.LastRun.SetToCurrentTime()

	dirs, err := FindBagDirs(logger, root)
	if err != nil {
		return Summary{}, err
	}
	logger.Info("found recordings", zap.Int("count", len(dirs)))

	var summary Summary
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			logger.Warn("batch interrupted", zap.Error(err))
			return summary, err
		}

		status, frames := d.extract(logger.With(zap.String("dir", dir)), dir)
		d.metrics.BagsTotal.WithLabelValues(status).Inc()
		d.metrics.FramesTotal.Add(float64(frames))

		summary.Frames += frames
		switch status {
		case statusExtracted:
			summary.Extracted++
		case statusEmpty:
			summary.Empty++
		case statusSkipped:
			summary.Skipped++
		case statusFailed:
			summary.Failed++
		}
	}

	logger.Info("batch done",
		zap.Int("extracted", summary.Extracted),
		zap.Int("empty", summary.Empty),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("frames", summary.Frames),
	)
	return summary, nil
}

func (d *Driver) extract(logger *zap.Logger, dir string) (status string, frames int) {
	video, thumbnail := d.Outputs(dir)
	if err := os.MkdirAll(filepath.Dir(video), 0o755); err != nil {
		logger.Error("failed to create videos directory", zap.Error(err))
		return statusFailed, 0
	}

	start := time.Now()
	frames, err := d.extractor.Extract(dir, d.opts.Topic, video, thumbnail)
	d.metrics.ExtractionDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, container.ErrMalformedContainer):
		logger.Warn("skipping malformed recording", zap.Error(err))
		return statusSkipped, frames
	case err != nil:
		logger.Error("extraction failed", zap.Int("frames", frames), zap.Error(err))
		return statusFailed, frames
	case frames == 0:
		logger.Info("no frames extracted", zap.String("topic", d.opts.Topic))
		return statusEmpty, 0
	}

	logger.Info("extracted", zap.String("video", video), zap.Int("frames", frames))
	return statusExtracted, frames
}
