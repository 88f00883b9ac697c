package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lherman-cs/bag2video/internal/container"
)

type call struct {
	Source, Topic, Video, Thumbnail string
}

type fakeExtractor struct {
	calls   []call
	results map[string]func() (int, error)
	cancel  context.CancelFunc
}

func (e *fakeExtractor) Extract(source, topic, videoPath, thumbnailPath string) (int, error) {
	e.calls = append(e.calls, call{source, topic, videoPath, thumbnailPath})
	if e.cancel != nil {
		e.cancel()
	}
	if result, ok := e.results[filepath.Base(source)]; ok {
		return result()
	}
	return 10, nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func tree(t *testing.T) string {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a", "rec_0.mcap"))
	touch(t, filepath.Join(root, "a", "rec_1.mcap"))
	touch(t, filepath.Join(root, "a", "nested", "rec.bag"))
	touch(t, filepath.Join(root, "a", "z.mcap"))
	touch(t, filepath.Join(root, "b", "metadata.yaml"))
	touch(t, filepath.Join(root, "c", "deep", "rec.MCAP"))
	touch(t, filepath.Join(root, "d", "notes.txt"))
	return root
}

func TestFindBagDirs(t *testing.T) {
	root := tree(t)

	dirs, err := FindBagDirs(zaptest.NewLogger(t), root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "nested"),
		filepath.Join(root, "c", "deep"),
	}, dirs)

	_, err = FindBagDirs(zaptest.NewLogger(t), filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestFindBagDirsUnreadable(t *testing.T) {
	root := tree(t)
	locked := filepath.Join(root, "a", "nested")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })
	if _, err := os.ReadDir(locked); err == nil {
		t.Skip("permissions are not enforced for this user")
	}

	core, logs := observer.New(zap.WarnLevel)
	dirs, err := FindBagDirs(zap.New(core), root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "c", "deep"),
	}, dirs)

	entries := logs.FilterMessage("skipping unreadable directory").All()
	require.Len(t, entries, 1)
	assert.Equal(t, locked, entries[0].ContextMap()["dir"])
}

func TestRun(t *testing.T) {
	root := tree(t)
	extractor := &fakeExtractor{results: map[string]func() (int, error){
		"nested": func() (int, error) {
			return 0, fmt.Errorf("open: %w", container.ErrMalformedContainer)
		},
		"deep": func() (int, error) { return 0, nil },
	}}
	metrics := NewMetrics()
	d := New(zaptest.NewLogger(t), extractor, metrics, Options{Topic: "/image_raw", VideoName: "video.mp4"})

	summary, err := d.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, Summary{Extracted: 1, Empty: 1, Skipped: 1, Frames: 10}, summary)

	require.Len(t, extractor.calls, 3)
	assert.Equal(t, call{
		Source:    filepath.Join(root, "a"),
		Topic:     "/image_raw",
		Video:     filepath.Join(root, "a", "videos", "video.mp4"),
		Thumbnail: filepath.Join(root, "a", "videos", "video.jpg"),
	}, extractor.calls[0])

	info, err := os.Stat(filepath.Join(root, "c", "deep", "videos"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BagsTotal.WithLabelValues(statusSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BagsTotal.WithLabelValues(statusExtracted)))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.FramesTotal))

	textfile := filepath.Join(t.TempDir(), "bag2video.prom")
	require.NoError(t, metrics.WriteTextfile(textfile))
	raw, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `bag2video_bags_total{status="skipped"} 1`), string(raw))
}

func TestRunFailuresDoNotStopTheScan(t *testing.T) {
	root := tree(t)
	extractor := &fakeExtractor{results: map[string]func() (int, error){
		"a": func() (int, error) { return 3, errors.New("disk full") },
	}}
	d := New(nil, extractor, nil, Options{Topic: "/image_raw", VideoName: "clip.mkv"})

	summary, err := d.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, Summary{Extracted: 2, Failed: 1, Frames: 23}, summary)
	assert.Equal(t, filepath.Join(root, "a", "videos", "clip.jpg"), extractor.calls[0].Thumbnail)
}

func TestRunCancelled(t *testing.T) {
	root := tree(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	extractor := &fakeExtractor{cancel: cancel}
	d := New(nil, extractor, nil, Options{Topic: "/image_raw", VideoName: "video.mp4"})

	summary, err := d.Run(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, extractor.calls, 1)
	assert.Equal(t, 1, summary.Extracted)
}
