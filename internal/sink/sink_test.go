package sink

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/image/bmp"

	"github.com/lherman-cs/bag2video/internal/frame"
)

type fakeEncoder struct {
	fps    float64
	frames int
	closed bool
}

func (e *fakeEncoder) Write(*frame.Frame) error {
	e.frames++
	return nil
}

func (e *fakeEncoder) Close() error {
	e.closed = true
	return nil
}

type fakeFactory struct {
	opened []*fakeEncoder
	err    error
}

func (f *fakeFactory) open(path string, width, height int, fps float64) (Encoder, error) {
	if f.err != nil {
		return nil, f.err
	}
	e := &fakeEncoder{fps: fps}
	f.opened = append(f.opened, e)
	return e, nil
}

func mono(width, height int, value byte) *frame.Frame {
	return &frame.Frame{
		Width:    width,
		Height:   height,
		Encoding: frame.Mono8,
		Step:     width,
		Data:     bytes.Repeat([]byte{value}, width*height),
	}
}

func TestVideoSink(t *testing.T) {
	factory := &fakeFactory{}
	s := NewVideoSink("out.mp4", factory.open)

	assert.ErrorIs(t, s.Write(mono(2, 2, 0)), ErrNotOpen)

	require.NoError(t, s.EnsureOpen(2, 2, 20))
	require.NoError(t, s.EnsureOpen(2, 2, 20))
	require.Len(t, factory.opened, 1)
	assert.True(t, s.Opened())

	require.NoError(t, s.Write(mono(2, 2, 0)))
	assert.ErrorIs(t, s.Write(mono(4, 2, 0)), ErrFrameSizeMismatch)

	// a new rate reopens with the size the video was opened with
	require.NoError(t, s.EnsureOpen(8, 8, 30))
	require.Len(t, factory.opened, 2)
	assert.True(t, factory.opened[0].closed)
	assert.Equal(t, 30.0, s.FPS())
	require.NoError(t, s.Write(mono(2, 2, 0)))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Opened())
	assert.Equal(t, 1, factory.opened[0].frames)
	assert.Equal(t, 1, factory.opened[1].frames)
}

func TestVideoSinkOpenFailure(t *testing.T) {
	cause := errors.New("ffmpeg not found")
	s := NewVideoSink("out.mp4", (&fakeFactory{err: cause}).open)

	err := s.EnsureOpen(2, 2, 20)
	assert.ErrorIs(t, err, ErrEncoderOpen)
	assert.ErrorIs(t, err, cause)
	assert.False(t, s.Opened())
}

type failingEncoder struct{ err error }

func (e failingEncoder) Write(*frame.Frame) error { return e.err }
func (e failingEncoder) Close() error             { return nil }

func TestVideoSinkWriteFailure(t *testing.T) {
	testCases := []struct {
		Name   string
		Cause  error
		Expect error
		Not    error
	}{
		{Name: "Encoder Did Not Start", Cause: fmt.Errorf("%w: broken pipe", ErrEncoderOpen), Expect: ErrEncoderOpen, Not: ErrEncoderWrite},
		{Name: "Encoder Failed", Cause: errors.New("broken pipe"), Expect: ErrEncoderWrite, Not: ErrEncoderOpen},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			factory := func(string, int, int, float64) (Encoder, error) {
				return failingEncoder{err: testCase.Cause}, nil
			}
			s := NewVideoSink("out.mp4", factory)
			require.NoError(t, s.EnsureOpen(2, 2, 20))

			err := s.Write(mono(2, 2, 0))
			assert.ErrorIs(t, err, testCase.Expect)
			assert.NotErrorIs(t, err, testCase.Not)
		})
	}
}

func TestY4MEncoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.y4m")
	s := NewVideoSink(path, DefaultEncoderFactory(""))

	require.NoError(t, s.EnsureOpen(2, 2, 25))
	require.NoError(t, s.Write(mono(2, 2, 0)))
	require.NoError(t, s.Write(mono(2, 2, 255)))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := bufio.NewReader(f)
	header, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "YUV4MPEG2 W2 H2 F25:1 Ip A1:1 C444\n", header)

	for _, luma := range []byte{0, 255} {
		marker, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "FRAME\n", marker)

		plane := make([]byte, 3*4)
		_, err = io.ReadFull(r, plane)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{luma}, 4), plane[:4])
		assert.Equal(t, bytes.Repeat([]byte{128}, 8), plane[4:])
	}

	_, err = r.ReadByte()
	assert.Error(t, err)
}

func TestRational(t *testing.T) {
	testCases := []struct {
		FPS      float64
		Num, Den int
	}{
		{FPS: 20, Num: 20, Den: 1},
		{FPS: 30000.0 / 1001, Num: 30000, Den: 1001},
		{FPS: 12.5, Num: 12500, Den: 1000},
		{FPS: 0, Num: 0, Den: 1},
	}

	for _, testCase := range testCases {
		num, den := rational(testCase.FPS)
		if num != testCase.Num || den != testCase.Den {
			t.Fatalf("%f: expected %d/%d, got %d/%d", testCase.FPS, testCase.Num, testCase.Den, num, den)
		}
	}
}

func TestThumbnailPath(t *testing.T) {
	testCases := map[string]string{
		"out/video.mp4":      "out/video_thumbnail.png",
		"video":              "video_thumbnail.png",
		"/a.b/video.tar.mkv": "/a.b/video.tar_thumbnail.png",
	}

	for video, expected := range testCases {
		if diff := cmp.Diff(expected, ThumbnailPath(video)); diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestThumbnailSink(t *testing.T) {
	dir := t.TempDir()
	first := &frame.Frame{Width: 2, Height: 1, Encoding: frame.RGB8, Step: 6, Data: []byte{1, 2, 3, 4, 5, 6}}

	path := filepath.Join(dir, "thumb.png")
	s := NewThumbnailSink(path, nil)
	s.Capture(first)
	s.Capture(mono(2, 1, 200))
	assert.True(t, s.Written())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 1), img.Bounds())
	r, g, b, _ := img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{4, 5, 6}, []uint32{r >> 8, g >> 8, b >> 8})

	t.Run("BMP", func(t *testing.T) {
		path := filepath.Join(dir, "thumb.bmp")
		NewThumbnailSink(path, nil).Capture(mono(2, 2, 77))

		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()

		img, err := bmp.Decode(f)
		require.NoError(t, err)
		r, _, _, _ := img.At(1, 1).RGBA()
		assert.Equal(t, uint32(77), r>>8)
	})

	t.Run("JPEG", func(t *testing.T) {
		path := filepath.Join(dir, "thumb.jpg")
		NewThumbnailSink(path, nil).Capture(mono(8, 8, 77))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xff, 0xd8}, raw[:2])
	})

	t.Run("Failure Is Logged", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		s := NewThumbnailSink(filepath.Join(dir, "missing", "thumb.png"), zap.New(core))
		s.Capture(first)
		s.Capture(first)

		assert.True(t, s.Written())
		assert.Equal(t, 1, logs.FilterMessage("failed to write thumbnail").Len())
	})
}
