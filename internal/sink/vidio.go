package sink

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	vidio "github.com/AlexEidt/Vidio"

	"github.com/lherman-cs/bag2video/internal/frame"
)

const DefaultCodec = "libx264"

var ErrUnsupportedCodec = errors.New("sink: codec is not an ffmpeg encoder")

type vidioEncoder struct {
	w       *vidio.VideoWriter
	path    string
	started bool
	buf     []byte
}

// VidioEncoderFactory pipes RGBA frames into ffmpeg, which has to be on PATH. The
// container format follows the output extension.
//
// Vidio starts ffmpeg on the first frame, so the factory checks the codec and
// creates the output file up front. A failure of the first frame is reported as
// ErrEncoderOpen.
func VidioEncoderFactory(codec string) EncoderFactory {
	if codec == "" {
		codec = DefaultCodec
	}

	var (
		once     sync.Once
		codecErr error
	)
	return func(path string, width, height int, fps float64) (Encoder, error) {
		w, err := vidio.NewVideoWriter(path, width, height, &vidio.Options{
			FPS:   fps,
			Codec: codec,
		})
		if err != nil {
			return nil, err
		}

		once.Do(func() { codecErr = checkCodec(codec) })
		if codecErr != nil {
			return nil, codecErr
		}

		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, err
		}
		if err := out.Close(); err != nil {
			return nil, err
		}

		return &vidioEncoder{w: w, path: path}, nil
	}
}

// checkCodec looks codec up in the encoders listed by ffmpeg -encoders, one per
// line as "<flags> <name> <description>" after a dashed separator.
func checkCodec(codec string) error {
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		return fmt.Errorf("listing ffmpeg encoders: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	listed := false
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			if len(fields) == 1 && strings.HasPrefix(fields[0], "---") {
				listed = true
			}
			continue
		}
		if listed && fields[1] == codec {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
}

func (e *vidioEncoder) Write(f *frame.Frame) error {
	var err error
	if e.buf, err = f.RGBA(e.buf); err != nil {
		return err
	}

	if err := e.w.Write(e.buf); err != nil {
		if !e.started {
			return fmt.Errorf("%w: starting ffmpeg: %w", ErrEncoderOpen, err)
		}
		return err
	}
	e.started = true
	return nil
}

// Close waits for ffmpeg to exit. Vidio drops the exit status, so a run that
// received frames but left the output empty is reported as a failure.
func (e *vidioEncoder) Close() error {
	e.w.Close()
	if !e.started {
		return nil
	}

	info, err := os.Stat(e.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncoderWrite, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: ffmpeg wrote nothing to %s", ErrEncoderWrite, e.path)
	}
	return nil
}
