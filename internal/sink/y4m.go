package sink

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/lherman-cs/bag2video/internal/frame"
)

// y4mEncoder writes uncompressed YUV4MPEG2 with full resolution chroma.
type y4mEncoder struct {
	file  *os.File
	w     *bufio.Writer
	rgba  []byte
	plane []byte
}

func NewY4MEncoder(path string, width, height int, fps float64) (Encoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("y4m: invalid size %dx%d", width, height)
	}
	num, den := rational(fps)
	if num <= 0 {
		return nil, fmt.Errorf("y4m: invalid frame rate %f", fps)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	e := &y4mEncoder{
		file:  file,
		w:     bufio.NewWriter(file),
		plane: make([]byte, 3*width*height),
	}

	// YUV4MPEG2 W<width> H<height> F<fps_num>:<fps_den> Ip A<aspect> C<colorspace>
	if _, err := fmt.Fprintf(e.w, "YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C444\n", width, height, num, den); err != nil {
		file.Close()
		return nil, err
	}
	return e, nil
}

func (e *y4mEncoder) Write(f *frame.Frame) error {
	var err error
	if e.rgba, err = f.RGBA(e.rgba); err != nil {
		return err
	}

	n := f.Width * f.Height
	if len(e.plane) != 3*n {
		return fmt.Errorf("y4m: frame is %dx%d", f.Width, f.Height)
	}

	yPlane, cbPlane, crPlane := e.plane[:n], e.plane[n:2*n], e.plane[2*n:]
	for i := 0; i < n; i++ {
		px := e.rgba[4*i:]
		yPlane[i], cbPlane[i], crPlane[i] = color.RGBToYCbCr(px[0], px[1], px[2])
	}

	if _, err := e.w.WriteString("FRAME\n"); err != nil {
		return err
	}
	_, err = e.w.Write(e.plane)
	return err
}

func (e *y4mEncoder) Close() error {
	if err := e.w.Flush(); err != nil {
		e.file.Close()
		return err
	}
	return e.file.Close()
}

// rational approximates fps as num/den, exact for integer and NTSC rates.
func rational(fps float64) (num, den int) {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps <= 0 {
		return 0, 1
	}
	if fps == math.Trunc(fps) {
		return int(fps), 1
	}
	if ntsc := fps * 1.001; math.Abs(ntsc-math.Round(ntsc)) < 1e-6 {
		return int(math.Round(ntsc)) * 1000, 1001
	}
	return int(math.Round(fps * 1000)), 1000
}
