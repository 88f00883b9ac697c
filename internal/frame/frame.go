// Package frame holds decoded raw images and converts them to the layouts encoders
// and image codecs want.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
)

var (
	ErrUnsupportedEncoding = errors.New("frame: unsupported pixel encoding")
	ErrInvalidFrame        = errors.New("frame: invalid frame")
)

// Pixel encodings, named as in sensor_msgs/image_encodings.
const (
	RGB8   = "rgb8"
	BGR8   = "bgr8"
	RGBA8  = "rgba8"
	BGRA8  = "bgra8"
	Mono8  = "mono8"
	Mono16 = "mono16"
	UC1    = "8UC1"
	UC3    = "8UC3"
	UC4    = "8UC4"
	U16C1  = "16UC1"
	YUV422 = "yuv422"
)

var bytesPerPixel = map[string]int{
	RGB8:   3,
	BGR8:   3,
	RGBA8:  4,
	BGRA8:  4,
	Mono8:  1,
	Mono16: 2,
	UC1:    1,
	UC3:    3,
	UC4:    4,
	U16C1:  2,
	YUV422: 2,
}

// BytesPerPixel returns the pixel size of encoding.
func BytesPerPixel(encoding string) (int, error) {
	bpp, ok := bytesPerPixel[encoding]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
	return bpp, nil
}

// Frame is one decoded image. Data may alias the message it was decoded from.
type Frame struct {
	Width     int
	Height    int
	Encoding  string
	Step      int
	BigEndian bool
	Data      []byte
	// Timestamp in nanoseconds, as recorded by the container.
	Timestamp int64
}

func (f *Frame) Validate() error {
	bpp, err := BytesPerPixel(f.Encoding)
	if err != nil {
		return err
	}

	switch {
	case f.Width <= 0 || f.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidFrame, f.Width, f.Height)
	case f.Encoding == YUV422 && f.Width%2 != 0:
		return fmt.Errorf("%w: yuv422 needs an even width, got %d", ErrInvalidFrame, f.Width)
	case f.Step < 0 || uint64(f.Step) < uint64(f.Width)*uint64(bpp):
		return fmt.Errorf("%w: step %d is less than %d*%d", ErrInvalidFrame, f.Step, f.Width, bpp)
	case uint64(len(f.Data)) < uint64(f.Step)*uint64(f.Height):
		return fmt.Errorf("%w: %d bytes of data for step %d and height %d", ErrInvalidFrame, len(f.Data), f.Step, f.Height)
	}
	return nil
}

// Clone returns a frame that owns a copy of the pixel data. f must be valid.
func (f *Frame) Clone() *Frame {
	clone := *f
	clone.Data = append([]byte(nil), f.Data[:f.Step*f.Height]...)
	return &clone
}

// FromImage packs img as an rgba8 frame.
func FromImage(img image.Image, timestamp int64) *Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				rgba.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}

	return &Frame{
		Width:     b.Dx(),
		Height:    b.Dy(),
		Encoding:  RGBA8,
		Step:      rgba.Stride,
		Data:      rgba.Pix,
		Timestamp: timestamp,
	}
}

// Image returns the frame as the closest Go image type. Gray and 8 bit color
// encodings keep their pixel values; yuv422 is converted to RGB.
func (f *Frame) Image() (image.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Encoding {
	case Mono8, UC1:
		img := image.NewGray(rect)
		for y := 0; y < f.Height; y++ {
			copy(img.Pix[y*img.Stride:], f.row(y)[:f.Width])
		}
		return img, nil
	case Mono16, U16C1:
		img := image.NewGray16(rect)
		for y := 0; y < f.Height; y++ {
			row := f.row(y)
			for x := 0; x < f.Width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: f.uint16At(row[2*x:])})
			}
		}
		return img, nil
	case RGBA8, BGRA8, UC4:
		// alpha is stored straight, not premultiplied
		img := image.NewNRGBA(rect)
		f.pack(img.Pix, img.Stride, true)
		return img, nil
	default:
		img := image.NewRGBA(rect)
		f.pack(img.Pix, img.Stride, false)
		return img, nil
	}
}

// RGBA packs the frame into dst as tightly packed 8 bit RGBA, growing dst when it is
// too small, and returns it.
func (f *Frame) RGBA(dst []byte) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	n := f.Width * f.Height * 4
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	f.pack(dst, f.Width*4, false)
	return dst, nil
}

func (f *Frame) row(y int) []byte {
	return f.Data[y*f.Step : (y+1)*f.Step]
}

func (f *Frame) uint16At(b []byte) uint16 {
	if f.BigEndian {
		return binary.BigEndian.Uint16(b)
	}
	return binary.LittleEndian.Uint16(b)
}

// pack writes RGBA rows of stride bytes into dst. When keepAlpha is false the alpha
// channel of 4 channel encodings is dropped and the result is opaque.
func (f *Frame) pack(dst []byte, stride int, keepAlpha bool) {
	for y := 0; y < f.Height; y++ {
		row := f.row(y)
		out := dst[y*stride : y*stride+f.Width*4]
		for x := 0; x < f.Width; x++ {
			var r, g, b, a byte = 0, 0, 0, 0xff
			switch f.Encoding {
			case RGB8, UC3:
				r, g, b = row[3*x], row[3*x+1], row[3*x+2]
			case BGR8:
				b, g, r = row[3*x], row[3*x+1], row[3*x+2]
			case RGBA8, UC4:
				r, g, b = row[4*x], row[4*x+1], row[4*x+2]
				if keepAlpha {
					a = row[4*x+3]
				}
			case BGRA8:
				b, g, r = row[4*x], row[4*x+1], row[4*x+2]
				if keepAlpha {
					a = row[4*x+3]
				}
			case Mono8, UC1:
				r = row[x]
				g, b = r, r
			case Mono16, U16C1:
				r = byte(f.uint16At(row[2*x:]) >> 8)
				g, b = r, r
			case YUV422:
				// UYVY, a pair of pixels shares U and V
				pair := row[4*(x/2):]
				yy := pair[1]
				if x%2 == 1 {
					yy = pair[3]
				}
				r, g, b = color.YCbCrToRGB(yy, pair[0], pair[2])
			}
			out[4*x], out[4*x+1], out[4*x+2], out[4*x+3] = r, g, b, a
		}
	}
}
