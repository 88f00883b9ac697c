package decode

import (
	"bytes"
	"fmt"
	"image"

	// registered for image.Decode
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lherman-cs/bag2video/internal/frame"
)

// decodeCompressed decodes a CompressedImage payload into an rgba8 frame. The codec is
// sniffed from the data, format ("jpeg", "png", "bgr8; jpeg compressed bgr8", ...) is
// only used in errors.
func decodeCompressed(format string, data []byte, timestamp int64) (*frame.Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: compressed image (%s): %w", ErrDecode, format, err)
	}
	return validated(frame.FromImage(img, timestamp))
}
