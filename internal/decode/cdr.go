package decode

import (
	"fmt"

	"github.com/lherman-cs/bag2video/internal/cdr"
	"github.com/lherman-cs/bag2video/internal/container"
	"github.com/lherman-cs/bag2video/internal/frame"
)

// skipHeader reads past a std_msgs/msg/Header.
func skipHeader(r *cdr.Reader) error {
	if _, err := r.Time(); err != nil {
		return err
	}
	_, err := r.String()
	return err
}

func newCDRImage(container.Connection) (Decodable, error) {
	return DecodeFunc(decodeCDRImage), nil
}

func decodeCDRImage(raw []byte, timestamp int64) (*frame.Frame, error) {
	f, err := readCDRImage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: sensor_msgs/msg/Image: %w", ErrDecode, err)
	}
	f.Timestamp = timestamp
	return validated(f)
}

func readCDRImage(raw []byte) (*frame.Frame, error) {
	r, err := cdr.NewReader(raw)
	if err != nil {
		return nil, err
	}
	if err := skipHeader(r); err != nil {
		return nil, err
	}

	height, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	width, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	encoding, err := r.String()
	if err != nil {
		return nil, err
	}
	bigEndian, err := r.Bool()
	if err != nil {
		return nil, err
	}
	step, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	data, err := r.Bytes()
	if err != nil {
		return nil, err
	}

	return &frame.Frame{
		Width:     int(width),
		Height:    int(height),
		Encoding:  encoding,
		Step:      int(step),
		BigEndian: bigEndian,
		Data:      data,
	}, nil
}

func newCDRCompressedImage(container.Connection) (Decodable, error) {
	return DecodeFunc(decodeCDRCompressedImage), nil
}

func decodeCDRCompressedImage(raw []byte, timestamp int64) (*frame.Frame, error) {
	format, data, err := readCDRCompressedImage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: sensor_msgs/msg/CompressedImage: %w", ErrDecode, err)
	}
	return decodeCompressed(format, data, timestamp)
}

func readCDRCompressedImage(raw []byte) (string, []byte, error) {
	r, err := cdr.NewReader(raw)
	if err != nil {
		return "", nil, err
	}
	if err := skipHeader(r); err != nil {
		return "", nil, err
	}

	format, err := r.String()
	if err != nil {
		return "", nil, err
	}
	data, err := r.Bytes()
	if err != nil {
		return "", nil, err
	}
	return format, data, nil
}
