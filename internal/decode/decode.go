// Package decode turns image messages into frames.
package decode

import (
	"errors"
	"fmt"

	"github.com/lherman-cs/bag2video/internal/container"
	"github.com/lherman-cs/bag2video/internal/frame"
)

var (
	ErrUnsupportedType = errors.New("decode: unsupported message type")
	ErrDecode          = errors.New("decode: failed to decode message")
)

// Decodable decodes the raw messages of one connection. The returned frame may alias
// raw.
type Decodable interface {
	Decode(raw []byte, timestamp int64) (*frame.Frame, error)
}

type DecodeFunc func(raw []byte, timestamp int64) (*frame.Frame, error)

func (fn DecodeFunc) Decode(raw []byte, timestamp int64) (*frame.Frame, error) {
	return fn(raw, timestamp)
}

type key struct {
	encoding string
	msgType  string
}

var factories = map[key]func(conn container.Connection) (Decodable, error){
	{container.EncodingROS1, "sensor_msgs/Image"}:              newROS1Image,
	{container.EncodingROS1, "sensor_msgs/CompressedImage"}:    newROS1CompressedImage,
	{container.EncodingCDR, "sensor_msgs/msg/Image"}:           newCDRImage,
	{container.EncodingCDR, "sensor_msgs/msg/CompressedImage"}: newCDRCompressedImage,
}

// For picks the decoder of conn from its message encoding and type.
func For(conn container.Connection) (Decodable, error) {
	factory, ok := factories[key{conn.Encoding, conn.Type}]
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, conn.Type, conn.Encoding)
	}
	return factory(conn)
}

// validated checks f before it leaves the package, every failure is a decode error.
func validated(f *frame.Frame) (*frame.Frame, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return f, nil
}
