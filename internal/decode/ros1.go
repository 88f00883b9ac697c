package decode

import (
	"fmt"
	"time"

	"github.com/lherman-cs/bag2video/internal/container"
	"github.com/lherman-cs/bag2video/internal/frame"
	"github.com/lherman-cs/bag2video/rosbag"
)

// Definitions used when a connection carries none.
const (
	ros1HeaderDefinition = `
================================================================================
MSG: std_msgs/Header
uint32 seq
time stamp
string frame_id
`
	ros1ImageDefinition = `std_msgs/Header header
uint32 height
uint32 width
string encoding
uint8 is_bigendian
uint32 step
uint8[] data
` + ros1HeaderDefinition
	ros1CompressedImageDefinition = `std_msgs/Header header
string format
uint8[] data
` + ros1HeaderDefinition
)

type ros1Header struct {
	Stamp time.Time `rosbag:"stamp"`
}

type ros1Image struct {
	Header      ros1Header `rosbag:"header"`
	Height      uint32     `rosbag:"height"`
	Width       uint32     `rosbag:"width"`
	Encoding    string     `rosbag:"encoding"`
	IsBigEndian uint8      `rosbag:"is_bigendian"`
	Step        uint32     `rosbag:"step"`
	Data        []byte     `rosbag:"data"`
}

type ros1CompressedImage struct {
	Header ros1Header `rosbag:"header"`
	Format string     `rosbag:"format"`
	Data   []byte     `rosbag:"data"`
}

func parseDefinition(conn container.Connection, fallback string) (*rosbag.MessageDefinition, error) {
	text := conn.Definition
	if len(text) == 0 {
		text = []byte(fallback)
	}

	def, err := rosbag.ParseMessageDefinition(conn.Type, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedType, conn.Type, err)
	}
	return def, nil
}

func newROS1Image(conn container.Connection) (Decodable, error) {
	def, err := parseDefinition(conn, ros1ImageDefinition)
	if err != nil {
		return nil, err
	}

	return DecodeFunc(func(raw []byte, timestamp int64) (*frame.Frame, error) {
		var msg ros1Image
		if err := rosbag.Unmarshal(def, raw, &msg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}

		return validated(&frame.Frame{
			Width:     int(msg.Width),
			Height:    int(msg.Height),
			Encoding:  msg.Encoding,
			Step:      int(msg.Step),
			BigEndian: msg.IsBigEndian != 0,
			Data:      msg.Data,
			Timestamp: timestamp,
		})
	}), nil
}

func newROS1CompressedImage(conn container.Connection) (Decodable, error) {
	def, err := parseDefinition(conn, ros1CompressedImageDefinition)
	if err != nil {
		return nil, err
	}

	return DecodeFunc(func(raw []byte, timestamp int64) (*frame.Frame, error) {
		var msg ros1CompressedImage
		if err := rosbag.Unmarshal(def, raw, &msg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return decodeCompressed(msg.Format, msg.Data, timestamp)
	}), nil
}
