// Package containertest writes MCAP fixtures and the ROS 2 messages they carry.
package containertest

import (
	"os"

	"github.com/foxglove/mcap/go/mcap"

	"github.com/lherman-cs/bag2video/internal/cdr"
)

type Channel struct {
	Topic    string
	Type     string
	Encoding string
	// Definition defaults to an empty schema.
	Definition []byte
}

type Message struct {
	// Channel is an index into the channels passed to WriteMCAP.
	Channel int
	LogTime uint64
	Data    []byte
}

// WriteMCAP writes a chunked, lz4 compressed and indexed MCAP file with the ros2
// profile.
func WriteMCAP(path string, channels []Channel, msgs []Message) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := mcap.NewWriter(f, &mcap.WriterOptions{
		Chunked:     true,
		ChunkSize:   1024,
		Compression: mcap.CompressionLZ4,
	})
	if err != nil {
		return err
	}

	if err := w.WriteHeader(&mcap.Header{Profile: "ros2", Library: "containertest"}); err != nil {
		return err
	}

	for i, ch := range channels {
		id := uint16(i + 1)
		if err := w.WriteSchema(&mcap.Schema{
			ID:       id,
			Name:     ch.Type,
			Encoding: "ros2msg",
			Data:     ch.Definition,
		}); err != nil {
			return err
		}

		encoding := ch.Encoding
		if encoding == "" {
			encoding = "cdr"
		}
		if err := w.WriteChannel(&mcap.Channel{
			ID:              id,
			SchemaID:        id,
			Topic:           ch.Topic,
			MessageEncoding: encoding,
		}); err != nil {
			return err
		}
	}

	for i, msg := range msgs {
		if err := w.WriteMessage(&mcap.Message{
			ChannelID:   uint16(msg.Channel + 1),
			Sequence:    uint32(i),
			LogTime:     msg.LogTime,
			PublishTime: msg.LogTime,
			Data:        msg.Data,
		}); err != nil {
			return err
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

// Image serializes a sensor_msgs/msg/Image.
type Image struct {
	Stamp     int64
	FrameID   string
	Height    uint32
	Width     uint32
	Encoding  string
	BigEndian bool
	Step      uint32
	Data      []byte
}

func (img Image) Marshal() []byte {
	w := cdr.NewWriter(false)
	w.Time(img.Stamp)
	w.String(img.FrameID)
	w.Uint32(img.Height)
	w.Uint32(img.Width)
	w.String(img.Encoding)
	if img.BigEndian {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
	w.Uint32(img.Step)
	w.Bytes(img.Data)
	return w.Payload()
}

// CompressedImage serializes a sensor_msgs/msg/CompressedImage.
type CompressedImage struct {
	Stamp   int64
	FrameID string
	Format  string
	Data    []byte
}

func (img CompressedImage) Marshal() []byte {
	w := cdr.NewWriter(false)
	w.Time(img.Stamp)
	w.String(img.FrameID)
	w.String(img.Format)
	w.Bytes(img.Data)
	return w.Payload()
}
