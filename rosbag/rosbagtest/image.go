package rosbagtest

import (
	"bytes"
	"time"
)

const headerDefinition = `
================================================================================
MSG: std_msgs/Header
# Standard metadata for higher-level stamped data types.
uint32 seq
time stamp
string frame_id
`

// ImageDefinition is the message_definition of sensor_msgs/Image as recorded by rosbag.
const ImageDefinition = `# This message contains an uncompressed image
std_msgs/Header header
uint32 height         # image height, that is, number of rows
uint32 width          # image width, that is, number of columns
string encoding       # Encoding of pixels -- channel meaning, ordering, size
uint8 is_bigendian    # is this data bigendian?
uint32 step           # Full row length in bytes
uint8[] data          # actual matrix data, size is (step * rows)
` + headerDefinition

// CompressedImageDefinition is the message_definition of sensor_msgs/CompressedImage.
const CompressedImageDefinition = `std_msgs/Header header
string format
uint8[] data
` + headerDefinition

// Image is a sensor_msgs/Image.
type Image struct {
	Seq       uint32
	Stamp     time.Time
	FrameID   string
	Height    uint32
	Width     uint32
	Encoding  string
	BigEndian bool
	Step      uint32
	Data      []byte
}

func (img Image) Marshal() []byte {
	var b bytes.Buffer
	writeHeader(&b, img.Seq, img.Stamp, img.FrameID)
	b.Write(u32(img.Height))
	b.Write(u32(img.Width))
	writeString(&b, img.Encoding)
	if img.BigEndian {
		b.WriteByte(1)
	} else {
		b.WriteByte(0)
	}
	b.Write(u32(img.Step))
	b.Write(u32(uint32(len(img.Data))))
	b.Write(img.Data)
	return b.Bytes()
}

// CompressedImage is a sensor_msgs/CompressedImage.
type CompressedImage struct {
	Seq     uint32
	Stamp   time.Time
	FrameID string
	Format  string
	Data    []byte
}

func (img CompressedImage) Marshal() []byte {
	var b bytes.Buffer
	writeHeader(&b, img.Seq, img.Stamp, img.FrameID)
	writeString(&b, img.Format)
	b.Write(u32(uint32(len(img.Data))))
	b.Write(img.Data)
	return b.Bytes()
}

func writeHeader(b *bytes.Buffer, seq uint32, stamp time.Time, frameID string) {
	b.Write(u32(seq))
	b.Write(rosTime(stamp))
	writeString(b, frameID)
}

func writeString(b *bytes.Buffer, s string) {
	b.Write(u32(uint32(len(s))))
	b.WriteString(s)
}
