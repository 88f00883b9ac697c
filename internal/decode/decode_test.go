package decode_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	fuzz "github.com/google/gofuzz"

	"github.com/lherman-cs/bag2video/internal/container"
	"github.com/lherman-cs/bag2video/internal/container/containertest"
	"github.com/lherman-cs/bag2video/internal/decode"
	"github.com/lherman-cs/bag2video/internal/frame"
	"github.com/lherman-cs/bag2video/rosbag/rosbagtest"
)

var (
	ros1Image = container.Connection{
		Topic:      "/image_raw",
		Type:       "sensor_msgs/Image",
		Encoding:   container.EncodingROS1,
		Definition: []byte(rosbagtest.ImageDefinition),
	}
	ros1Compressed = container.Connection{
		Topic:      "/image_raw/compressed",
		Type:       "sensor_msgs/CompressedImage",
		Encoding:   container.EncodingROS1,
		Definition: []byte(rosbagtest.CompressedImageDefinition),
	}
	cdrImage = container.Connection{
		Topic:    "/image_raw",
		Type:     "sensor_msgs/msg/Image",
		Encoding: container.EncodingCDR,
	}
	cdrCompressed = container.Connection{
		Topic:    "/image_raw/compressed",
		Type:     "sensor_msgs/msg/CompressedImage",
		Encoding: container.EncodingCDR,
	}
)

func encodePNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{B: 255, A: 255})
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		t.Fatal(err)
	}
	return b.Bytes()
}

func TestDecode(t *testing.T) {
	pixels := []byte{1, 2, 3, 0, 4, 5, 6, 0}
	pngData := encodePNG(t)
	compressedFrame := frame.Frame{
		Width: 2, Height: 1, Encoding: frame.RGBA8, Step: 8, Timestamp: 42,
		Data: []byte{255, 0, 0, 255, 0, 0, 255, 255},
	}

	testCases := []struct {
		Name     string
		Conn     container.Connection
		Raw      []byte
		Expected frame.Frame
	}{
		{
			Name: "ROS1 Image",
			Conn: ros1Image,
			Raw: rosbagtest.Image{
				Stamp: time.Unix(1, 0), FrameID: "cam", Height: 2, Width: 1,
				Encoding: "rgb8", Step: 4, Data: pixels,
			}.Marshal(),
			Expected: frame.Frame{Width: 1, Height: 2, Encoding: frame.RGB8, Step: 4, Data: pixels, Timestamp: 42},
		},
		{
			Name: "ROS1 Image Without Definition",
			Conn: container.Connection{Type: "sensor_msgs/Image", Encoding: container.EncodingROS1},
			Raw: rosbagtest.Image{
				Height: 1, Width: 1, Encoding: "mono16", BigEndian: true, Step: 2, Data: []byte{1, 2},
			}.Marshal(),
			Expected: frame.Frame{Width: 1, Height: 1, Encoding: frame.Mono16, Step: 2, BigEndian: true, Data: []byte{1, 2}, Timestamp: 42},
		},
		{
			Name:     "ROS1 CompressedImage",
			Conn:     ros1Compressed,
			Raw:      rosbagtest.CompressedImage{Format: "png", Data: pngData}.Marshal(),
			Expected: compressedFrame,
		},
		{
			Name: "CDR Image",
			Conn: cdrImage,
			Raw: containertest.Image{
				Stamp: 1, FrameID: "camera_optical_frame", Height: 2, Width: 1,
				Encoding: "bgr8", Step: 4, Data: pixels,
			}.Marshal(),
			Expected: frame.Frame{Width: 1, Height: 2, Encoding: frame.BGR8, Step: 4, Data: pixels, Timestamp: 42},
		},
		{
			Name:     "CDR CompressedImage",
			Conn:     cdrCompressed,
			Raw:      containertest.CompressedImage{Format: "png", Data: pngData}.Marshal(),
			Expected: compressedFrame,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			decoder, err := decode.For(testCase.Conn)
			if err != nil {
				t.Fatal(err)
			}

			f, err := decoder.Decode(testCase.Raw, 42)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(testCase.Expected, *f); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		Name string
		Conn container.Connection
		Raw  []byte
	}{
		{
			Name: "Unsupported Encoding",
			Conn: cdrImage,
			Raw:  containertest.Image{Height: 1, Width: 1, Encoding: "bayer_rggb8", Step: 1, Data: []byte{1}}.Marshal(),
		},
		{
			Name: "Short Data",
			Conn: cdrImage,
			Raw:  containertest.Image{Height: 2, Width: 2, Encoding: "mono8", Step: 2, Data: []byte{1, 2}}.Marshal(),
		},
		{
			Name: "Short Step",
			Conn: ros1Image,
			Raw:  rosbagtest.Image{Height: 1, Width: 2, Encoding: "rgb8", Step: 3, Data: make([]byte, 6)}.Marshal(),
		},
		{
			Name: "Truncated",
			Conn: ros1Image,
			Raw:  rosbagtest.Image{Height: 1, Width: 1, Encoding: "mono8", Step: 1, Data: []byte{1}}.Marshal()[:20],
		},
		{
			Name: "Not An Image",
			Conn: cdrCompressed,
			Raw:  containertest.CompressedImage{Format: "jpeg", Data: []byte("garbage")}.Marshal(),
		},
		{
			Name: "Bad Encapsulation",
			Conn: cdrImage,
			Raw:  []byte{0, 7, 0, 0},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			decoder, err := decode.For(testCase.Conn)
			if err != nil {
				t.Fatal(err)
			}

			if _, err := decoder.Decode(testCase.Raw, 0); !errors.Is(err, decode.ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestForUnsupportedType(t *testing.T) {
	for _, conn := range []container.Connection{
		{Type: "sensor_msgs/Imu", Encoding: container.EncodingROS1},
		{Type: "sensor_msgs/Image", Encoding: container.EncodingCDR},
		{Type: "sensor_msgs/msg/Image", Encoding: "protobuf"},
	} {
		if _, err := decode.For(conn); !errors.Is(err, decode.ErrUnsupportedType) {
			t.Fatalf("%+v: expected ErrUnsupportedType, got %v", conn, err)
		}
	}
}

func TestDecodeRandomInput(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(0, 256)
	for _, conn := range []container.Connection{ros1Image, ros1Compressed, cdrImage, cdrCompressed} {
		decoder, err := decode.For(conn)
		if err != nil {
			t.Fatal(err)
		}

		for i := 0; i < 500; i++ {
			var raw []byte
			f.Fuzz(&raw)
			if decoded, err := decoder.Decode(raw, 0); err == nil {
				if err := decoded.Validate(); err != nil {
					t.Fatalf("%s: decoded an invalid frame: %v", conn.Type, err)
				}
			}
		}
	}
}
