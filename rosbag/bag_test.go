package rosbag_test

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lherman-cs/bag2video/rosbag"
	"github.com/lherman-cs/bag2video/rosbag/rosbagtest"
)

type image struct {
	Header struct {
		Seq     uint32    `rosbag:"seq"`
		Stamp   time.Time `rosbag:"stamp"`
		FrameID string    `rosbag:"frame_id"`
	} `rosbag:"header"`
	Height   uint32 `rosbag:"height"`
	Width    uint32 `rosbag:"width"`
	Encoding string `rosbag:"encoding"`
	Step     uint32 `rosbag:"step"`
	Data     []byte `rosbag:"data"`
}

func writeBag(t *testing.T, w *rosbagtest.Writer) []byte {
	t.Helper()

	w.AddConnection(0, "/chatter", "std_msgs/String", "string data\n")
	w.AddConnection(1, "/camera/image_raw", "sensor_msgs/Image", rosbagtest.ImageDefinition)
	for i := 0; i < 3; i++ {
		img := rosbagtest.Image{
			Seq:      uint32(i),
			Stamp:    time.Unix(100, int64(i)),
			FrameID:  "camera",
			Height:   2,
			Width:    2,
			Encoding: "mono8",
			Step:     2,
			Data:     []byte{byte(i), 1, 2, 3},
		}
		w.AddMessage(1, time.Unix(100, int64(i)*int64(time.Millisecond)), img.Marshal())
		w.AddMessage(0, time.Unix(100, int64(i)*int64(time.Millisecond)), []byte{5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'})
	}

	raw, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestBag(t *testing.T) {
	testCases := []struct {
		Name   string
		Writer *rosbagtest.Writer
	}{
		{Name: "Uncompressed", Writer: rosbagtest.NewWriter(rosbag.CompressionNone)},
		{Name: "LZ4", Writer: rosbagtest.NewWriter(rosbag.CompressionLZ4)},
		{Name: "Unindexed", Writer: rosbagtest.NewWriter(rosbag.CompressionNone).Unindexed()},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			raw := writeBag(t, testCase.Writer)

			bag, err := rosbag.Open(bytes.NewReader(raw))
			if err != nil {
				t.Fatal(err)
			}

			conns, err := bag.Connections()
			if err != nil {
				t.Fatal(err)
			}

			var topics []string
			for _, conn := range conns {
				topics = append(topics, conn.Topic)
			}
			if diff := cmp.Diff([]string{"/chatter", "/camera/image_raw"}, topics); diff != "" {
				t.Fatal(diff)
			}

			if conns[1].Type != "sensor_msgs/Image" || len(conns[1].MessageDefinition.Fields) != 7 {
				t.Fatalf("unexpected connection header: %+v", conns[1].ConnectionHeader)
			}

			it, err := bag.Messages(conns[1].ID)
			if err != nil {
				t.Fatal(err)
			}
			defer it.Close()

			var seqs []uint32
			var firstPixels []byte
			for {
				msg, err := it.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatal(err)
				}

				var img image
				if err := msg.UnmarshallTo(&img); err != nil {
					t.Fatal(err)
				}

				if img.Header.FrameID != "camera" || img.Width != 2 || img.Encoding != "mono8" {
					t.Fatalf("unexpected image: %+v", img)
				}
				seqs = append(seqs, img.Header.Seq)
				firstPixels = append(firstPixels, img.Data[0])
			}

			if diff := cmp.Diff([]uint32{0, 1, 2}, seqs); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff([]byte{0, 1, 2}, firstPixels); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestBagMessageTime(t *testing.T) {
	w := rosbagtest.NewWriter(rosbag.CompressionNone)
	w.AddConnection(3, "/t", "std_msgs/Empty", "")
	w.AddMessage(3, time.Unix(12, 345), nil)
	raw, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	bag, err := rosbag.Open(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}

	it, err := bag.Messages()
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	msg, err := it.Next()
	if err != nil {
		t.Fatal(err)
	}

	ts, err := msg.Time()
	if err != nil {
		t.Fatal(err)
	}
	if !ts.Equal(time.Unix(12, 345)) {
		t.Fatalf("expected 12.000000345, got %v", ts)
	}

	if _, err := it.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestBagMalformed(t *testing.T) {
	raw := writeBag(t, rosbagtest.NewWriter(rosbag.CompressionNone).Unindexed())

	t.Run("Bad Magic", func(t *testing.T) {
		bad := append([]byte("#NOTABAG V2.0\n"), raw[13:]...)
		if _, err := rosbag.Open(bytes.NewReader(bad)); !errors.Is(err, rosbag.ErrInvalidMagic) {
			t.Fatalf("expected ErrInvalidMagic, got %v", err)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		truncated := raw[:len(raw)-3]
		bag, err := rosbag.Open(bytes.NewReader(truncated))
		if err != nil {
			t.Fatal(err)
		}

		if _, err := bag.Connections(); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
		}
	})

	t.Run("Index Past End", func(t *testing.T) {
		indexed := writeBag(t, rosbagtest.NewWriter(rosbag.CompressionNone))
		// cut the bag in the middle of the chunk, index_pos now points past the end
		if _, err := rosbag.Open(bytes.NewReader(indexed[:4500])); !errors.Is(err, rosbag.ErrInvalidFormat) {
			t.Fatalf("expected ErrInvalidFormat, got %v", err)
		}
	})
}
