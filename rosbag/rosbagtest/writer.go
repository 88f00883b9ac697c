// Package rosbagtest writes small ROS bags for tests.
package rosbagtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/lherman-cs/bag2video/rosbag"
)

var endian = binary.LittleEndian

// bagHeaderLen is the fixed size of the bag header record, padding included.
const bagHeaderLen = 4096

type connection struct {
	id         uint32
	topic      string
	msgType    string
	definition string
}

type message struct {
	conn uint32
	t    time.Time
	data []byte
}

// Writer collects connections and messages and serializes them as a bag with a
// single chunk.
type Writer struct {
	compression rosbag.Compression
	indexed     bool

	conns []connection
	msgs  []message
}

// NewWriter returns a writer producing chunks compressed with compression, which must
// be rosbag.CompressionNone or rosbag.CompressionLZ4.
func NewWriter(compression rosbag.Compression) *Writer {
	return &Writer{
		compression: compression,
		indexed:     true,
	}
}

// Unindexed makes the writer leave index_pos at 0 and omit the index section, like a
// recording that was interrupted.
func (w *Writer) Unindexed() *Writer {
	w.indexed = false
	return w
}

func (w *Writer) AddConnection(id uint32, topic, msgType, definition string) {
	w.conns = append(w.conns, connection{id: id, topic: topic, msgType: msgType, definition: definition})
}

func (w *Writer) AddMessage(conn uint32, t time.Time, data []byte) {
	w.msgs = append(w.msgs, message{conn: conn, t: t, data: data})
}

// Bytes serializes the bag.
func (w *Writer) Bytes() ([]byte, error) {
	var chunk bytes.Buffer
	for _, conn := range w.conns {
		chunk.Write(connectionRecord(conn))
	}
	for _, msg := range w.msgs {
		chunk.Write(record(map[string][]byte{
			"op":   {byte(rosbag.OpMessageData)},
			"conn": u32(msg.conn),
			"time": rosTime(msg.t),
		}, msg.data))
	}

	var chunkData []byte
	switch w.compression {
	case rosbag.CompressionNone:
		chunkData = chunk.Bytes()
	case rosbag.CompressionLZ4:
		var compressed bytes.Buffer
		zw := lz4.NewWriter(&compressed)
		if _, err := zw.Write(chunk.Bytes()); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		chunkData = compressed.Bytes()
	default:
		return nil, fmt.Errorf("rosbagtest: unsupported compression %q", w.compression)
	}

	chunkRecord := record(map[string][]byte{
		"op":          {byte(rosbag.OpChunk)},
		"compression": []byte(w.compression),
		"size":        u32(uint32(chunk.Len())),
	}, chunkData)

	var index bytes.Buffer
	if w.indexed {
		for _, conn := range w.conns {
			index.Write(connectionRecord(conn))
		}
	}

	var out bytes.Buffer
	out.WriteString("#ROSBAG V2.0\n")
	headerPos := out.Len()

	var indexPos uint64
	if w.indexed {
		indexPos = uint64(headerPos + bagHeaderLen + len(chunkRecord))
	}
	out.Write(bagHeaderRecord(indexPos, uint32(len(w.conns))))
	out.Write(chunkRecord)
	out.Write(index.Bytes())
	return out.Bytes(), nil
}

func bagHeaderRecord(indexPos uint64, connCount uint32) []byte {
	header := encodeFields(map[string][]byte{
		"op":          {byte(rosbag.OpBagHeader)},
		"index_pos":   u64(indexPos),
		"conn_count":  u32(connCount),
		"chunk_count": u32(1),
	})
	padding := bytes.Repeat([]byte(" "), bagHeaderLen-2*4-len(header))
	return frameRecord(header, padding)
}

func connectionRecord(conn connection) []byte {
	data := encodeFields(map[string][]byte{
		"topic":              []byte(conn.topic),
		"type":               []byte(conn.msgType),
		"md5sum":             []byte("*"),
		"message_definition": []byte(conn.definition),
	})
	return record(map[string][]byte{
		"op":    {byte(rosbag.OpConnection)},
		"conn":  u32(conn.id),
		"topic": []byte(conn.topic),
	}, data)
}

func record(fields map[string][]byte, data []byte) []byte {
	return frameRecord(encodeFields(fields), data)
}

func frameRecord(header, data []byte) []byte {
	var b bytes.Buffer
	b.Write(u32(uint32(len(header))))
	b.Write(header)
	b.Write(u32(uint32(len(data))))
	b.Write(data)
	return b.Bytes()
}

// encodeFields writes len|name=value fields. "op" goes first, the rest follow in a
// fixed order so that bags are reproducible.
func encodeFields(fields map[string][]byte) []byte {
	keys := []string{"op", "index_pos", "conn_count", "chunk_count", "compression", "size",
		"conn", "time", "topic", "type", "md5sum", "message_definition"}

	var b bytes.Buffer
	for _, key := range keys {
		value, ok := fields[key]
		if !ok {
			continue
		}
		b.Write(u32(uint32(len(key) + 1 + len(value))))
		b.WriteString(key)
		b.WriteByte('=')
		b.Write(value)
	}
	return b.Bytes()
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	endian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	endian.PutUint64(b, v)
	return b
}

func rosTime(t time.Time) []byte {
	b := make([]byte, 8)
	nsec := t.UnixNano()
	endian.PutUint32(b, uint32(nsec/int64(time.Second)))
	endian.PutUint32(b[4:], uint32(nsec%int64(time.Second)))
	return b
}
