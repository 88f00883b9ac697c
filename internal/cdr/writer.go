package cdr

import (
	"encoding/binary"
)

// Writer serializes a CDR payload, encapsulation header included. It mirrors Reader
// and exists mostly to build fixtures.
type Writer struct {
	order binary.AppendByteOrder
	buf   []byte
}

func NewWriter(bigEndian bool) *Writer {
	w := &Writer{order: binary.LittleEndian}
	kind := byte(kindCDRLittleEndian)
	if bigEndian {
		w.order = binary.BigEndian
		kind = kindCDRBigEndian
	}
	w.buf = []byte{0, kind, 0, 0}
	return w
}

func (w *Writer) align(n int) {
	for (len(w.buf)-encapsulationLen)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) Uint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) Uint32(v uint32) {
	w.align(4)
	w.buf = w.order.AppendUint32(w.buf, v)
}

func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

func (w *Writer) Uint64(v uint64) {
	w.align(8)
	w.buf = w.order.AppendUint64(w.buf, v)
}

func (w *Writer) String(s string) {
	w.Uint32(uint32(len(s) + 1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *Writer) Bytes(b []byte) {
	w.Uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Time writes nanoseconds since the epoch as a builtin_interfaces/Time.
func (w *Writer) Time(ns int64) {
	w.Int32(int32(ns / 1e9))
	w.Uint32(uint32(ns % 1e9))
}

// Payload returns the serialized message.
func (w *Writer) Payload() []byte {
	return w.buf
}
