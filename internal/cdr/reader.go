// Package cdr reads XCDR1 encapsulated payloads, the serialization ROS 2 records
// messages in.
package cdr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const encapsulationLen = 4

var (
	ErrShortBuffer          = errors.New("cdr: short buffer")
	ErrInvalidEncapsulation = errors.New("cdr: invalid encapsulation header")
	errUnterminatedString   = errors.New("cdr: string is not NUL terminated")
)

// Encapsulation kinds, the second byte of the header. Only plain CDR is handled,
// parameter lists never appear in sensor_msgs.
const (
	kindCDRBigEndian    = 0x00
	kindCDRLittleEndian = 0x01
)

// Reader reads primitives from a CDR body. Alignment is relative to the first byte
// after the encapsulation header.
type Reader struct {
	order binary.ByteOrder
	body  []byte
	off   int
}

// NewReader parses the encapsulation header of raw.
func NewReader(raw []byte) (*Reader, error) {
	if len(raw) < encapsulationLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidEncapsulation, len(raw))
	}

	var order binary.ByteOrder
	switch raw[1] {
	case kindCDRBigEndian:
		order = binary.BigEndian
	case kindCDRLittleEndian:
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("%w: kind 0x%02x", ErrInvalidEncapsulation, raw[1])
	}

	return &Reader{
		order: order,
		body:  raw[encapsulationLen:],
	}, nil
}

// BigEndian reports whether the payload was serialized big endian.
func (r *Reader) BigEndian() bool {
	return r.order == binary.BigEndian
}

// Offset is the position in the body, header excluded.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining is the number of unread body bytes.
func (r *Reader) Remaining() int {
	return len(r.body) - r.off
}

func (r *Reader) align(n int) error {
	if rem := r.off % n; rem != 0 {
		pad := n - rem
		if r.Remaining() < pad {
			return ErrShortBuffer
		}
		r.off += pad
	}
	return nil
}

func (r *Reader) next(size int) ([]byte, error) {
	if err := r.align(size); err != nil {
		return nil, err
	}
	if r.Remaining() < size {
		return nil, ErrShortBuffer
	}
	b := r.body[r.off : r.off+size]
	r.off += size
	return b, nil
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	return v != 0, err
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	return math.Float64frombits(v), err
}

// String reads a length prefixed string. The length counts the trailing NUL, which
// is not part of the result.
func (r *Reader) String() (string, error) {
	n, err := r.Uint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if uint64(n) > uint64(r.Remaining()) {
		return "", ErrShortBuffer
	}

	b := r.body[r.off : r.off+int(n)]
	if b[n-1] != 0 {
		return "", errUnterminatedString
	}
	r.off += int(n)
	return string(b[:n-1]), nil
}

// Bytes reads a sequence<uint8>. The result aliases the payload.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: sequence of %d bytes, %d left", ErrShortBuffer, n, r.Remaining())
	}

	b := r.body[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

// Time reads a builtin_interfaces/Time as nanoseconds since the epoch.
func (r *Reader) Time() (int64, error) {
	sec, err := r.Int32()
	if err != nil {
		return 0, err
	}
	nsec, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return int64(sec)*1e9 + int64(nsec), nil
}
