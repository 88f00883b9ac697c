package rosbag

import (
	"math"
	"unsafe"
)

type fieldDecodeFunc func(raw []byte, length int) (v interface{}, off int, ok bool)

var fieldDecodeBasicHelper = map[MessageFieldType]fieldDecodeFunc{
	MessageFieldTypeBool:     fieldDecodeFixed(1, func(b []byte) interface{} { return b[0] != 0 }),
	MessageFieldTypeInt8:     fieldDecodeFixed(1, func(b []byte) interface{} { return int8(b[0]) }),
	MessageFieldTypeUint8:    fieldDecodeFixed(1, func(b []byte) interface{} { return b[0] }),
	MessageFieldTypeInt16:    fieldDecodeFixed(2, func(b []byte) interface{} { return int16(endian.Uint16(b)) }),
	MessageFieldTypeUint16:   fieldDecodeFixed(2, func(b []byte) interface{} { return endian.Uint16(b) }),
	MessageFieldTypeInt32:    fieldDecodeFixed(4, func(b []byte) interface{} { return int32(endian.Uint32(b)) }),
	MessageFieldTypeUint32:   fieldDecodeFixed(4, func(b []byte) interface{} { return endian.Uint32(b) }),
	MessageFieldTypeInt64:    fieldDecodeFixed(8, func(b []byte) interface{} { return int64(endian.Uint64(b)) }),
	MessageFieldTypeUint64:   fieldDecodeFixed(8, func(b []byte) interface{} { return endian.Uint64(b) }),
	MessageFieldTypeFloat32:  fieldDecodeFixed(4, func(b []byte) interface{} { return math.Float32frombits(endian.Uint32(b)) }),
	MessageFieldTypeFloat64:  fieldDecodeFixed(8, func(b []byte) interface{} { return math.Float64frombits(endian.Uint64(b)) }),
	MessageFieldTypeString:   fieldDecodeString,
	MessageFieldTypeTime:     fieldDecodeFixed(8, func(b []byte) interface{} { return extractTime(b) }),
	MessageFieldTypeDuration: fieldDecodeFixed(8, func(b []byte) interface{} { return extractDuration(b) }),
}

var fieldDecodeSliceHelper map[MessageFieldType]fieldDecodeFunc

// initFieldSliceDecoder picks the slice decoders. When the host byte order matches the
// bag's, numeric slices alias the raw buffer instead of being copied element by element.
func initFieldSliceDecoder(fastMode bool) {
	fieldDecodeSliceHelper = map[MessageFieldType]fieldDecodeFunc{
		MessageFieldTypeBool:     fieldDecodeSliceSlow(1, func(b []byte) bool { return b[0] != 0 }),
		MessageFieldTypeInt8:     fieldDecodeSliceFast[int8](1),
		MessageFieldTypeUint8:    fieldDecodeSliceFast[uint8](1),
		MessageFieldTypeString:   fieldDecodeStringSlice,
		MessageFieldTypeTime:     fieldDecodeSliceSlow(8, extractTime),
		MessageFieldTypeDuration: fieldDecodeSliceSlow(8, extractDuration),
	}

	if fastMode {
		fieldDecodeSliceHelper[MessageFieldTypeInt16] = fieldDecodeSliceFast[int16](2)
		fieldDecodeSliceHelper[MessageFieldTypeUint16] = fieldDecodeSliceFast[uint16](2)
		fieldDecodeSliceHelper[MessageFieldTypeInt32] = fieldDecodeSliceFast[int32](4)
		fieldDecodeSliceHelper[MessageFieldTypeUint32] = fieldDecodeSliceFast[uint32](4)
		fieldDecodeSliceHelper[MessageFieldTypeInt64] = fieldDecodeSliceFast[int64](8)
		fieldDecodeSliceHelper[MessageFieldTypeUint64] = fieldDecodeSliceFast[uint64](8)
		fieldDecodeSliceHelper[MessageFieldTypeFloat32] = fieldDecodeSliceFast[float32](4)
		fieldDecodeSliceHelper[MessageFieldTypeFloat64] = fieldDecodeSliceFast[float64](8)
		return
	}

	fieldDecodeSliceHelper[MessageFieldTypeInt16] = fieldDecodeSliceSlow(2, func(b []byte) int16 { return int16(endian.Uint16(b)) })
	fieldDecodeSliceHelper[MessageFieldTypeUint16] = fieldDecodeSliceSlow(2, endian.Uint16)
	fieldDecodeSliceHelper[MessageFieldTypeInt32] = fieldDecodeSliceSlow(4, func(b []byte) int32 { return int32(endian.Uint32(b)) })
	fieldDecodeSliceHelper[MessageFieldTypeUint32] = fieldDecodeSliceSlow(4, endian.Uint32)
	fieldDecodeSliceHelper[MessageFieldTypeInt64] = fieldDecodeSliceSlow(8, func(b []byte) int64 { return int64(endian.Uint64(b)) })
	fieldDecodeSliceHelper[MessageFieldTypeUint64] = fieldDecodeSliceSlow(8, endian.Uint64)
	fieldDecodeSliceHelper[MessageFieldTypeFloat32] = fieldDecodeSliceSlow(4, func(b []byte) float32 { return math.Float32frombits(endian.Uint32(b)) })
	fieldDecodeSliceHelper[MessageFieldTypeFloat64] = fieldDecodeSliceSlow(8, func(b []byte) float64 { return math.Float64frombits(endian.Uint64(b)) })
}

func fieldDecodeLength(raw []byte, fixedLength int) (length int, off int, ok bool) {
	if fixedLength >= 0 {
		ok = true
		length = fixedLength
		return
	}

	if len(raw) < lenInBytes {
		return
	}

	length = int(endian.Uint32(raw))
	if len(raw) < lenInBytes+length {
		return
	}

	ok = true
	off = lenInBytes
	return
}

func fieldDecodeFixed(size int, conv func(b []byte) interface{}) fieldDecodeFunc {
	return func(raw []byte, length int) (v interface{}, off int, ok bool) {
		if len(raw) < size {
			return
		}

		return conv(raw[:size]), size, true
	}
}

func fieldDecodeString(raw []byte, length int) (v interface{}, off int, ok bool) {
	length, off, ok = fieldDecodeLength(raw, length)
	if !ok {
		return
	}

	raw = raw[off:]
	if len(raw) < length {
		ok = false
		return
	}

	v = string(raw[:length])
	off += length
	return
}

func fieldDecodeStringSlice(raw []byte, length int) (v interface{}, off int, ok bool) {
	length, off, ok = fieldDecodeLength(raw, length)
	if !ok {
		return
	}

	if length == 0 {
		var s []string
		v = s
		return
	}

	// every string takes at least its length prefix
	if len(raw)-off < length*lenInBytes {
		ok = false
		return
	}

	s := make([]string, length)
	totalOff := off
	for i := 0; i < length; i++ {
		v, off, ok = fieldDecodeString(raw[totalOff:], -1)
		if !ok {
			off = 0
			return
		}

		s[i] = v.(string)
		totalOff += off
	}

	v = s
	off = totalOff
	return
}

// fieldDecodeSliceFast returns a slice that shares memory with raw.
func fieldDecodeSliceFast[T any](size int) fieldDecodeFunc {
	return func(raw []byte, length int) (v interface{}, off int, ok bool) {
		var s []T

		length, off, ok = fieldDecodeLength(raw, length)
		if !ok {
			return
		}

		if length == 0 {
			v = s
			return
		}

		if len(raw)-off < length*size {
			ok = false
			return
		}

		s = unsafe.Slice((*T)(unsafe.Pointer(&raw[off])), length)
		off += length * size
		v = s
		return
	}
}

func fieldDecodeSliceSlow[T any](size int, conv func(b []byte) T) fieldDecodeFunc {
	return func(raw []byte, length int) (v interface{}, off int, ok bool) {
		var s []T

		length, off, ok = fieldDecodeLength(raw, length)
		if !ok {
			return
		}

		if length == 0 {
			v = s
			return
		}

		if len(raw)-off < length*size {
			ok = false
			return
		}

		s = make([]T, length)
		for i := range s {
			s[i] = conv(raw[off : off+size])
			off += size
		}
		v = s
		return
	}
}
