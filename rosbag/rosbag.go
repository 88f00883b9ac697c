package rosbag

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

const (
	versionFormat = "#ROSBAG V%d.%d\n"
	// versionLineLen is the length of "#ROSBAG V2.0\n"
	versionLineLen = 13
)

var (
	supportedVersion = Version{
		Major: 2,
		Minor: 0,
	}
)

var (
	ErrInvalidMagic       = errors.New("rosbag: invalid magic line")
	ErrUnsupportedVersion = errors.New("rosbag: unsupported format version")

	errInvalidOp                = errors.New("invalid op")
	errInvalidHeader            = errors.New("invalid record header")
	errFieldNotFound            = errors.New("record header field not found")
	errNotFoundConnectionHeader = errors.New("connection header is not found")
)

type Op uint8

const (
	// OpInvalid is an extension from the standard. This Op marks an invalid Op.
	OpInvalid     Op = 0x00
	OpBagHeader   Op = 0x03
	OpChunk       Op = 0x05
	OpConnection  Op = 0x07
	OpMessageData Op = 0x02
	OpIndexData   Op = 0x04
	OpChunkInfo   Op = 0x06
)

func (op Op) String() string {
	switch op {
	case OpBagHeader:
		return "bag_header"
	case OpChunk:
		return "chunk"
	case OpConnection:
		return "connection"
	case OpMessageData:
		return "message_data"
	case OpIndexData:
		return "index_data"
	case OpChunkInfo:
		return "chunk_info"
	default:
		return fmt.Sprintf("invalid(0x%02x)", uint8(op))
	}
}

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionBZ2  Compression = "bz2"
	CompressionLZ4  Compression = "lz4"
)

type Version struct {
	Major uint
	Minor uint
}

func (version *Version) String() string {
	return fmt.Sprintf("%d.%d", version.Major, version.Minor)
}

type Record interface {
	Op() (Op, error)
	Header() []byte
	Data() []byte
	String() string
	// Close releases the record's buffer. The record and every slice obtained
	// from it must not be used afterwards.
	Close()
}

// RecordBase holds the raw bytes of a record laid out as they are on disk:
// header_len, header, data_len, data. Chunk records never read their data.
type RecordBase struct {
	Raw       []byte
	HeaderLen uint32
	DataLen   uint32

	closeFn func()
}

func (record *RecordBase) grow(size uint32) {
	if uint32(cap(record.Raw)) >= size {
		record.Raw = record.Raw[:size]
		return
	}

	raw := make([]byte, size, size*2)
	copy(raw, record.Raw)
	record.Raw = raw
}

func (record *RecordBase) Header() []byte {
	return record.Raw[lenInBytes : lenInBytes+record.HeaderLen]
}

func (record *RecordBase) Data() []byte {
	off := lenInBytes + record.HeaderLen + lenInBytes
	if uint32(len(record.Raw)) < off+record.DataLen {
		return nil
	}
	return record.Raw[off : off+record.DataLen]
}

func (record *RecordBase) Op() (Op, error) {
	v, err := findHeaderField(record.Header(), "op")
	if err != nil {
		return OpInvalid, err
	}

	if len(v) != 1 {
		return OpInvalid, errInvalidOp
	}

	return Op(v[0]), nil
}

func (record *RecordBase) Close() {
	if record.closeFn != nil {
		record.closeFn()
	}
}

func (record *RecordBase) String() string {
	return fmt.Sprintf(`
header_len : %d bytes
data_len   : %d bytes
`, record.HeaderLen, record.DataLen)
}

func (record *RecordBase) uint32Field(key string) (uint32, error) {
	v, err := findHeaderField(record.Header(), key)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, fmt.Errorf("%s: %w", key, errInvalidHeader)
	}
	return endian.Uint32(v), nil
}

func (record *RecordBase) uint64Field(key string) (uint64, error) {
	v, err := findHeaderField(record.Header(), key)
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("%s: %w", key, errInvalidHeader)
	}
	return endian.Uint64(v), nil
}

type RecordBagHeader struct {
	*RecordBase
}

func (record *RecordBagHeader) IndexPos() (uint64, error) {
	return record.uint64Field("index_pos")
}

func (record *RecordBagHeader) ConnCount() (uint32, error) {
	return record.uint32Field("conn_count")
}

func (record *RecordBagHeader) ChunkCount() (uint32, error) {
	return record.uint32Field("chunk_count")
}

func (record *RecordBagHeader) String() string {
	indexPos, _ := record.IndexPos()
	connCount, _ := record.ConnCount()
	chunkCount, _ := record.ChunkCount()
	return fmt.Sprintf(`
index_pos   : %d
conn_count  : %d
chunk_count : %d
`, indexPos, connCount, chunkCount)
}

type RecordChunk struct {
	*RecordBase
}

func (record *RecordChunk) Compression() (Compression, error) {
	v, err := findHeaderField(record.Header(), "compression")
	if err != nil {
		return "", err
	}
	return Compression(v), nil
}

// Size is the size of the chunk's data after decompression.
func (record *RecordChunk) Size() (uint32, error) {
	return record.uint32Field("size")
}

func (record *RecordChunk) String() string {
	compression, _ := record.Compression()
	size, _ := record.Size()
	return fmt.Sprintf(`
compression : %s
size        : %d bytes
`, compression, size)
}

type RecordConnection struct {
	*RecordBase
}

func (record *RecordConnection) Conn() (uint32, error) {
	return record.uint32Field("conn")
}

func (record *RecordConnection) Topic() (string, error) {
	v, err := findHeaderField(record.Header(), "topic")
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// ConnectionHeader parses the record's data, which is a connection header made of
// the same len|name=value fields as a record header.
func (record *RecordConnection) ConnectionHeader() (*ConnectionHeader, error) {
	var hdr ConnectionHeader
	var defRaw []byte
	err := iterateHeaderFields(record.Data(), func(key, value []byte) bool {
		switch string(key) {
		case "topic":
			hdr.Topic = string(value)
		case "type":
			hdr.Type = string(value)
		case "md5sum":
			hdr.MD5Sum = string(value)
		case "message_definition":
			defRaw = value
		case "callerid":
			hdr.CallerID = string(value)
		case "latching":
			hdr.Latching = bytes.Equal(value, []byte("1"))
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	// the topic in the record header is authoritative, the data may be a remapped one
	if topic, err := record.Topic(); err == nil {
		hdr.Topic = topic
	}

	hdr.RawMessageDefinition = append([]byte(nil), defRaw...)
	hdr.MessageDefinition.Type = hdr.Type
	if err := hdr.MessageDefinition.unmarshall(defRaw); err != nil {
		return nil, err
	}

	return &hdr, nil
}

func (record *RecordConnection) String() string {
	conn, _ := record.Conn()
	topic, _ := record.Topic()
	return fmt.Sprintf(`
conn  : %d
topic : %s
`, conn, topic)
}

type RecordMessageData struct {
	*RecordBase
	connHdr *ConnectionHeader
}

func (record *RecordMessageData) Conn() (uint32, error) {
	return record.uint32Field("conn")
}

func (record *RecordMessageData) Time() (time.Time, error) {
	v, err := findHeaderField(record.Header(), "time")
	if err != nil {
		return time.Time{}, err
	}
	if len(v) != 8 {
		return time.Time{}, fmt.Errorf("time: %w", errInvalidHeader)
	}
	return extractTime(v), nil
}

// ConnectionHeader returns the header of the connection this message was published on.
func (record *RecordMessageData) ConnectionHeader() *ConnectionHeader {
	return record.connHdr
}

// UnmarshallTo decodes the message into v, which must be a map[string]interface{}
// or a pointer to a struct. Slices in v may point into the record's buffer.
func (record *RecordMessageData) UnmarshallTo(v interface{}) error {
	if record.connHdr == nil {
		return errNotFoundConnectionHeader
	}
	return Unmarshal(&record.connHdr.MessageDefinition, record.Data(), v)
}

func (record *RecordMessageData) String() string {
	conn, _ := record.Conn()
	t, _ := record.Time()
	return fmt.Sprintf(`
conn     : %d
time     : %s
data_len : %d bytes
`, conn, t, record.DataLen)
}

type RecordIndexData struct {
	*RecordBase
}

type RecordChunkInfo struct {
	*RecordBase
}

// iterateHeaderFields walks len|name=value fields. fn returns false to stop early.
func iterateHeaderFields(header []byte, fn func(key, value []byte) bool) error {
	for len(header) > 0 {
		if len(header) < lenInBytes {
			return errInvalidHeader
		}

		fieldLen := endian.Uint32(header)
		header = header[lenInBytes:]
		if uint32(len(header)) < fieldLen {
			return errInvalidHeader
		}

		field := header[:fieldLen]
		header = header[fieldLen:]

		idx := bytes.IndexByte(field, headerFieldDelimiter)
		if idx == -1 {
			return errInvalidHeader
		}

		if !fn(field[:idx], field[idx+1:]) {
			return nil
		}
	}

	return nil
}

func findHeaderField(header []byte, key string) ([]byte, error) {
	var found []byte
	var ok bool
	err := iterateHeaderFields(header, func(k, v []byte) bool {
		if string(k) == key {
			found = v
			ok = true
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%s: %w", key, errFieldNotFound)
	}
	return found, nil
}
