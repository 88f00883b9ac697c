package rosbag

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

const (
	lenInBytes           = 4
	headerFieldDelimiter = '='
	initialRecordSize    = 4096
)

var (
	errUnsupportedCompression = errors.New("unsupported compression algorithm. Available algortihms: [none, bz2, lz4]")
)

var (
	recordPool = sync.Pool{
		New: func() interface{} {
			return &RecordBase{
				Raw: make([]byte, 0, initialRecordSize),
			}
		},
	}
)

type Decoder struct {
	reader         io.Reader
	chunkReader    io.Reader
	chunkSource    *io.LimitedReader
	checkedVersion bool
	conns          map[uint32]*ConnectionHeader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		reader: bufio.NewReader(r),
		conns:  make(map[uint32]*ConnectionHeader),
	}
}

// newSectionDecoder reads records from the middle of a bag, e.g. from the index
// section, where there is no version line to check.
func newSectionDecoder(r io.Reader, conns map[uint32]*ConnectionHeader) *Decoder {
	decoder := NewDecoder(r)
	decoder.checkedVersion = true
	for conn, hdr := range conns {
		decoder.conns[conn] = hdr
	}
	return decoder
}

// Read returns the next record in the rosbag. Records stored inside a chunk are
// returned right after the chunk record itself. When it reaches EOF, Read returns
// io.EOF error. A bag that ends in the middle of a record returns io.ErrUnexpectedEOF.
func (decoder *Decoder) Read() (Record, error) {
	if !decoder.checkedVersion {
		if err := decoder.checkVersion(); err != nil {
			return nil, err
		}

		decoder.checkedVersion = true
	}

	record := recordPool.Get().(*RecordBase)
	record.closeFn = func() {
		recordPool.Put(record)
	}
	if decoder.chunkReader != nil {
		specializedRecord, err := decoder.decodeRecord(decoder.chunkReader, record)
		switch err {
		case nil:
			return specializedRecord, nil
		case io.EOF:
			/* explicit ignore */
		default:
			// the record is not usable, so recyle it
			record.Close()
			return nil, err
		}

		// at this point, the error must be EOF, need to reset chunkReader and read from the source
		// again. Decompressors may stop before the end of the compressed stream, skip the rest.
		decoder.chunkReader = nil
		if _, err := io.Copy(io.Discard, decoder.chunkSource); err != nil {
			record.Close()
			return nil, err
		}
		decoder.chunkSource = nil
	}

	specializedRecord, err := decoder.decodeRecord(decoder.reader, record)
	if err != nil {
		// the record is not usable, so recyle it
		record.Close()
		return nil, err
	}

	return specializedRecord, nil
}

// Connections returns every connection header seen so far, keyed by connection id.
func (decoder *Decoder) Connections() map[uint32]*ConnectionHeader {
	return decoder.conns
}

func (decoder *Decoder) handleChunk(record *RecordBase) (Record, error) {
	chunkRecord := RecordChunk{
		RecordBase: record,
	}

	compression, err := chunkRecord.Compression()
	if err != nil {
		return nil, err
	}

	chunkReader := &io.LimitedReader{R: decoder.reader, N: int64(record.DataLen)}
	switch compression {
	case CompressionNone:
		decoder.chunkReader = chunkReader
	case CompressionBZ2:
		decoder.chunkReader = bzip2.NewReader(chunkReader)
	case CompressionLZ4:
		decoder.chunkReader = lz4.NewReader(chunkReader)
	default:
		return nil, errUnsupportedCompression
	}
	decoder.chunkSource = chunkReader

	return &chunkRecord, nil
}

func (decoder *Decoder) handleConnection(record *RecordBase) (Record, error) {
	connRecord := RecordConnection{
		RecordBase: record,
	}

	conn, err := connRecord.Conn()
	if err != nil {
		return nil, err
	}

	// index sections repeat every connection, the first parsed header wins
	if _, ok := decoder.conns[conn]; ok {
		return &connRecord, nil
	}

	hdr, err := connRecord.ConnectionHeader()
	if err != nil {
		return nil, err
	}

	decoder.conns[conn] = hdr
	return &connRecord, nil
}

func (decoder *Decoder) handleMessageData(record *RecordBase) (Record, error) {
	connRecord := RecordMessageData{
		RecordBase: record,
	}

	conn, err := connRecord.Conn()
	if err != nil {
		return nil, err
	}

	connHdr, ok := decoder.conns[conn]
	if !ok {
		return nil, errNotFoundConnectionHeader
	}

	connRecord.connHdr = connHdr
	return &connRecord, nil
}

func (decoder *Decoder) checkVersion() error {
	line := make([]byte, versionLineLen)
	if _, err := io.ReadFull(decoder.reader, line); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMagic, err)
	}

	if !bytes.HasPrefix(line, []byte("#ROSBAG V")) || line[len(line)-1] != '\n' {
		return ErrInvalidMagic
	}

	var version Version
	if _, err := fmt.Sscanf(string(line), versionFormat, &version.Major, &version.Minor); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMagic, err)
	}

	if version.Major != supportedVersion.Major || version.Minor != supportedVersion.Minor {
		return fmt.Errorf("%w: %s is not supported. %s is the current supported version", ErrUnsupportedVersion, &version, &supportedVersion)
	}

	return nil
}

func (decoder *Decoder) decodeRecord(r io.Reader, record *RecordBase) (Record, error) {
	var off uint32
	var err error

	record.grow(off + lenInBytes)
	_, err = io.ReadFull(r, record.Raw[off:off+lenInBytes])
	if err != nil {
		return nil, err
	}
	record.HeaderLen = endian.Uint32(record.Raw[off : off+lenInBytes])
	off += lenInBytes

	record.grow(off + record.HeaderLen)
	_, err = io.ReadFull(r, record.Raw[off:off+record.HeaderLen])
	if err != nil {
		return nil, unexpected(err)
	}
	off += record.HeaderLen

	op, err := record.Op()
	if err != nil {
		return nil, err
	}

	record.grow(off + lenInBytes)
	_, err = io.ReadFull(r, record.Raw[off:off+lenInBytes])
	if err != nil {
		return nil, unexpected(err)
	}
	record.DataLen = endian.Uint32(record.Raw[off : off+lenInBytes])
	off += lenInBytes

	// Since RecordChunk contains a lot of messages and connections, we don't parse
	// the data part. We'll let the next iteration to parse this.
	if op == OpChunk {
		return decoder.handleChunk(record)
	}

	record.grow(off + record.DataLen)
	_, err = io.ReadFull(r, record.Raw[off:off+record.DataLen])
	if err != nil {
		return nil, unexpected(err)
	}

	switch op {
	case OpBagHeader:
		return &RecordBagHeader{RecordBase: record}, nil
	case OpConnection:
		return decoder.handleConnection(record)
	case OpMessageData:
		return decoder.handleMessageData(record)
	case OpIndexData:
		return &RecordIndexData{RecordBase: record}, nil
	case OpChunkInfo:
		return &RecordChunkInfo{RecordBase: record}, nil
	default:
		return nil, errInvalidOp
	}
}

// unexpected turns an EOF in the middle of a record into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
