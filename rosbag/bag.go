package rosbag

import (
	"fmt"
	"io"
)

// Connection is a connection header together with the id records refer to it by.
type Connection struct {
	ID uint32
	*ConnectionHeader
}

// Bag gives random access to a bag stored in an io.ReadSeeker. It reads the
// connections from the index section when the bag has one, and iterates messages
// from the beginning of the file.
type Bag struct {
	r        io.ReadSeeker
	indexPos uint64

	conns map[uint32]*ConnectionHeader
	order []uint32
}

// Open checks the version line and reads the bag header record.
func Open(r io.ReadSeeker) (*Bag, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	decoder := NewDecoder(r)
	record, err := decoder.Read()
	if err != nil {
		return nil, err
	}
	defer record.Close()

	hdr, ok := record.(*RecordBagHeader)
	if !ok {
		op, _ := record.Op()
		return nil, fmt.Errorf("%w: first record is %s, expected bag_header", ErrInvalidFormat, op)
	}

	indexPos, err := hdr.IndexPos()
	if err != nil {
		return nil, err
	}

	if indexPos > uint64(size) {
		return nil, fmt.Errorf("%w: index_pos %d is past the end of the bag (%d bytes)", ErrInvalidFormat, indexPos, size)
	}

	return &Bag{
		r:        r,
		indexPos: indexPos,
	}, nil
}

// Indexed reports whether the bag header points at an index section. Bags that were
// not closed properly while recording have none.
func (bag *Bag) Indexed() bool {
	return bag.indexPos > 0
}

// Connections returns the bag's connections in the order they are stored.
func (bag *Bag) Connections() ([]Connection, error) {
	if bag.conns == nil {
		if err := bag.loadConnections(); err != nil {
			return nil, err
		}
	}

	conns := make([]Connection, 0, len(bag.order))
	for _, id := range bag.order {
		conns = append(conns, Connection{ID: id, ConnectionHeader: bag.conns[id]})
	}
	return conns, nil
}

func (bag *Bag) loadConnections() error {
	var decoder *Decoder
	if bag.Indexed() {
		if _, err := bag.r.Seek(int64(bag.indexPos), io.SeekStart); err != nil {
			return err
		}
		decoder = newSectionDecoder(bag.r, nil)
	} else {
		// unindexed, every chunk has to be visited
		if _, err := bag.r.Seek(0, io.SeekStart); err != nil {
			return err
		}
		decoder = NewDecoder(bag.r)
	}

	var order []uint32
	seen := make(map[uint32]bool)
	for {
		record, err := decoder.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if connRecord, ok := record.(*RecordConnection); ok {
			conn, err := connRecord.Conn()
			if err != nil {
				record.Close()
				return err
			}

			if !seen[conn] {
				seen[conn] = true
				order = append(order, conn)
			}
		}
		record.Close()
	}

	bag.conns = decoder.Connections()
	bag.order = order
	return nil
}

// Messages iterates the message records published on the given connections, or on
// every connection if none is given, in file order.
func (bag *Bag) Messages(conns ...uint32) (*MessageIterator, error) {
	if bag.conns == nil {
		if err := bag.loadConnections(); err != nil {
			return nil, err
		}
	}

	if _, err := bag.r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	decoder := NewDecoder(bag.r)
	for conn, hdr := range bag.conns {
		decoder.conns[conn] = hdr
	}

	filter := make(map[uint32]struct{}, len(conns))
	for _, conn := range conns {
		filter[conn] = struct{}{}
	}

	return &MessageIterator{
		decoder: decoder,
		filter:  filter,
	}, nil
}

type MessageIterator struct {
	decoder *Decoder
	filter  map[uint32]struct{}
	current Record
}

// Next returns the next message, or io.EOF at the end of the bag. The message
// returned by the previous call is closed, slices obtained from it are invalid.
func (it *MessageIterator) Next() (*RecordMessageData, error) {
	it.Close()

	for {
		record, err := it.decoder.Read()
		if err != nil {
			return nil, err
		}

		msg, ok := record.(*RecordMessageData)
		if !ok {
			record.Close()
			continue
		}

		conn, err := msg.Conn()
		if err != nil {
			record.Close()
			return nil, err
		}

		if _, ok := it.filter[conn]; len(it.filter) > 0 && !ok {
			record.Close()
			continue
		}

		it.current = msg
		return msg, nil
	}
}

// Close releases the last message returned by Next.
func (it *MessageIterator) Close() {
	if it.current != nil {
		it.current.Close()
		it.current = nil
	}
}
