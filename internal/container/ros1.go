package container

import (
	"io"
	"os"

	"github.com/lherman-cs/bag2video/rosbag"
)

type ros1Container struct {
	f   *os.File
	bag *rosbag.Bag
}

func openROS1(path string) (*ros1Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	bag, err := rosbag.Open(f)
	if err != nil {
		f.Close()
		return nil, malformed(err)
	}

	return &ros1Container{f: f, bag: bag}, nil
}

func (c *ros1Container) Connections() ([]Connection, error) {
	bagConns, err := c.bag.Connections()
	if err != nil {
		return nil, malformed(err)
	}

	conns := make([]Connection, 0, len(bagConns))
	for _, bagConn := range bagConns {
		conns = append(conns, Connection{
			ID:         bagConn.ID,
			Topic:      bagConn.Topic,
			Type:       bagConn.Type,
			Encoding:   EncodingROS1,
			Definition: bagConn.RawMessageDefinition,
		})
	}
	return conns, nil
}

func (c *ros1Container) Messages(conn Connection) (Iterator, error) {
	it, err := c.bag.Messages(conn.ID)
	if err != nil {
		return nil, malformed(err)
	}
	return &ros1Iterator{it: it}, nil
}

func (c *ros1Container) Close() error {
	return c.f.Close()
}

type ros1Iterator struct {
	it *rosbag.MessageIterator
}

func (it *ros1Iterator) Next() (Record, error) {
	msg, err := it.it.Next()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, malformed(err)
	}

	t, err := msg.Time()
	if err != nil {
		return Record{}, malformed(err)
	}
	return Record{Timestamp: t.UnixNano(), Data: msg.Data()}, nil
}

func (it *ros1Iterator) Close() error {
	it.it.Close()
	return nil
}
