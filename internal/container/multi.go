package container

import (
	"errors"
	"io"
)

// multiContainer chains the files of a split recording. A connection of the chain is
// the first one with a given topic and type; records come file after file.
type multiContainer struct {
	parts []Container
}

func (c *multiContainer) Connections() ([]Connection, error) {
	type key struct{ topic, msgType string }

	var conns []Connection
	seen := make(map[key]bool)
	for _, part := range c.parts {
		partConns, err := part.Connections()
		if err != nil {
			return nil, err
		}

		for _, conn := range partConns {
			k := key{conn.Topic, conn.Type}
			if seen[k] {
				continue
			}
			seen[k] = true
			conn.ID = uint32(len(conns))
			conns = append(conns, conn)
		}
	}
	return conns, nil
}

func (c *multiContainer) Messages(conn Connection) (Iterator, error) {
	return &multiIterator{parts: c.parts, conn: conn}, nil
}

func (c *multiContainer) Close() error {
	var errs []error
	for _, part := range c.parts {
		errs = append(errs, part.Close())
	}
	return errors.Join(errs...)
}

type multiIterator struct {
	parts   []Container
	conn    Connection
	current Iterator
}

func (it *multiIterator) Next() (Record, error) {
	for {
		if it.current == nil {
			if len(it.parts) == 0 {
				return Record{}, io.EOF
			}

			part := it.parts[0]
			it.parts = it.parts[1:]

			conn, ok, err := matchConnection(part, it.conn)
			if err != nil {
				return Record{}, err
			}
			if !ok {
				continue
			}

			if it.current, err = part.Messages(conn); err != nil {
				return Record{}, err
			}
		}

		record, err := it.current.Next()
		if err == io.EOF {
			it.current.Close()
			it.current = nil
			continue
		}
		return record, err
	}
}

func (it *multiIterator) Close() error {
	if it.current == nil {
		return nil
	}
	err := it.current.Close()
	it.current = nil
	return err
}

func matchConnection(c Container, want Connection) (Connection, bool, error) {
	conns, err := c.Connections()
	if err != nil {
		return Connection{}, false, err
	}

	for _, conn := range conns {
		if conn.Topic == want.Topic && conn.Type == want.Type {
			return conn, true, nil
		}
	}
	return Connection{}, false, nil
}
