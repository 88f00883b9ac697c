// Package container opens recorded logs and iterates the messages of one connection.
// ROS 1 bags, MCAP files and rosbag2 directories are supported.
package container

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedContainer = errors.New("container: malformed container")
	ErrTopicNotFound      = errors.New("container: topic not found")
	ErrUnsupportedStorage = errors.New("container: unsupported storage")
)

// Message encodings.
const (
	EncodingROS1 = "ros1"
	EncodingCDR  = "cdr"
)

// Connection is a topic as stored in a container.
type Connection struct {
	ID       uint32
	Topic    string
	Type     string
	Encoding string
	// Definition is the message definition text, if the container stores one.
	Definition []byte
}

// Record is one message. Data is only valid until the next call to Iterator.Next.
type Record struct {
	Timestamp int64
	Data      []byte
}

// Iterator yields records in non-decreasing timestamp order and io.EOF at the end.
type Iterator interface {
	Next() (Record, error)
	Close() error
}

type Container interface {
	// Connections are returned in the order the container stores them.
	Connections() ([]Connection, error)
	Messages(conn Connection) (Iterator, error)
	Close() error
}

// FindConnection returns the first connection published on topic. The match is exact
// and case sensitive.
func FindConnection(c Container, topic string) (Connection, error) {
	conns, err := c.Connections()
	if err != nil {
		return Connection{}, err
	}

	for _, conn := range conns {
		if conn.Topic == topic {
			return conn, nil
		}
	}
	return Connection{}, fmt.Errorf("%w: %s", ErrTopicNotFound, topic)
}

func malformed(err error) error {
	if err == nil || errors.Is(err, ErrMalformedContainer) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMalformedContainer, err)
}
