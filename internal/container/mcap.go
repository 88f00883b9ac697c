package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/foxglove/mcap/go/mcap"
)

type mcapContainer struct {
	f      *os.File
	reader *mcap.Reader
	info   *mcap.Info
}

func openMCAP(path string) (*mcapContainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader, err := mcap.NewReader(f)
	if err != nil {
		f.Close()
		return nil, malformed(err)
	}

	// the summary section is needed for indexed reads, a recording that was cut
	// short has none
	info, err := reader.Info()
	if err != nil {
		f.Close()
		return nil, malformed(err)
	}

	return &mcapContainer{f: f, reader: reader, info: info}, nil
}

func (c *mcapContainer) Connections() ([]Connection, error) {
	ids := make([]uint16, 0, len(c.info.Channels))
	for id := range c.info.Channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	conns := make([]Connection, 0, len(ids))
	for _, id := range ids {
		channel := c.info.Channels[id]
		conn := Connection{
			ID:       uint32(channel.ID),
			Topic:    channel.Topic,
			Encoding: channel.MessageEncoding,
		}
		if schema, ok := c.info.Schemas[channel.SchemaID]; ok && schema != nil {
			conn.Type = schema.Name
			conn.Definition = schema.Data
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

func (c *mcapContainer) Messages(conn Connection) (Iterator, error) {
	it, err := c.reader.Messages(
		mcap.UsingIndex(true),
		mcap.WithTopics([]string{conn.Topic}),
		mcap.InOrder(mcap.LogTimeOrder),
	)
	if err != nil {
		return nil, malformed(err)
	}
	return &mcapIterator{it: it, channel: uint16(conn.ID)}, nil
}

func (c *mcapContainer) Close() error {
	return c.f.Close()
}

type mcapIterator struct {
	it      mcap.MessageIterator
	channel uint16
}

func (it *mcapIterator) Next() (Record, error) {
	for {
		_, channel, msg, err := it.it.Next(nil)
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, malformed(err)
		}

		// another channel may share the topic
		if channel.ID != it.channel {
			continue
		}

		if msg.LogTime > 1<<63-1 {
			return Record{}, malformed(fmt.Errorf("log time %d overflows", msg.LogTime))
		}
		return Record{Timestamp: int64(msg.LogTime), Data: msg.Data}, nil
	}
}

func (it *mcapIterator) Close() error {
	return nil
}
