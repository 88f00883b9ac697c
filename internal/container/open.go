package container

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

var (
	rosbagMagic = []byte("#ROSBAG")
	mcapMagic   = []byte("\x89MCAP0\r\n")
)

// Open opens path, a ROS 1 bag, an MCAP file or a rosbag2 directory. Files are told
// apart by their magic, not their extension.
func Open(path string) (Container, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return openDir(path)
	}
	return openFile(path)
}

func openFile(path string) (Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	magic := make([]byte, len(mcapMagic))
	n, err := io.ReadFull(f, magic)
	f.Close()
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	magic = magic[:n]

	switch {
	case bytes.HasPrefix(magic, rosbagMagic):
		return openROS1(path)
	case bytes.Equal(magic, mcapMagic):
		return openMCAP(path)
	default:
		return nil, fmt.Errorf("%w: %s: unrecognized magic %q", ErrMalformedContainer, path, magic)
	}
}

func openDir(dir string) (Container, error) {
	files, err := storageFiles(dir)
	if err != nil {
		return nil, err
	}

	if len(files) == 1 {
		return openFile(files[0])
	}

	multi := &multiContainer{}
	for _, file := range files {
		part, err := openFile(file)
		if err != nil {
			multi.Close()
			return nil, err
		}
		multi.parts = append(multi.parts, part)
	}
	return multi, nil
}
