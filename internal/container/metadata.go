package container

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const metadataFile = "metadata.yaml"

// Metadata is the part of a rosbag2 metadata.yaml needed to find the storage files.
type Metadata struct {
	Info struct {
		Version           int      `yaml:"version"`
		StorageIdentifier string   `yaml:"storage_identifier"`
		RelativeFilePaths []string `yaml:"relative_file_paths"`
		MessageCount      uint64   `yaml:"message_count"`
		Duration          struct {
			Nanoseconds int64 `yaml:"nanoseconds"`
		} `yaml:"duration"`
		StartingTime struct {
			NanosecondsSinceEpoch int64 `yaml:"nanoseconds_since_epoch"`
		} `yaml:"starting_time"`
		Topics []struct {
			Metadata struct {
				Name                string `yaml:"name"`
				Type                string `yaml:"type"`
				SerializationFormat string `yaml:"serialization_format"`
			} `yaml:"topic_metadata"`
			MessageCount uint64 `yaml:"message_count"`
		} `yaml:"topics_with_message_count"`
	} `yaml:"rosbag2_bagfile_information"`
}

// ReadMetadata reads dir/metadata.yaml. The error satisfies os.IsNotExist when the
// directory has none.
func ReadMetadata(dir string) (*Metadata, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}

	var md Metadata
	if err := yaml.Unmarshal(raw, &md); err != nil {
		return nil, malformed(fmt.Errorf("%s: %w", metadataFile, err))
	}
	return &md, nil
}

// storageFiles lists the files making up a rosbag2 directory.
func storageFiles(dir string) ([]string, error) {
	md, err := ReadMetadata(dir)
	switch {
	case os.IsNotExist(err):
		return globStorageFiles(dir)
	case err != nil:
		return nil, err
	}

	switch md.Info.StorageIdentifier {
	case "mcap", "":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStorage, md.Info.StorageIdentifier)
	}

	if len(md.Info.RelativeFilePaths) == 0 {
		return globStorageFiles(dir)
	}

	files := make([]string, 0, len(md.Info.RelativeFilePaths))
	for _, rel := range md.Info.RelativeFilePaths {
		files = append(files, filepath.Join(dir, rel))
	}
	return files, nil
}

func globStorageFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.mcap", "*.bag"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .mcap or .bag files in %s", ErrMalformedContainer, dir)
	}
	return files, nil
}
