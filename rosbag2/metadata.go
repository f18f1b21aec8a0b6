// Package rosbag2 implements the directory-based container format: a
// metadata.yaml manifest plus one-or-more data files in either the sqlite3
// or mcap storage identifier, per spec.md §4's rosbag2 module.
package rosbag2

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StartingTime is the manifest's epoch-nanosecond start timestamp.
type StartingTime struct {
	NanosecondsSinceEpoch int64 `yaml:"nanoseconds_since_epoch"`
}

// Duration is the manifest's total recorded duration in nanoseconds.
type Duration struct {
	Nanoseconds int64 `yaml:"nanoseconds"`
}

// TopicMetadata describes one recorded topic.
type TopicMetadata struct {
	Name                 string `yaml:"name"`
	Type                 string `yaml:"type"`
	SerializationFormat  string `yaml:"serialization_format"`
	OfferedQoSProfiles   string `yaml:"offered_qos_profiles"`
	TypeDescriptionHash  string `yaml:"type_description_hash,omitempty"`
}

// TopicWithMessageCount pairs a topic's metadata with its message count.
type TopicWithMessageCount struct {
	TopicMetadata TopicMetadata `yaml:"topic_metadata"`
	MessageCount  int64         `yaml:"message_count"`
}

// FileInformation describes one data file backing the bag.
type FileInformation struct {
	Path         string       `yaml:"path"`
	StartingTime StartingTime `yaml:"starting_time"`
	Duration     Duration     `yaml:"duration"`
	MessageCount int64        `yaml:"message_count"`
}

// Metadata is the top-level manifest persisted as metadata.yaml.
type Metadata struct {
	Version                int                     `yaml:"version"`
	StorageIdentifier      string                  `yaml:"storage_identifier"`
	RelativeFilePaths      []string                `yaml:"relative_file_paths"`
	StartingTime           StartingTime            `yaml:"starting_time"`
	Duration               Duration                `yaml:"duration"`
	MessageCount           int64                   `yaml:"message_count"`
	CompressionFormat      string                  `yaml:"compression_format"`
	CompressionMode        string                  `yaml:"compression_mode"`
	TopicsWithMessageCount []TopicWithMessageCount `yaml:"topics_with_message_count"`
	Files                  []FileInformation       `yaml:"files,omitempty"`
	CustomData             map[string]string       `yaml:"custom_data,omitempty"`
}

type metadataDocument struct {
	RosbagInfo Metadata `yaml:"rosbag2_bagfile_information"`
}

// ReadMetadata loads and validates the metadata.yaml manifest of a bag
// directory, enforcing the version range and compression/serialization
// constraints spec.md §6 names.
func ReadMetadata(dir string) (*Metadata, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "metadata.yaml"))
	if err != nil {
		return nil, errors.Wrap(err, "read metadata.yaml")
	}
	var doc metadataDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "parse metadata.yaml")
	}
	md := doc.RosbagInfo

	if md.Version < 1 || md.Version > 8 {
		return nil, &ReaderError{Msg: errors.Errorf("unsupported rosbag2 metadata version %d", md.Version).Error()}
	}
	if md.CompressionMode != "" && md.CompressionMode != "NONE" {
		if md.CompressionFormat != "zstd" {
			return nil, &ReaderError{Msg: errors.Errorf("unsupported compression format %q", md.CompressionFormat).Error()}
		}
	}
	for i := range md.TopicsWithMessageCount {
		t := &md.TopicsWithMessageCount[i]
		if t.TopicMetadata.SerializationFormat != "cdr" {
			return nil, &ReaderError{Msg: errors.Errorf("unsupported serialization format %q on topic %q", t.TopicMetadata.SerializationFormat, t.TopicMetadata.Name).Error()}
		}
		// type_description_hash only appears from version 4 onward, when
		// storage backends started persisting message_definitions alongside
		// topics; older bags never populate it.
		if md.Version < 4 {
			t.TopicMetadata.TypeDescriptionHash = ""
		}
	}
	return &md, nil
}

// DataFiles returns the data file paths backing the bag. Versions before 6
// only ever wrote a single file and named it via relative_file_paths; 6
// onward records one FileInformation entry per file, which is what multi-
// file (e.g. split or per-session) bags rely on.
func (md *Metadata) DataFiles() []string {
	if md.Version >= 6 && len(md.Files) > 0 {
		paths := make([]string, len(md.Files))
		for i, f := range md.Files {
			paths[i] = f.Path
		}
		return paths
	}
	return md.RelativeFilePaths
}

// Write persists the manifest back to dir/metadata.yaml.
func (md *Metadata) Write(dir string) error {
	doc := metadataDocument{RosbagInfo: *md}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshal metadata.yaml")
	}
	return os.WriteFile(filepath.Join(dir, "metadata.yaml"), raw, 0o644)
}
