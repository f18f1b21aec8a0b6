package rosbag2_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/rosbags-go/rosbags/rosbag2"
)

func writeMetadata(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "metadata.yaml"), []byte(body), 0o644), test.ShouldBeNil)
	return dir
}

const baseMetadataYAML = `
rosbag2_bagfile_information:
  version: %d
  storage_identifier: sqlite3
  relative_file_paths:
    - bag_0.db3
  starting_time:
    nanoseconds_since_epoch: 0
  duration:
    nanoseconds: 0
  message_count: 1
  compression_format: ""
  compression_mode: NONE
  topics_with_message_count:
    - topic_metadata:
        name: /poly
        type: geometry_msgs/msg/Polygon
        serialization_format: cdr
        offered_qos_profiles: ""
        type_description_hash: "RIHS01_deadbeef"
      message_count: 1
`

func TestReadMetadataClearsHashBelowVersion4(t *testing.T) {
	dir := writeMetadata(t, fmt.Sprintf(baseMetadataYAML, 3))
	md, err := rosbag2.ReadMetadata(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, md.TopicsWithMessageCount[0].TopicMetadata.TypeDescriptionHash, test.ShouldEqual, "")
}

func TestReadMetadataKeepsHashAtVersion4(t *testing.T) {
	dir := writeMetadata(t, fmt.Sprintf(baseMetadataYAML, 4))
	md, err := rosbag2.ReadMetadata(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, md.TopicsWithMessageCount[0].TopicMetadata.TypeDescriptionHash, test.ShouldEqual, "RIHS01_deadbeef")
}

func TestReadMetadataRejectsVersionOutOfRange(t *testing.T) {
	dir := writeMetadata(t, fmt.Sprintf(baseMetadataYAML, 9))
	_, err := rosbag2.ReadMetadata(dir)
	test.That(t, err, test.ShouldNotBeNil)

	dir0 := writeMetadata(t, fmt.Sprintf(baseMetadataYAML, 0))
	_, err = rosbag2.ReadMetadata(dir0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadMetadataRejectsNonCDRSerialization(t *testing.T) {
	body := `
rosbag2_bagfile_information:
  version: 5
  storage_identifier: sqlite3
  relative_file_paths:
    - bag_0.db3
  starting_time:
    nanoseconds_since_epoch: 0
  duration:
    nanoseconds: 0
  message_count: 1
  compression_format: ""
  compression_mode: NONE
  topics_with_message_count:
    - topic_metadata:
        name: /poly
        type: geometry_msgs/msg/Polygon
        serialization_format: cdr2
        offered_qos_profiles: ""
      message_count: 1
`
	dir := writeMetadata(t, body)
	_, err := rosbag2.ReadMetadata(dir)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadMetadataRejectsNonZstdCompression(t *testing.T) {
	body := `
rosbag2_bagfile_information:
  version: 5
  storage_identifier: sqlite3
  relative_file_paths:
    - bag_0.db3
  starting_time:
    nanoseconds_since_epoch: 0
  duration:
    nanoseconds: 0
  message_count: 1
  compression_format: lz4
  compression_mode: FILE
  topics_with_message_count: []
`
	dir := writeMetadata(t, body)
	_, err := rosbag2.ReadMetadata(dir)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDataFilesGateAtVersion6(t *testing.T) {
	pre6 := &rosbag2.Metadata{Version: 5, RelativeFilePaths: []string{"bag_0.db3"}}
	test.That(t, pre6.DataFiles(), test.ShouldResemble, []string{"bag_0.db3"})

	post6 := &rosbag2.Metadata{
		Version: 6,
		Files: []rosbag2.FileInformation{
			{Path: "bag_0.db3"},
			{Path: "bag_1.db3"},
		},
		RelativeFilePaths: []string{"bag_0.db3"},
	}
	test.That(t, post6.DataFiles(), test.ShouldResemble, []string{"bag_0.db3", "bag_1.db3"})

	post6Empty := &rosbag2.Metadata{Version: 6, RelativeFilePaths: []string{"bag_0.db3"}}
	test.That(t, post6Empty.DataFiles(), test.ShouldResemble, []string{"bag_0.db3"})
}

func TestMetadataWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	md := &rosbag2.Metadata{
		Version:           5,
		StorageIdentifier: "sqlite3",
		RelativeFilePaths: []string{"bag_0.db3"},
		CompressionMode:   "NONE",
		TopicsWithMessageCount: []rosbag2.TopicWithMessageCount{
			{TopicMetadata: rosbag2.TopicMetadata{Name: "/poly", Type: "geometry_msgs/msg/Polygon", SerializationFormat: "cdr"}, MessageCount: 2},
		},
	}
	test.That(t, md.Write(dir), test.ShouldBeNil)

	got, err := rosbag2.ReadMetadata(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Version, test.ShouldEqual, 5)
	test.That(t, got.TopicsWithMessageCount[0].TopicMetadata.Name, test.ShouldEqual, "/poly")
}
