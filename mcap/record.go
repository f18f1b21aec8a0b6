// Package mcap implements the MCAPReader from spec.md §4.5: a binary
// record-oriented container reader supporting both an indexed summary
// traversal and a linear unindexed scan, with time-ordered merging across
// compressed chunks.
package mcap

// Record opcodes, per the MCAP binary format.
const (
	OpHeader          = 0x01
	OpFooter          = 0x02
	OpSchema          = 0x03
	OpChannel         = 0x04
	OpMessage         = 0x05
	OpChunk           = 0x06
	OpMessageIndex    = 0x07
	OpChunkIndex      = 0x08
	OpAttachment      = 0x09
	OpAttachmentIndex = 0x0A
	OpStatistics      = 0x0B
	OpMetadata        = 0x0C
	OpMetadataIndex   = 0x0D
	OpSummaryOffset   = 0x0E
	OpDataEnd         = 0x0F
)

var magic = []byte("\x89MCAP0\r\n")

// Schema is record 0x03: a named, encoded type definition.
type Schema struct {
	ID       uint16
	Name     string
	Encoding string
	Data     string
}

// Channel is record 0x04: a topic bound to a schema and message encoding.
type Channel struct {
	ID              uint16
	SchemaName      string
	Topic           string
	MessageEncoding string
	Metadata        []byte
}

// ChunkIndex is record 0x08: the summary-section description of one chunk,
// including the per-channel message-index offsets used to compute how many
// messages of each channel the chunk holds.
type ChunkIndex struct {
	MessageStartTime    uint64
	MessageEndTime      uint64
	ChunkStartOffset    uint64
	ChunkLength         uint64
	MessageIndexOffsets map[uint16]uint64
	MessageIndexLength  uint64
	Compression         string
	CompressedSize      uint64
	UncompressedSize    uint64
	ChannelCount        map[uint16]int
}

// Statistics is record 0x0B.
type Statistics struct {
	MessageCount         uint64
	SchemaCount          uint16
	ChannelCount         uint32
	AttachmentCount      uint32
	MetadataCount        uint32
	ChunkCount           uint32
	StartTime            uint64
	EndTime              uint64
	ChannelMessageCounts []byte
}
