package mcap

import (
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/rosbags-go/rosbags/connection"
	"github.com/rosbags-go/rosbags/logging"
	"github.com/rosbags-go/rosbags/typesys"
)

const footerTailSize = 37
const supportedProfile = "ros2"

// Reader is a single MCAP file. It satisfies connection.StorageBackend
// directly, so a bag with exactly one .mcap data file can use a Reader as
// its backend without an extra wrapping layer.
type Reader struct {
	path string
	log  logging.Logger

	f *os.File

	dataStart int64
	dataEnd   int64

	schemas  map[uint16]Schema
	channels map[uint16]Channel
	chunks   []ChunkIndex

	statistics *Statistics
}

// NewReader builds an unopened Reader over path.
func NewReader(path string, log logging.Logger) *Reader {
	return &Reader{path: path, log: log, schemas: map[uint16]Schema{}, channels: map[uint16]Channel{}}
}

// Open validates the leading and trailing magic, the header's profile, and
// the fixed-size footer tail, then either walks the summary section or
// falls back to an unindexed state resolved lazily on first scan.
func (r *Reader) Open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return errors.Wrap(err, "open mcap file")
	}
	r.f = f

	c := &cursor{r: f, path: r.path}

	head, err := c.readFull(len(magic))
	if err != nil {
		return err
	}
	if !bytes.Equal(head, magic) {
		return newReaderError(r.path, "missing leading magic")
	}

	op, length, err := c.readRecordHeader()
	if err != nil {
		return err
	}
	if op != OpHeader {
		return newReaderError(r.path, "expected header record, got op 0x%02x", op)
	}
	body, err := c.readFull(int(length))
	if err != nil {
		return err
	}
	profile, _, err := readLengthPrefixedString(body, 0)
	if err != nil {
		return newReaderError(r.path, "malformed header record: %v", err)
	}
	if profile != supportedProfile {
		return newReaderError(r.path, "unsupported profile %q, want %q", profile, supportedProfile)
	}

	r.dataStart, err = c.tell()
	if err != nil {
		return err
	}

	end, err := c.seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	footerStart := end - footerTailSize
	if footerStart < r.dataStart {
		return newReaderError(r.path, "file too small for a footer record")
	}
	if _, err := c.seek(footerStart, io.SeekStart); err != nil {
		return err
	}
	tail, err := c.readFull(footerTailSize)
	if err != nil {
		return err
	}
	if tail[0] != OpFooter {
		return newReaderError(r.path, "expected footer record, got op 0x%02x", tail[0])
	}
	if !bytes.Equal(tail[footerTailSize-len(magic):], magic) {
		return newReaderError(r.path, "missing trailing magic")
	}
	summaryStart := leU64(tail[9:17])

	if summaryStart != 0 {
		r.dataEnd = int64(summaryStart)
		if _, err := c.seek(int64(summaryStart), io.SeekStart); err != nil {
			return err
		}
		if err := r.readIndex(c); err != nil {
			return err
		}
	} else {
		r.dataEnd = footerStart
	}
	return nil
}

func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	return r.f.Close()
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// readLengthPrefixedString decodes one u32-length-prefixed string starting
// at offset within a record body already read fully into memory.
func readLengthPrefixedString(body []byte, offset int) (string, int, error) {
	if offset+4 > len(body) {
		return "", 0, errors.New("truncated length prefix")
	}
	n := int(leU32(body[offset : offset+4]))
	offset += 4
	if offset+n > len(body) {
		return "", 0, errors.New("truncated string")
	}
	return string(body[offset : offset+n]), offset + n, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// readIndex walks the summary section starting at the current cursor
// position, populating schemas, channels, chunk indexes, and statistics.
// It stops at the Footer or SummaryOffset record that ends the section.
func (r *Reader) readIndex(c *cursor) error {
	for {
		op, length, err := c.readRecordHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		bodyStart, err := c.tell()
		if err != nil {
			return err
		}

		switch op {
		case OpFooter, OpSummaryOffset:
			return nil
		case OpSchema:
			s, err := r.readSchemaBody(c)
			if err != nil {
				return err
			}
			r.schemas[s.ID] = s
		case OpChannel:
			ch, err := r.readChannelBody(c)
			if err != nil {
				return err
			}
			r.channels[ch.ID] = ch
		case OpChunkIndex:
			ci, err := readChunkIndexBody(c)
			if err != nil {
				return err
			}
			r.chunks = append(r.chunks, ci)
		case OpStatistics:
			st, err := readStatisticsBody(c, length)
			if err != nil {
				return err
			}
			r.statistics = &st
		}

		if _, err := c.seek(bodyStart+int64(length), io.SeekStart); err != nil {
			return err
		}
	}
}

func (r *Reader) readSchemaBody(c *cursor) (Schema, error) {
	id, err := c.readU16()
	if err != nil {
		return Schema{}, err
	}
	name, err := c.readString()
	if err != nil {
		return Schema{}, err
	}
	encoding, err := c.readString()
	if err != nil {
		return Schema{}, err
	}
	data, err := c.readString()
	if err != nil {
		return Schema{}, err
	}
	return Schema{ID: id, Name: name, Encoding: encoding, Data: data}, nil
}

func (r *Reader) readChannelBody(c *cursor) (Channel, error) {
	id, err := c.readU16()
	if err != nil {
		return Channel{}, err
	}
	schemaID, err := c.readU16()
	if err != nil {
		return Channel{}, err
	}
	topic, err := c.readString()
	if err != nil {
		return Channel{}, err
	}
	msgEncoding, err := c.readString()
	if err != nil {
		return Channel{}, err
	}
	metadata, err := c.readBytes()
	if err != nil {
		return Channel{}, err
	}
	schemaName := ""
	if s, ok := r.schemas[schemaID]; ok {
		schemaName = s.Name
	}
	return Channel{ID: id, SchemaName: schemaName, Topic: topic, MessageEncoding: msgEncoding, Metadata: metadata}, nil
}

func readChunkIndexBody(c *cursor) (ChunkIndex, error) {
	var ci ChunkIndex
	var err error
	if ci.MessageStartTime, err = c.readU64(); err != nil {
		return ci, err
	}
	if ci.MessageEndTime, err = c.readU64(); err != nil {
		return ci, err
	}
	if ci.ChunkStartOffset, err = c.readU64(); err != nil {
		return ci, err
	}
	if ci.ChunkLength, err = c.readU64(); err != nil {
		return ci, err
	}

	mapLen, err := c.readU32()
	if err != nil {
		return ci, err
	}
	mapBytes, err := c.readFull(int(mapLen))
	if err != nil {
		return ci, err
	}
	ci.MessageIndexOffsets = map[uint16]uint64{}
	for off := 0; off+10 <= len(mapBytes); off += 10 {
		cid := uint16(mapBytes[off]) | uint16(mapBytes[off+1])<<8
		offset := leU64(mapBytes[off+2 : off+10])
		ci.MessageIndexOffsets[cid] = offset
	}

	if ci.MessageIndexLength, err = c.readU64(); err != nil {
		return ci, err
	}
	if ci.Compression, err = c.readString(); err != nil {
		return ci, err
	}
	if ci.CompressedSize, err = c.readU64(); err != nil {
		return ci, err
	}
	if ci.UncompressedSize, err = c.readU64(); err != nil {
		return ci, err
	}

	ci.ChannelCount = computeChannelCounts(ci)
	return ci, nil
}

// computeChannelCounts recovers the per-channel message count inside a
// chunk from the gaps between its channels' MessageIndex record offsets:
// each MessageIndex record costs 15 bytes of fixed header plus 16 bytes per
// (timestamp, offset) entry, so the gap to the next record's offset (or to
// the end of the message-index section, for the last one) divided by 16
// after subtracting that header yields the entry count.
func computeChannelCounts(ci ChunkIndex) map[uint16]int {
	type off struct {
		channel uint16
		offset  uint64
	}
	offs := make([]off, 0, len(ci.MessageIndexOffsets))
	for cid, o := range ci.MessageIndexOffsets {
		offs = append(offs, off{cid, o})
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i].offset < offs[j].offset })

	end := ci.ChunkStartOffset + ci.ChunkLength + ci.MessageIndexLength
	counts := map[uint16]int{}
	for i, o := range offs {
		next := end
		if i+1 < len(offs) {
			next = offs[i+1].offset
		}
		gap := int64(next) - int64(o.offset) - 15
		count := 0
		if gap > 0 {
			count = int(gap / 16)
		}
		counts[o.channel] = count
	}
	return counts
}

func readStatisticsBody(c *cursor, length uint64) (Statistics, error) {
	var st Statistics
	var err error
	if st.MessageCount, err = c.readU64(); err != nil {
		return st, err
	}
	if st.SchemaCount, err = c.readU16(); err != nil {
		return st, err
	}
	if st.ChannelCount, err = c.readU32(); err != nil {
		return st, err
	}
	if st.AttachmentCount, err = c.readU32(); err != nil {
		return st, err
	}
	if st.MetadataCount, err = c.readU32(); err != nil {
		return st, err
	}
	if st.ChunkCount, err = c.readU32(); err != nil {
		return st, err
	}
	if st.StartTime, err = c.readU64(); err != nil {
		return st, err
	}
	if st.EndTime, err = c.readU64(); err != nil {
		return st, err
	}
	const consumed = 8 + 2 + 4 + 4 + 4 + 4 + 8 + 8
	remaining := int64(length) - consumed
	if remaining > 0 {
		st.ChannelMessageCounts, err = c.readFull(int(remaining))
		if err != nil {
			return st, err
		}
	}
	return st, nil
}

// ensureScanned performs the unindexed linear scan used to discover schemas
// and channels when the file had no summary section to pre-populate them.
func (r *Reader) ensureScanned() error {
	if len(r.schemas) > 0 || len(r.channels) > 0 {
		return nil
	}
	c := &cursor{r: r.f, path: r.path}
	if _, err := c.seek(r.dataStart, io.SeekStart); err != nil {
		return err
	}
	return r.scan(c, r.dataEnd, true, nil, 0, 0, nil)
}

// SchemaDefinitions returns every schema's encoding (with the leading
// serialization-family prefix such as "ros2" stripped) and raw definition
// text, scanning the file if no summary section already populated it.
func (r *Reader) SchemaDefinitions() (map[string]connection.Definition, error) {
	if err := r.ensureScanned(); err != nil {
		return nil, err
	}
	out := make(map[string]connection.Definition, len(r.schemas))
	for _, s := range r.schemas {
		enc := s.Encoding
		if len(enc) > 4 {
			enc = enc[4:]
		}
		out[s.Name] = connection.Definition{Encoding: enc, Text: s.Data}
	}
	return out, nil
}

// Definitions implements connection.StorageBackend.
func (r *Reader) Definitions() (map[typesys.TypeName]connection.Definition, error) {
	defs, err := r.SchemaDefinitions()
	if err != nil {
		return nil, err
	}
	out := make(map[typesys.TypeName]connection.Definition, len(defs))
	for name, def := range defs {
		out[typesys.TypeName(name)] = def
	}
	return out, nil
}

// Messages implements connection.StorageBackend: it dispatches to the
// chunk-index-driven merge when a summary section located chunks, or to a
// linear scan otherwise.
func (r *Reader) Messages(filter []*connection.Connection, start, stop *int64) (connection.MessageIterator, error) {
	s, e := connection.Range(start, stop)
	if len(r.chunks) > 0 {
		msgs, err := r.messagesIndexed(filter, s, e)
		if err != nil {
			return nil, err
		}
		return connection.NewSliceIterator(msgs), nil
	}
	msgs, err := r.messagesUnindexed(filter, s, e)
	if err != nil {
		return nil, err
	}
	return connection.NewSliceIterator(msgs), nil
}

func buildChannelMap(channels map[uint16]Channel, filter []*connection.Connection) map[uint16]*connection.Connection {
	out := map[uint16]*connection.Connection{}
	for id, ch := range channels {
		for _, conn := range filter {
			if conn.Topic == ch.Topic && string(conn.MsgType) == ch.SchemaName {
				out[id] = conn
				break
			}
		}
	}
	return out
}

func (r *Reader) messagesUnindexed(filter []*connection.Connection, start, stop int64) ([]connection.Message, error) {
	if err := r.ensureScanned(); err != nil {
		return nil, err
	}
	channelMap := buildChannelMap(r.channels, filter)

	c := &cursor{r: r.f, path: r.path}
	if _, err := c.seek(r.dataStart, io.SeekStart); err != nil {
		return nil, err
	}
	var out []connection.Message
	if err := r.scan(c, r.dataEnd, false, channelMap, start, stop, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reader) messagesIndexed(filter []*connection.Connection, start, stop int64) ([]connection.Message, error) {
	channelMap := buildChannelMap(r.channels, filter)

	var runs []*chunkRun
	for _, ci := range r.chunks {
		if !(start < int64(ci.MessageEndTime) && int64(ci.MessageStartTime) < stop) {
			continue
		}
		relevant := false
		for cid := range ci.ChannelCount {
			if _, ok := channelMap[cid]; ok {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}

		c := &cursor{r: r.f, path: r.path}
		if _, err := c.seek(int64(ci.ChunkStartOffset), io.SeekStart); err != nil {
			return nil, err
		}
		var msgs []connection.Message
		if err := r.scan(c, int64(ci.ChunkStartOffset)+int64(ci.ChunkLength), false, channelMap, start, stop, &msgs); err != nil {
			return nil, err
		}
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
		runs = append(runs, &chunkRun{messages: msgs})
	}
	return mergeRuns(runs), nil
}

// scan walks records from the cursor's current position up to limit,
// dispatching Schema/Channel into the receiver's tables, collecting Message
// records that match channelMap and the [start, stop) window into out, and
// descending into Chunk records whose declared time range can contribute
// (always, when readMeta is set, since the caller is only after schema and
// channel metadata and every chunk must be opened to find it for an
// unindexed file).
func (r *Reader) scan(c *cursor, limit int64, readMeta bool, channelMap map[uint16]*connection.Connection, start, stop int64, out *[]connection.Message) error {
	for {
		pos, err := c.tell()
		if err != nil {
			return err
		}
		if pos >= limit {
			return nil
		}
		op, length, err := c.readRecordHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		bodyStart, err := c.tell()
		if err != nil {
			return err
		}

		switch op {
		case OpSchema:
			s, err := r.readSchemaBody(c)
			if err != nil {
				return err
			}
			r.schemas[s.ID] = s
		case OpChannel:
			ch, err := r.readChannelBody(c)
			if err != nil {
				return err
			}
			r.channels[ch.ID] = ch
		case OpMessage:
			if channelMap != nil {
				if err := r.scanMessage(c, length, channelMap, start, stop, out); err != nil {
					return err
				}
			}
		case OpChunk:
			if err := r.scanChunk(c, length, readMeta, channelMap, start, stop, out); err != nil {
				return err
			}
		}

		if _, err := c.seek(bodyStart+int64(length), io.SeekStart); err != nil {
			return err
		}
	}
}

func (r *Reader) scanMessage(c *cursor, length uint64, channelMap map[uint16]*connection.Connection, start, stop int64, out *[]connection.Message) error {
	chID, err := c.readU16()
	if err != nil {
		return err
	}
	if _, err := c.readU32(); err != nil { // sequence, unused
		return err
	}
	logTime, err := c.readU64()
	if err != nil {
		return err
	}
	if _, err := c.readU64(); err != nil { // publish time, unused
		return err
	}
	const consumed = 2 + 4 + 8 + 8
	dataLen := int64(length) - consumed
	if dataLen < 0 {
		return newReaderError(r.path, "message record shorter than its fixed header")
	}
	data, err := c.readFull(int(dataLen))
	if err != nil {
		return err
	}
	conn, ok := channelMap[chID]
	if !ok {
		return nil
	}
	ts := int64(logTime)
	if ts >= start && ts < stop {
		*out = append(*out, connection.Message{Connection: conn, Timestamp: ts, Data: data})
	}
	return nil
}

func (r *Reader) scanChunk(c *cursor, length uint64, readMeta bool, channelMap map[uint16]*connection.Connection, start, stop int64, out *[]connection.Message) error {
	msgStart, err := c.readU64()
	if err != nil {
		return err
	}
	msgEnd, err := c.readU64()
	if err != nil {
		return err
	}
	uncompressedSize, err := c.readU64()
	if err != nil {
		return err
	}
	if _, err := c.readU32(); err != nil { // crc, unchecked
		return err
	}
	compression, err := c.readString()
	if err != nil {
		return err
	}
	recLen, err := c.readU64()
	if err != nil {
		return err
	}
	raw, err := c.readFull(int(recLen))
	if err != nil {
		return err
	}

	descend := readMeta || (start < int64(msgEnd) && int64(msgStart) < stop)
	if !descend {
		return nil
	}
	plain, err := decompress(compression, raw, uncompressedSize)
	if err != nil {
		return err
	}
	sub := &cursor{r: bytes.NewReader(plain), path: r.path}
	return r.scan(sub, int64(len(plain)), readMeta, channelMap, start, stop, out)
}
