package mcap_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/rosbags-go/rosbags/connection"
	"github.com/rosbags-go/rosbags/logging"
	"github.com/rosbags-go/rosbags/mcap"
)

func putString(buf *bytes.Buffer, s string) {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(s)))
	buf.Write(lenBytes[:])
	buf.WriteString(s)
}

func putBytes(buf *bytes.Buffer, b []byte) {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(b)))
	buf.Write(lenBytes[:])
	buf.Write(b)
}

func putU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putRecord(buf *bytes.Buffer, op byte, body []byte) {
	buf.WriteByte(op)
	putU64(buf, uint64(len(body)))
	buf.Write(body)
}

func channelBody(id, schemaID uint16, topic, msgEncoding string) []byte {
	var b bytes.Buffer
	putU16(&b, id)
	putU16(&b, schemaID)
	putString(&b, topic)
	putString(&b, msgEncoding)
	putBytes(&b, nil)
	return b.Bytes()
}

func messageBody(chID uint16, logTime uint64, data []byte) []byte {
	var b bytes.Buffer
	putU16(&b, chID)
	putU32(&b, 0) // sequence
	putU64(&b, logTime)
	putU64(&b, logTime) // publish time
	b.Write(data)
	return b.Bytes()
}

// buildUnindexedFixture lays out a single-chunk, unindexed MCAP file with
// three channels and four messages, mirroring an MCAP writer that never
// emits a summary section: /poly at t=640, /magn twice at t=708, /other at
// t=900.
func buildUnindexedFixture(t *testing.T) string {
	t.Helper()
	var file bytes.Buffer
	file.WriteString("\x89MCAP0\r\n")

	var header bytes.Buffer
	putString(&header, "ros2")
	putRecord(&file, mcap.OpHeader, header.Bytes())

	putRecord(&file, mcap.OpChannel, channelBody(1, 0, "/poly", "cdr"))
	putRecord(&file, mcap.OpChannel, channelBody(2, 0, "/magn", "cdr"))
	putRecord(&file, mcap.OpChannel, channelBody(3, 0, "/other", "cdr"))

	var messages bytes.Buffer
	putRecord(&messages, mcap.OpMessage, messageBody(1, 640, []byte("poly")))
	putRecord(&messages, mcap.OpMessage, messageBody(2, 708, []byte("magn1")))
	putRecord(&messages, mcap.OpMessage, messageBody(2, 708, []byte("magn2")))
	putRecord(&messages, mcap.OpMessage, messageBody(3, 900, []byte("other")))

	var chunk bytes.Buffer
	putU64(&chunk, 640)
	putU64(&chunk, 900)
	putU64(&chunk, uint64(messages.Len()))
	putU32(&chunk, 0) // crc, unchecked
	putString(&chunk, "")
	putU64(&chunk, uint64(messages.Len()))
	chunk.Write(messages.Bytes())
	putRecord(&file, mcap.OpChunk, chunk.Bytes())

	footerStart := file.Len()
	file.WriteByte(mcap.OpFooter)
	putU64(&file, 20)
	putU64(&file, 0) // summary_start: none, file stays unindexed
	putU64(&file, 0) // summary_offset_start
	putU32(&file, 0) // crc
	file.WriteString("\x89MCAP0\r\n")
	test.That(t, footerStart > 0, test.ShouldBeTrue)

	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.mcap")
	test.That(t, os.WriteFile(path, file.Bytes(), 0o644), test.ShouldBeNil)
	return path
}

func openFixture(t *testing.T) *mcap.Reader {
	t.Helper()
	path := buildUnindexedFixture(t)
	r := mcap.NewReader(path, logging.NewLogger("mcap_test"))
	test.That(t, r.Open(), test.ShouldBeNil)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func allConns() []*connection.Connection {
	return []*connection.Connection{
		{ID: 1, Topic: "/poly"},
		{ID: 2, Topic: "/magn"},
		{ID: 3, Topic: "/other"},
	}
}

func drain(t *testing.T, it connection.MessageIterator) []connection.Message {
	t.Helper()
	var out []connection.Message
	for it.Next() {
		out = append(out, it.Message())
	}
	test.That(t, it.Err(), test.ShouldBeNil)
	return out
}

func TestUnindexedFilteredReadByTopic(t *testing.T) {
	r := openFixture(t)
	magn := []*connection.Connection{{ID: 2, Topic: "/magn"}}

	it, err := r.Messages(magn, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	msgs := drain(t, it)

	test.That(t, len(msgs), test.ShouldEqual, 2)
	test.That(t, msgs[0].Timestamp, test.ShouldEqual, int64(708))
	test.That(t, msgs[1].Timestamp, test.ShouldEqual, int64(708))
}

func TestUnindexedFilteredReadByStartTime(t *testing.T) {
	r := openFixture(t)
	start := int64(667)

	it, err := r.Messages(allConns(), &start, nil)
	test.That(t, err, test.ShouldBeNil)
	msgs := drain(t, it)

	for _, m := range msgs {
		test.That(t, m.Connection.Topic, test.ShouldNotEqual, "/poly")
	}
	test.That(t, len(msgs), test.ShouldEqual, 3)
}

func TestUnindexedFilteredReadByStopTime(t *testing.T) {
	r := openFixture(t)
	stop := int64(667)

	it, err := r.Messages(allConns(), nil, &stop)
	test.That(t, err, test.ShouldBeNil)
	msgs := drain(t, it)

	test.That(t, len(msgs), test.ShouldEqual, 1)
	test.That(t, msgs[0].Connection.Topic, test.ShouldEqual, "/poly")
}

func TestDefinitionsReturnsEmptySchemasWhenNoneDeclared(t *testing.T) {
	r := openFixture(t)
	defs, err := r.Definitions()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(defs), test.ShouldEqual, 0)
}
