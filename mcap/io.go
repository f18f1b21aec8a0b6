package mcap

import (
	"encoding/binary"
	"io"
)

// cursor wraps a seekable stream with the fixed-width and length-prefixed
// reads every record body is built from.
type cursor struct {
	r    io.ReadSeeker
	path string
}

func (c *cursor) tell() (int64, error) {
	return c.r.Seek(0, io.SeekCurrent)
}

func (c *cursor) seek(off int64, whence int) (int64, error) {
	return c.r.Seek(off, whence)
}

func (c *cursor) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, newReaderError(c.path, "truncated read: %v", err)
	}
	return buf, nil
}

func (c *cursor) readU8() (uint8, error) {
	b, err := c.readFull(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) readU16() (uint16, error) {
	b, err := c.readFull(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) readU32() (uint32, error) {
	b, err := c.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readU64() (uint64, error) {
	b, err := c.readFull(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readBytes reads a u32-length-prefixed byte blob.
func (c *cursor) readBytes() ([]byte, error) {
	n, err := c.readU32()
	if err != nil {
		return nil, err
	}
	return c.readFull(int(n))
}

// readString reads a u32-length-prefixed UTF-8 string.
func (c *cursor) readString() (string, error) {
	b, err := c.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readRecordHeader reads the one-byte opcode and eight-byte length that
// precede every record body.
func (c *cursor) readRecordHeader() (byte, uint64, error) {
	op, err := c.readU8()
	if err != nil {
		return 0, 0, err
	}
	length, err := c.readU64()
	if err != nil {
		return 0, 0, err
	}
	return op, length, nil
}

// skipSized seeks past a record of the given body length, discarding it.
func (c *cursor) skipSized(length uint64) error {
	_, err := c.seek(int64(length), io.SeekCurrent)
	return err
}
