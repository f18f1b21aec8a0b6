package codec

import (
	"encoding/binary"
	"math"
)

// Value is a registered type's decoded field set: keys match the
// TypeDescriptor's field names, in no particular order (the descriptor
// itself, not the map, carries field order). Struct-valued fields and
// elements of Array/Sequence fields nest Value or []interface{} as needed.
type Value = map[string]interface{}

func alignTo(pos, size int) int {
	if size <= 1 {
		return pos
	}
	return (pos + size - 1) &^ (size - 1)
}

func readUint(buf []byte, pos, size int, big bool) uint64 {
	b := buf[pos : pos+size]
	if big {
		switch size {
		case 1:
			return uint64(b[0])
		case 2:
			return uint64(binary.BigEndian.Uint16(b))
		case 4:
			return uint64(binary.BigEndian.Uint32(b))
		case 8:
			return binary.BigEndian.Uint64(b)
		}
	}
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func writeUint(buf []byte, pos, size int, big bool, v uint64) {
	b := buf[pos : pos+size]
	if big {
		switch size {
		case 1:
			b[0] = byte(v)
		case 2:
			binary.BigEndian.PutUint16(b, uint16(v))
		case 4:
			binary.BigEndian.PutUint32(b, uint32(v))
		case 8:
			binary.BigEndian.PutUint64(b, v)
		}
		return
	}
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	}
}

func readU32LE(buf []byte, pos int) uint32 { return uint32(readUint(buf, pos, 4, false)) }
func writeU32LE(buf []byte, pos int, v uint32) { writeUint(buf, pos, 4, false, uint64(v)) }

func float32bits(v float32) uint32 { return math.Float32bits(v) }
func bitsFloat32(v uint32) float32 { return math.Float32frombits(v) }
func float64bits(v float64) uint64 { return math.Float64bits(v) }
func bitsFloat64(v uint64) float64 { return math.Float64frombits(v) }
