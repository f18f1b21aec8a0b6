package codec

import "github.com/rosbags-go/rosbags/typesys"

// readPrimitive decodes one fixed-size primitive at pos under the given
// byte order, returning it as the Go type a Value uses for that PrimitiveKind.
func readPrimitive(buf []byte, pos int, prim typesys.PrimitiveKind, big bool) interface{} {
	switch prim {
	case typesys.Bool:
		return buf[pos] != 0
	case typesys.Octet, typesys.Uint8:
		return buf[pos]
	case typesys.Int8:
		return int8(buf[pos])
	case typesys.Int16:
		return int16(readUint(buf, pos, 2, big))
	case typesys.Uint16:
		return uint16(readUint(buf, pos, 2, big))
	case typesys.Int32:
		return int32(readUint(buf, pos, 4, big))
	case typesys.Uint32:
		return uint32(readUint(buf, pos, 4, big))
	case typesys.Int64:
		return int64(readUint(buf, pos, 8, big))
	case typesys.Uint64:
		return readUint(buf, pos, 8, big)
	case typesys.Float32:
		return bitsFloat32(uint32(readUint(buf, pos, 4, big)))
	case typesys.Float64:
		return bitsFloat64(readUint(buf, pos, 8, big))
	default:
		return nil
	}
}

// writePrimitive encodes v, which must be the Go type readPrimitive would
// have produced for prim, at pos under the given byte order.
func writePrimitive(buf []byte, pos int, prim typesys.PrimitiveKind, v interface{}, big bool) error {
	switch prim {
	case typesys.Bool:
		b, ok := v.(bool)
		if !ok {
			return newSerdeError("expected bool, got %T", v)
		}
		if b {
			buf[pos] = 1
		} else {
			buf[pos] = 0
		}
	case typesys.Octet, typesys.Uint8:
		b, ok := v.(uint8)
		if !ok {
			return newSerdeError("expected uint8, got %T", v)
		}
		buf[pos] = b
	case typesys.Int8:
		b, ok := v.(int8)
		if !ok {
			return newSerdeError("expected int8, got %T", v)
		}
		buf[pos] = uint8(b)
	case typesys.Int16:
		n, ok := v.(int16)
		if !ok {
			return newSerdeError("expected int16, got %T", v)
		}
		writeUint(buf, pos, 2, big, uint64(uint16(n)))
	case typesys.Uint16:
		n, ok := v.(uint16)
		if !ok {
			return newSerdeError("expected uint16, got %T", v)
		}
		writeUint(buf, pos, 2, big, uint64(n))
	case typesys.Int32:
		n, ok := v.(int32)
		if !ok {
			return newSerdeError("expected int32, got %T", v)
		}
		writeUint(buf, pos, 4, big, uint64(uint32(n)))
	case typesys.Uint32:
		n, ok := v.(uint32)
		if !ok {
			return newSerdeError("expected uint32, got %T", v)
		}
		writeUint(buf, pos, 4, big, uint64(n))
	case typesys.Int64:
		n, ok := v.(int64)
		if !ok {
			return newSerdeError("expected int64, got %T", v)
		}
		writeUint(buf, pos, 8, big, uint64(n))
	case typesys.Uint64:
		n, ok := v.(uint64)
		if !ok {
			return newSerdeError("expected uint64, got %T", v)
		}
		writeUint(buf, pos, 8, big, n)
	case typesys.Float32:
		n, ok := v.(float32)
		if !ok {
			return newSerdeError("expected float32, got %T", v)
		}
		writeUint(buf, pos, 4, big, uint64(float32bits(n)))
	case typesys.Float64:
		n, ok := v.(float64)
		if !ok {
			return newSerdeError("expected float64, got %T", v)
		}
		writeUint(buf, pos, 8, big, float64bits(n))
	default:
		return newSerdeError("writePrimitive: unhandled primitive %v", prim)
	}
	return nil
}
