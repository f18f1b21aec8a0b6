package codec

import (
	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

// cdrWriter accumulates a CDR payload, tracking alignment relative to the
// start of the post-header body (position 0 there, not position 0 of the
// eventual buffer with its 4-byte encapsulation header).
type cdrWriter struct {
	buf []byte
	big bool
}

func (w *cdrWriter) align(size int) {
	for len(w.buf)%size != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *cdrWriter) writePrimitive(prim typesys.PrimitiveKind, v interface{}) error {
	size := prim.Size()
	w.align(size)
	tmp := make([]byte, size)
	if err := writePrimitive(tmp, 0, prim, v, w.big); err != nil {
		return err
	}
	w.buf = append(w.buf, tmp...)
	return nil
}

func (w *cdrWriter) writeString(s string) {
	w.align(4)
	length := uint32(len(s) + 1)
	tmp := make([]byte, 4)
	writeUint(tmp, 0, 4, w.big, uint64(length))
	w.buf = append(w.buf, tmp...)
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// SerializeCDR encodes value as a complete CDR message: the 4-byte
// little-endian encapsulation header followed by the aligned body.
func SerializeCDR(reg *registry.Registry, desc typesys.TypeDescriptor, value Value) ([]byte, error) {
	w := &cdrWriter{big: false}
	if err := serializeCDRStruct(reg, w, desc, value); err != nil {
		return nil, err
	}
	out := make([]byte, 4, 4+len(w.buf))
	out[0], out[1], out[2], out[3] = 0, 1, 0, 0
	out = append(out, w.buf...)
	return out, nil
}

func serializeCDRStruct(reg *registry.Registry, w *cdrWriter, desc typesys.TypeDescriptor, value Value) error {
	for _, f := range desc.Fields {
		v, ok := value[f.Name]
		if !ok {
			return newSerdeError("missing field %q for type %q", f.Name, desc.Name)
		}
		if err := serializeCDRField(reg, w, f.Descriptor, v); err != nil {
			return err
		}
	}
	return nil
}

func serializeCDRField(reg *registry.Registry, w *cdrWriter, fd typesys.FieldDescriptor, v interface{}) error {
	switch fd.Kind {
	case typesys.FieldBase:
		if fd.Primitive == typesys.String {
			s, ok := v.(string)
			if !ok {
				return newSerdeError("expected string, got %T", v)
			}
			w.writeString(s)
			return nil
		}
		return w.writePrimitive(fd.Primitive, v)

	case typesys.FieldName:
		sub, err := reg.Get(fd.Ref)
		if err != nil {
			return err
		}
		val, ok := v.(Value)
		if !ok {
			return newSerdeError("expected struct value for %q, got %T", fd.Ref, v)
		}
		return serializeCDRStruct(reg, w, sub, val)

	case typesys.FieldArray:
		items, ok := v.([]interface{})
		if !ok {
			return newSerdeError("expected array, got %T", v)
		}
		if len(items) != fd.Count {
			return newSerdeError("unexpected array length: want %d got %d", fd.Count, len(items))
		}
		for _, item := range items {
			if err := serializeCDRField(reg, w, *fd.Inner, item); err != nil {
				return err
			}
		}
		return nil

	case typesys.FieldSequence:
		items, ok := v.([]interface{})
		if !ok {
			return newSerdeError("expected sequence, got %T", v)
		}
		if err := w.writePrimitive(typesys.Uint32, uint32(len(items))); err != nil {
			return err
		}
		for _, item := range items {
			if err := serializeCDRField(reg, w, *fd.Inner, item); err != nil {
				return err
			}
		}
		return nil

	default:
		return newSerdeError("serialize_cdr: unhandled field kind %v", fd.Kind)
	}
}

type cdrReader struct {
	buf []byte
	pos int
	big bool
}

func (r *cdrReader) align(size int) {
	r.pos = alignTo(r.pos, size)
}

func (r *cdrReader) readPrimitive(prim typesys.PrimitiveKind) (interface{}, error) {
	size := prim.Size()
	r.align(size)
	if r.pos+size > len(r.buf) {
		return nil, newSerdeError("buffer underrun reading %s", prim)
	}
	v := readPrimitive(r.buf, r.pos, prim, r.big)
	r.pos += size
	return v, nil
}

func (r *cdrReader) readString() (string, error) {
	r.align(4)
	if r.pos+4 > len(r.buf) {
		return "", newSerdeError("buffer underrun reading string length")
	}
	length := int(readUint(r.buf, r.pos, 4, r.big))
	r.pos += 4
	if length == 0 {
		return "", nil
	}
	if r.pos+length > len(r.buf) {
		return "", newSerdeError("buffer underrun reading string payload")
	}
	s := string(r.buf[r.pos : r.pos+length-1])
	r.pos += length
	return s, nil
}

// DeserializeCDR decodes buf, which must start with the 4-byte
// representation header, into a Value for desc. The header's low
// identifier byte selects endianness for the remaining body: 1 little, 0
// big.
func DeserializeCDR(reg *registry.Registry, desc typesys.TypeDescriptor, buf []byte) (Value, error) {
	if len(buf) < 4 {
		return nil, newSerdeError("buffer too short for CDR header")
	}
	r := &cdrReader{buf: buf[4:], big: buf[1] == 0}
	return deserializeCDRStruct(reg, r, desc)
}

func deserializeCDRStruct(reg *registry.Registry, r *cdrReader, desc typesys.TypeDescriptor) (Value, error) {
	out := make(Value, len(desc.Fields))
	for _, f := range desc.Fields {
		v, err := deserializeCDRField(reg, r, f.Descriptor)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func deserializeCDRField(reg *registry.Registry, r *cdrReader, fd typesys.FieldDescriptor) (interface{}, error) {
	switch fd.Kind {
	case typesys.FieldBase:
		if fd.Primitive == typesys.String {
			return r.readString()
		}
		return r.readPrimitive(fd.Primitive)

	case typesys.FieldName:
		sub, err := reg.Get(fd.Ref)
		if err != nil {
			return nil, err
		}
		return deserializeCDRStruct(reg, r, sub)

	case typesys.FieldArray:
		items := make([]interface{}, fd.Count)
		for i := range items {
			v, err := deserializeCDRField(reg, r, *fd.Inner)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil

	case typesys.FieldSequence:
		n, err := r.readPrimitive(typesys.Uint32)
		if err != nil {
			return nil, err
		}
		count := int(n.(uint32))
		items := make([]interface{}, count)
		for i := range items {
			v, err := deserializeCDRField(reg, r, *fd.Inner)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil

	default:
		return nil, newSerdeError("deserialize_cdr: unhandled field kind %v", fd.Kind)
	}
}
