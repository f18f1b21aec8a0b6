package codec

import (
	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

type ros1Writer struct{ buf []byte }

func (w *ros1Writer) writePrimitive(prim typesys.PrimitiveKind, v interface{}) error {
	size := prim.Size()
	tmp := make([]byte, size)
	if err := writePrimitive(tmp, 0, prim, v, false); err != nil {
		return err
	}
	w.buf = append(w.buf, tmp...)
	return nil
}

func (w *ros1Writer) writeString(s string) {
	tmp := make([]byte, 4)
	writeU32LE(tmp, 0, uint32(len(s)))
	w.buf = append(w.buf, tmp...)
	w.buf = append(w.buf, s...)
}

// SerializeROS1 encodes value as a packed ROS1 message body for desc: no
// inter-field alignment, except the hidden leading uint32 "seq" that every
// std_msgs/msg/Header carries in ROS1 but not in its own TypeDescriptor.
func SerializeROS1(reg *registry.Registry, desc typesys.TypeDescriptor, value Value) ([]byte, error) {
	w := &ros1Writer{}
	if err := serializeROS1Struct(reg, w, desc, value); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func serializeROS1Struct(reg *registry.Registry, w *ros1Writer, desc typesys.TypeDescriptor, value Value) error {
	if desc.Name == "std_msgs/msg/Header" {
		w.buf = append(w.buf, 0, 0, 0, 0)
	}
	for _, f := range desc.Fields {
		v, ok := value[f.Name]
		if !ok {
			return newSerdeError("missing field %q for type %q", f.Name, desc.Name)
		}
		if err := serializeROS1Field(reg, w, f.Descriptor, v); err != nil {
			return err
		}
	}
	return nil
}

func serializeROS1Field(reg *registry.Registry, w *ros1Writer, fd typesys.FieldDescriptor, v interface{}) error {
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
		return serializeROS1Struct(reg, w, sub, val)

	case typesys.FieldArray:
		items, ok := v.([]interface{})
		if !ok {
			return newSerdeError("expected array, got %T", v)
		}
		if len(items) != fd.Count {
			return newSerdeError("unexpected array length: want %d got %d", fd.Count, len(items))
		}
		for _, item := range items {
			if err := serializeROS1Field(reg, w, *fd.Inner, item); err != nil {
				return err
			}
		}
		return nil

	case typesys.FieldSequence:
		items, ok := v.([]interface{})
		if !ok {
			return newSerdeError("expected sequence, got %T", v)
		}
		tmp := make([]byte, 4)
		writeU32LE(tmp, 0, uint32(len(items)))
		w.buf = append(w.buf, tmp...)
		for _, item := range items {
			if err := serializeROS1Field(reg, w, *fd.Inner, item); err != nil {
				return err
			}
		}
		return nil

	default:
		return newSerdeError("serialize_ros1: unhandled field kind %v", fd.Kind)
	}
}

type ros1Reader struct {
	buf []byte
	pos int
}

func (r *ros1Reader) readPrimitive(prim typesys.PrimitiveKind) (interface{}, error) {
	size := prim.Size()
	if r.pos+size > len(r.buf) {
		return nil, newSerdeError("buffer underrun reading %s", prim)
	}
	v := readPrimitive(r.buf, r.pos, prim, false)
	r.pos += size
	return v, nil
}

func (r *ros1Reader) readString() (string, error) {
	if r.pos+4 > len(r.buf) {
		return "", newSerdeError("buffer underrun reading string length")
	}
	length := int(readU32LE(r.buf, r.pos))
	r.pos += 4
	if r.pos+length > len(r.buf) {
		return "", newSerdeError("buffer underrun reading string payload")
	}
	s := string(r.buf[r.pos : r.pos+length])
	r.pos += length
	return s, nil
}

// DeserializeROS1 decodes a packed ROS1 message body into a Value for desc,
// discarding std_msgs/msg/Header's hidden leading "seq" uint32.
func DeserializeROS1(reg *registry.Registry, desc typesys.TypeDescriptor, buf []byte) (Value, error) {
	r := &ros1Reader{buf: buf}
	return deserializeROS1Struct(reg, r, desc)
}

func deserializeROS1Struct(reg *registry.Registry, r *ros1Reader, desc typesys.TypeDescriptor) (Value, error) {
	if desc.Name == "std_msgs/msg/Header" {
		r.pos += 4
	}
	out := make(Value, len(desc.Fields))
	for _, f := range desc.Fields {
		v, err := deserializeROS1Field(reg, r, f.Descriptor)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func deserializeROS1Field(reg *registry.Registry, r *ros1Reader, fd typesys.FieldDescriptor) (interface{}, error) {
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
		return deserializeROS1Struct(reg, r, sub)

	case typesys.FieldArray:
		items := make([]interface{}, fd.Count)
		for i := range items {
			v, err := deserializeROS1Field(reg, r, *fd.Inner)
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
			v, err := deserializeROS1Field(reg, r, *fd.Inner)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil

	default:
		return nil, newSerdeError("deserialize_ros1: unhandled field kind %v", fd.Kind)
	}
}
