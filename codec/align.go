package codec

import (
	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

// alignBefore is the CDR alignment a field's first emitted byte requires:
// a primitive's own size, 4 for a string (its length prefix) or a sequence
// (ditto), an array's element alignment, or a struct's first-field
// alignment recursively (1 for an empty struct).
func alignBefore(reg *registry.Registry, fd typesys.FieldDescriptor) int {
	switch fd.Kind {
	case typesys.FieldBase:
		if fd.Primitive == typesys.String {
			return 4
		}
		return fd.Primitive.Size()
	case typesys.FieldName:
		desc, err := reg.Get(fd.Ref)
		if err != nil || len(desc.Fields) == 0 {
			return 1
		}
		return alignBefore(reg, desc.Fields[0].Descriptor)
	case typesys.FieldArray:
		return alignBefore(reg, *fd.Inner)
	case typesys.FieldSequence:
		return 4
	default:
		return 1
	}
}

// alignAfter is the CDR alignment guaranteed once a field has been fully
// emitted: a primitive's size (1 for strings, whose last byte is a NUL with
// no guaranteed trailing padding), an array's last-element alignment, a
// struct's last-field alignment recursively, or — for sequences — that
// clamped to 4, since the length prefix bounds what the next field can rely
// on regardless of the element type.
func alignAfter(reg *registry.Registry, fd typesys.FieldDescriptor) int {
	switch fd.Kind {
	case typesys.FieldBase:
		if fd.Primitive == typesys.String {
			return 1
		}
		return fd.Primitive.Size()
	case typesys.FieldName:
		desc, err := reg.Get(fd.Ref)
		if err != nil || len(desc.Fields) == 0 {
			return 1
		}
		return alignAfter(reg, desc.Fields[len(desc.Fields)-1].Descriptor)
	case typesys.FieldArray:
		return alignAfter(reg, *fd.Inner)
	case typesys.FieldSequence:
		a := alignAfter(reg, *fd.Inner)
		if a > 4 {
			return 4
		}
		return a
	default:
		return 1
	}
}
