package codec

import (
	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

// ROS1ToCDR converts one value of desc's type from its ROS1 packed
// representation to CDR, walking both buffers byte-for-byte without ever
// materializing a Value. When copy is false no bytes are written and the
// call only computes the resulting cursor positions, letting a caller
// pre-size an output buffer.
func ROS1ToCDR(reg *registry.Registry, desc typesys.TypeDescriptor, ros1 []byte, ipos int, cdr []byte, opos int, copy bool) (int, int, error) {
	if desc.Name == "std_msgs/msg/Header" {
		ipos += 4
	}
	aligned := 8
	for idx, f := range desc.Fields {
		nipos, nopos, a, err := ros1ToCDRField(reg, f.Descriptor, ros1, ipos, cdr, opos, copy)
		if err != nil {
			return 0, 0, err
		}
		ipos, opos, aligned = nipos, nopos, a
		if idx+1 < len(desc.Fields) {
			nb := alignBefore(reg, desc.Fields[idx+1].Descriptor)
			if aligned < nb {
				opos = alignTo(opos, nb)
				aligned = nb
			}
		}
	}
	return ipos, opos, nil
}

func ros1ToCDRField(reg *registry.Registry, fd typesys.FieldDescriptor, ros1 []byte, ipos int, cdr []byte, opos int, doCopy bool) (int, int, int, error) {
	switch fd.Kind {
	case typesys.FieldBase:
		if fd.Primitive == typesys.String {
			length := int(readU32LE(ros1, ipos)) + 1
			if doCopy {
				writeU32LE(cdr, opos, uint32(length))
			}
			ipos += 4
			opos += 4
			if doCopy {
				copy(cdr[opos:opos+length-1], ros1[ipos:ipos+length-1])
			}
			ipos += length - 1
			opos += length
			return ipos, opos, 1, nil
		}
		size := fd.Primitive.Size()
		if doCopy {
			copy(cdr[opos:opos+size], ros1[ipos:ipos+size])
		}
		return ipos + size, opos + size, size, nil

	case typesys.FieldName:
		sub, err := reg.Get(fd.Ref)
		if err != nil {
			return 0, 0, 0, err
		}
		nipos, nopos, err := ROS1ToCDR(reg, sub, ros1, ipos, cdr, opos, doCopy)
		if err != nil {
			return 0, 0, 0, err
		}
		return nipos, nopos, alignAfter(reg, fd), nil

	case typesys.FieldArray:
		return ros1ToCDRRepeated(reg, *fd.Inner, fd.Count, ros1, ipos, cdr, opos, doCopy, false)

	case typesys.FieldSequence:
		size := int(readU32LE(ros1, ipos))
		if doCopy {
			writeU32LE(cdr, opos, uint32(size))
		}
		ipos += 4
		opos += 4
		nipos, nopos, a, err := ros1ToCDRRepeated(reg, *fd.Inner, size, ros1, ipos, cdr, opos, doCopy, true)
		if err != nil {
			return 0, 0, 0, err
		}
		if a > 4 {
			a = 4
		}
		return nipos, nopos, a, nil

	default:
		return 0, 0, 0, newSerdeError("ros1_to_cdr: unhandled field kind %v", fd.Kind)
	}
}

// ros1ToCDRRepeated walks count elements of inner, either a fixed Array
// (isSequence false, no dynamic padding before the first element — the
// caller's inter-field alignment already covers it) or a Sequence body
// (isSequence true, whose first element may still need padding past the
// 4-byte length prefix it follows).
func ros1ToCDRRepeated(reg *registry.Registry, inner typesys.FieldDescriptor, count int, ros1 []byte, ipos int, cdr []byte, opos int, doCopy bool, isSequence bool) (int, int, int, error) {
	if count == 0 {
		return ipos, opos, alignAfter(reg, inner), nil
	}

	if inner.Kind == typesys.FieldBase && inner.Primitive == typesys.String {
		for i := 0; i < count; i++ {
			opos = alignTo(opos, 4)
			length := int(readU32LE(ros1, ipos)) + 1
			if doCopy {
				writeU32LE(cdr, opos, uint32(length))
			}
			ipos += 4
			opos += 4
			if doCopy {
				copy(cdr[opos:opos+length-1], ros1[ipos:ipos+length-1])
			}
			ipos += length - 1
			opos += length
		}
		return ipos, opos, 1, nil
	}

	if inner.Kind == typesys.FieldBase {
		size := inner.Primitive.Size()
		if isSequence && size > 4 {
			opos = alignTo(opos, size)
		}
		total := count * size
		if doCopy {
			copy(cdr[opos:opos+total], ros1[ipos:ipos+total])
		}
		return ipos + total, opos + total, size, nil
	}

	ab := alignBefore(reg, inner)
	aa := alignAfter(reg, inner)
	for i := 0; i < count; i++ {
		if i == 0 {
			if isSequence && ab > 4 {
				opos = alignTo(opos, ab)
			}
		} else if ab > aa {
			opos = alignTo(opos, ab)
		}
		nipos, nopos, _, err := ros1ToCDRField(reg, inner, ros1, ipos, cdr, opos, doCopy)
		if err != nil {
			return 0, 0, 0, err
		}
		ipos, opos = nipos, nopos
	}
	return ipos, opos, aa, nil
}

// CDRToROS1 is ROS1ToCDR's inverse: it reads CDR (honoring CDR's alignment
// padding on the input cursor only) and writes packed ROS1 bytes with no
// padding at all.
func CDRToROS1(reg *registry.Registry, desc typesys.TypeDescriptor, cdr []byte, ipos int, ros1 []byte, opos int, copy bool) (int, int, error) {
	if desc.Name == "std_msgs/msg/Header" {
		opos += 4
	}
	aligned := 8
	for idx, f := range desc.Fields {
		nipos, nopos, a, err := cdrToROS1Field(reg, f.Descriptor, cdr, ipos, ros1, opos, copy)
		if err != nil {
			return 0, 0, err
		}
		ipos, opos, aligned = nipos, nopos, a
		if idx+1 < len(desc.Fields) {
			nb := alignBefore(reg, desc.Fields[idx+1].Descriptor)
			if aligned < nb {
				ipos = alignTo(ipos, nb)
				aligned = nb
			}
		}
	}
	return ipos, opos, nil
}

func cdrToROS1Field(reg *registry.Registry, fd typesys.FieldDescriptor, cdr []byte, ipos int, ros1 []byte, opos int, doCopy bool) (int, int, int, error) {
	switch fd.Kind {
	case typesys.FieldBase:
		if fd.Primitive == typesys.String {
			length := int(readU32LE(cdr, ipos)) - 1
			if doCopy {
				writeU32LE(ros1, opos, uint32(length))
			}
			ipos += 4
			opos += 4
			if doCopy {
				copy(ros1[opos:opos+length], cdr[ipos:ipos+length])
			}
			ipos += length + 1
			opos += length
			return ipos, opos, 1, nil
		}
		size := fd.Primitive.Size()
		if doCopy {
			copy(ros1[opos:opos+size], cdr[ipos:ipos+size])
		}
		return ipos + size, opos + size, size, nil

	case typesys.FieldName:
		sub, err := reg.Get(fd.Ref)
		if err != nil {
			return 0, 0, 0, err
		}
		nipos, nopos, err := CDRToROS1(reg, sub, cdr, ipos, ros1, opos, doCopy)
		if err != nil {
			return 0, 0, 0, err
		}
		return nipos, nopos, alignAfter(reg, fd), nil

	case typesys.FieldArray:
		return cdrToROS1Repeated(reg, *fd.Inner, fd.Count, cdr, ipos, ros1, opos, doCopy, false)

	case typesys.FieldSequence:
		size := int(readU32LE(cdr, ipos))
		if doCopy {
			writeU32LE(ros1, opos, uint32(size))
		}
		ipos += 4
		opos += 4
		nipos, nopos, a, err := cdrToROS1Repeated(reg, *fd.Inner, size, cdr, ipos, ros1, opos, doCopy, true)
		if err != nil {
			return 0, 0, 0, err
		}
		if a > 4 {
			a = 4
		}
		return nipos, nopos, a, nil

	default:
		return 0, 0, 0, newSerdeError("cdr_to_ros1: unhandled field kind %v", fd.Kind)
	}
}

func cdrToROS1Repeated(reg *registry.Registry, inner typesys.FieldDescriptor, count int, cdr []byte, ipos int, ros1 []byte, opos int, doCopy bool, isSequence bool) (int, int, int, error) {
	if count == 0 {
		return ipos, opos, alignAfter(reg, inner), nil
	}

	if inner.Kind == typesys.FieldBase && inner.Primitive == typesys.String {
		for i := 0; i < count; i++ {
			ipos = alignTo(ipos, 4)
			length := int(readU32LE(cdr, ipos)) - 1
			if doCopy {
				writeU32LE(ros1, opos, uint32(length))
			}
			ipos += 4
			opos += 4
			if doCopy {
				copy(ros1[opos:opos+length], cdr[ipos:ipos+length])
			}
			ipos += length + 1
			opos += length
		}
		return ipos, opos, 1, nil
	}

	if inner.Kind == typesys.FieldBase {
		size := inner.Primitive.Size()
		if isSequence && size > 4 {
			ipos = alignTo(ipos, size)
		}
		total := count * size
		if doCopy {
			copy(ros1[opos:opos+total], cdr[ipos:ipos+total])
		}
		return ipos + total, opos + total, size, nil
	}

	ab := alignBefore(reg, inner)
	aa := alignAfter(reg, inner)
	for i := 0; i < count; i++ {
		if i == 0 {
			if isSequence && ab > 4 {
				ipos = alignTo(ipos, ab)
			}
		} else if ab > aa {
			ipos = alignTo(ipos, ab)
		}
		nipos, nopos, _, err := cdrToROS1Field(reg, inner, cdr, ipos, ros1, opos, doCopy)
		if err != nil {
			return 0, 0, 0, err
		}
		ipos, opos = nipos, nopos
	}
	return ipos, opos, aa, nil
}
