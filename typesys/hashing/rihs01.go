package hashing

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

// tidMap assigns the stable small integers ROS2's type description hashing
// uses for each primitive. Offsets of +48/+96/+144 are added for fixed
// arrays, bounded sequences and unbounded sequences respectively.
var tidMap = map[string]int{
	"int8": 2, "uint8": 3, "int16": 4, "uint16": 5,
	"int32": 6, "uint32": 7, "int64": 8, "uint64": 9,
	"float32": 10, "float64": 11, "float128": 12, "char": 13,
	"bool": 15, "octet": 16, "string": 17, "bounded_string": 21,
}

func tidName(p typesys.PrimitiveKind) string {
	switch p {
	case typesys.Bool:
		return "bool"
	case typesys.Octet:
		return "octet"
	case typesys.Int8:
		return "int8"
	case typesys.Uint8:
		return "uint8"
	case typesys.Int16:
		return "int16"
	case typesys.Uint16:
		return "uint16"
	case typesys.Int32:
		return "int32"
	case typesys.Uint32:
		return "uint32"
	case typesys.Int64:
		return "int64"
	case typesys.Uint64:
		return "uint64"
	case typesys.Float32:
		return "float32"
	case typesys.Float64:
		return "float64"
	case typesys.String:
		return "string"
	default:
		return "octet"
	}
}

type rihsField struct {
	name     string
	typeID   int
	capacity int
	strCap   int
	nested   string
}

type rihsStruct struct {
	name   string
	fields []rihsField
}

// RIHS01 computes the ROS2 type-description hash for a registered type.
func RIHS01(reg *registry.Registry, name typesys.TypeName) (string, error) {
	cache := map[typesys.TypeName]rihsStruct{}
	order := []typesys.TypeName{}

	root, err := rihsGetStruct(reg, name, cache, &order)
	if err != nil {
		return "", err
	}

	var referenced []rihsStruct
	names := append([]typesys.TypeName{}, order...)
	sortTypeNameList(names)
	for _, n := range names {
		if n == name {
			continue
		}
		referenced = append(referenced, cache[n])
	}

	var b strings.Builder
	b.WriteByte('{')
	b.WriteString(`"type_description": `)
	writeStruct(&b, root)
	b.WriteString(`, "referenced_type_descriptions": [`)
	for i, s := range referenced {
		if i > 0 {
			b.WriteString(", ")
		}
		writeStruct(&b, s)
	}
	b.WriteString("]}")

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("RIHS01_%x", sum), nil
}

func rihsGetStruct(reg *registry.Registry, name typesys.TypeName, cache map[typesys.TypeName]rihsStruct, order *[]typesys.TypeName) (rihsStruct, error) {
	if s, ok := cache[name]; ok {
		return s, nil
	}
	desc, err := reg.Get(name)
	if err != nil {
		return rihsStruct{}, err
	}

	cache[name] = rihsStruct{name: string(name)}
	*order = append(*order, name)

	fields := desc.Fields
	if len(fields) == 0 {
		fields = []typesys.Field{{
			Name:       "structure_needs_at_least_one_member",
			Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.Uint8},
		}}
	}

	out := make([]rihsField, 0, len(fields))
	for _, f := range fields {
		rf, err := rihsGetField(reg, f.Name, f.Descriptor, cache, order)
		if err != nil {
			return rihsStruct{}, err
		}
		out = append(out, rf)
	}

	s := rihsStruct{name: string(name), fields: out}
	cache[name] = s
	return s, nil
}

func rihsGetField(reg *registry.Registry, fieldName string, fd typesys.FieldDescriptor, cache map[typesys.TypeName]rihsStruct, order *[]typesys.TypeName) (rihsField, error) {
	increment := 0
	capacity := 0
	base := fd

	switch fd.Kind {
	case typesys.FieldArray:
		increment = 48
		capacity = fd.Count
		base = *fd.Inner
	case typesys.FieldSequence:
		if fd.Count != 0 {
			increment = 96
			capacity = fd.Count
		} else {
			increment = 144
		}
		base = *fd.Inner
	}

	switch base.Kind {
	case typesys.FieldName:
		if _, err := rihsGetStruct(reg, base.Ref, cache, order); err != nil {
			return rihsField{}, err
		}
		return rihsField{
			name:   fieldName,
			typeID: increment + 1,
			capacity: capacity,
			nested: string(base.Ref),
		}, nil
	case typesys.FieldBase:
		if base.Primitive == typesys.String {
			if base.Bound > 0 {
				return rihsField{name: fieldName, typeID: increment + tidMap["bounded_string"], capacity: capacity, strCap: base.Bound}, nil
			}
			return rihsField{name: fieldName, typeID: increment + tidMap["string"], capacity: capacity}, nil
		}
		return rihsField{name: fieldName, typeID: increment + tidMap[tidName(base.Primitive)], capacity: capacity}, nil
	default:
		return rihsField{}, fmt.Errorf("rihs01: nested array/sequence of array/sequence is not representable")
	}
}

func writeStruct(b *strings.Builder, s rihsStruct) {
	b.WriteByte('{')
	b.WriteString(`"type_name": `)
	writeJSONString(b, s.name)
	b.WriteString(`, "fields": [`)
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		writeField(b, f)
	}
	b.WriteString("]}")
}

func writeField(b *strings.Builder, f rihsField) {
	b.WriteByte('{')
	b.WriteString(`"name": `)
	writeJSONString(b, f.name)
	b.WriteString(`, "type": {"type_id": `)
	fmt.Fprintf(b, "%d", f.typeID)
	b.WriteString(`, "capacity": `)
	fmt.Fprintf(b, "%d", f.capacity)
	b.WriteString(`, "string_capacity": `)
	fmt.Fprintf(b, "%d", f.strCap)
	b.WriteString(`, "nested_type_name": `)
	writeJSONString(b, f.nested)
	b.WriteString("}}")
}

// writeJSONString matches Python's json.dumps default string encoding
// (ensure_ascii=True): ASCII passes through, '"' and '\\' are escaped, and
// any non-ASCII rune is emitted as a \uXXXX escape.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r < 0x20:
			fmt.Fprintf(b, `\u%04x`, r)
		case r < 0x80:
			b.WriteRune(r)
		default:
			fmt.Fprintf(b, `\u%04x`, r)
		}
	}
	b.WriteByte('"')
}

func sortTypeNameList(names []typesys.TypeName) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}
