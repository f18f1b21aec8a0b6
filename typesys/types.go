// Package typesys holds the structural model shared by every message-definition
// consumer: normalized type names, primitive kinds, field descriptors and the
// type descriptor that ties them together for a single registered message type.
package typesys

import (
	"fmt"
	"strings"
)

// PrimitiveKind enumerates the base wire types shared by MSG and IDL
// definitions, carrying their fixed wire size in bytes (0 for the
// variable-length string).
type PrimitiveKind int

const (
	Bool PrimitiveKind = iota
	Octet
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	String
)

// Size returns the fixed wire size of the primitive in bytes, or 0 for
// String, whose size is value-dependent.
func (p PrimitiveKind) Size() int {
	switch p {
	case Bool, Octet, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

func (p PrimitiveKind) String() string {
	switch p {
	case Bool:
		return "bool"
	case Octet:
		return "octet"
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// PrimitiveFromName maps a normalized (post-alias) primitive keyword to its
// PrimitiveKind. byte/char aliasing happens earlier, in the parsers.
func PrimitiveFromName(name string) (PrimitiveKind, bool) {
	switch name {
	case "bool":
		return Bool, true
	case "octet":
		return Octet, true
	case "int8":
		return Int8, true
	case "uint8":
		return Uint8, true
	case "int16":
		return Int16, true
	case "uint16":
		return Uint16, true
	case "int32":
		return Int32, true
	case "uint32":
		return Uint32, true
	case "int64":
		return Int64, true
	case "uint64":
		return Uint64, true
	case "float32":
		return Float32, true
	case "float64":
		return Float64, true
	case "string":
		return String, true
	default:
		return 0, false
	}
}

// TypeName is a normalized message type name of the form "package/msg/Type".
type TypeName string

// Normalize inserts "msg" as the middle path segment when missing, and
// expands the bare name "Header" to "std_msgs/msg/Header".
func Normalize(name string) TypeName {
	if name == "Header" {
		return "std_msgs/msg/Header"
	}
	parts := strings.Split(name, "/")
	switch len(parts) {
	case 1:
		return TypeName(name)
	case 2:
		return TypeName(parts[0] + "/msg/" + parts[1])
	default:
		if parts[len(parts)-2] != "msg" {
			pkg := strings.Join(parts[:len(parts)-1], "/")
			return TypeName(pkg + "/msg/" + parts[len(parts)-1])
		}
		return TypeName(name)
	}
}

// Package returns the leading package segment of a normalized type name.
func (t TypeName) Package() string {
	parts := strings.SplitN(string(t), "/", 2)
	return parts[0]
}

// Short returns the trailing type segment, e.g. "Header" for
// "std_msgs/msg/Header".
func (t TypeName) Short() string {
	parts := strings.Split(string(t), "/")
	return parts[len(parts)-1]
}

// FieldKind tags the variant held by a FieldDescriptor.
type FieldKind int

const (
	FieldBase FieldKind = iota
	FieldName
	FieldArray
	FieldSequence
)

// FieldDescriptor is the tagged-variant field type from spec.md §3: a base
// primitive (with string bound), a reference to another registered type, a
// fixed-length array, or a bounded/unbounded sequence.
type FieldDescriptor struct {
	Kind FieldKind

	// Base / Name
	Primitive PrimitiveKind // valid when Kind == FieldBase
	Bound     int           // string bound for FieldBase; 0 means unbounded
	Ref       TypeName      // valid when Kind == FieldName

	// Array / Sequence
	Inner *FieldDescriptor // element descriptor
	Count int              // Array: fixed length; Sequence: bound (0 = unbounded)
}

// IsString reports whether the descriptor is a Base(string) field.
func (f FieldDescriptor) IsString() bool {
	return f.Kind == FieldBase && f.Primitive == String
}

func (f FieldDescriptor) String() string {
	switch f.Kind {
	case FieldBase:
		if f.Primitive == String {
			if f.Bound > 0 {
				return fmt.Sprintf("string<=%d", f.Bound)
			}
			return "string"
		}
		return f.Primitive.String()
	case FieldName:
		return string(f.Ref)
	case FieldArray:
		return fmt.Sprintf("%s[%d]", f.Inner, f.Count)
	case FieldSequence:
		if f.Count == 0 {
			return fmt.Sprintf("%s[]", f.Inner)
		}
		return fmt.Sprintf("%s[<=%d]", f.Inner, f.Count)
	default:
		return "?"
	}
}

// ConstantDef is a named constant carried by a type: PrimitiveKind, name and
// literal value (string, bool, int64 or float64).
type ConstantDef struct {
	Name      string
	Primitive PrimitiveKind
	Value     interface{}
}

// Field pairs a field name with its descriptor, preserving declaration order.
type Field struct {
	Name       string
	Descriptor FieldDescriptor
}

// TypeDescriptor is the structural summary of one registered message type:
// its name, constants and fields in declaration order.
type TypeDescriptor struct {
	Name      TypeName
	Constants []ConstantDef
	Fields    []Field
}

// Equal performs the case-insensitive-on-field-name structural comparison
// TypeRegistry uses to decide whether a redefinition is a legacy-accommodated
// no-op or a genuine conflict. Constants are not compared: only the field
// list determines wire compatibility.
func (t TypeDescriptor) Equal(other TypeDescriptor) bool {
	if len(t.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range t.Fields {
		g := other.Fields[i]
		if !strings.EqualFold(f.Name, g.Name) {
			return false
		}
		if !fieldDescriptorEqual(f.Descriptor, g.Descriptor) {
			return false
		}
	}
	return true
}

func fieldDescriptorEqual(a, b FieldDescriptor) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case FieldBase:
		return a.Primitive == b.Primitive && a.Bound == b.Bound
	case FieldName:
		return a.Ref == b.Ref
	case FieldArray, FieldSequence:
		if a.Count != b.Count {
			return false
		}
		if (a.Inner == nil) != (b.Inner == nil) {
			return false
		}
		if a.Inner == nil {
			return true
		}
		return fieldDescriptorEqual(*a.Inner, *b.Inner)
	default:
		return false
	}
}

// ReservedWords is the fixed table of identifiers that get a trailing
// underscore when used as a field name (shared by MSG and IDL parsers).
var ReservedWords = map[string]bool{
	"break": true, "case": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "exec": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true, "import": true,
	"in": true, "is": true, "lambda": true, "not": true, "or": true,
	"pass": true, "print": true, "raise": true, "return": true, "try": true,
	"while": true, "with": true, "yield": true, "class": true, "assert": true,
	"and": true, "as": true, "async": true, "await": true, "nonlocal": true,
	"type": true, "match": true,
}

// NormalizeFieldName appends a trailing underscore to reserved keywords.
func NormalizeFieldName(name string) string {
	if ReservedWords[name] {
		return name + "_"
	}
	return name
}
