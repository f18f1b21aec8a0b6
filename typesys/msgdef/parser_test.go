package msgdef_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/msgdef"
)

func TestParseSimpleFields(t *testing.T) {
	defs, err := msgdef.Parse("int32 x\nfloat64 y\nstring name\n", "pkg/msg/Point3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(defs), test.ShouldEqual, 1)

	desc, ok := defs["pkg/msg/Point3"]
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(desc.Fields), test.ShouldEqual, 3)
	test.That(t, desc.Fields[0].Name, test.ShouldEqual, "x")
	test.That(t, desc.Fields[0].Descriptor.Kind, test.ShouldEqual, typesys.FieldBase)
	test.That(t, desc.Fields[0].Descriptor.Primitive, test.ShouldEqual, typesys.Int32)
}

func TestParseConstants(t *testing.T) {
	defs, err := msgdef.Parse("uint8 RED=0\nuint8 GREEN=1\nuint8 color\n", "pkg/msg/Colored")
	test.That(t, err, test.ShouldBeNil)

	desc := defs["pkg/msg/Colored"]
	test.That(t, len(desc.Constants), test.ShouldEqual, 2)
	test.That(t, desc.Constants[0].Name, test.ShouldEqual, "RED")
	test.That(t, desc.Constants[1].Value, test.ShouldEqual, int64(1))
}

func TestParseStringConstant(t *testing.T) {
	defs, err := msgdef.Parse("string EXAMPLE=a string with # not a comment\n", "pkg/msg/Doc")
	test.That(t, err, test.ShouldBeNil)

	desc := defs["pkg/msg/Doc"]
	test.That(t, len(desc.Constants), test.ShouldEqual, 1)
	test.That(t, desc.Constants[0].Name, test.ShouldEqual, "EXAMPLE")
	test.That(t, desc.Constants[0].Value, test.ShouldEqual, "a string with # not a comment")
}

func TestParseArraysAndBoundedStrings(t *testing.T) {
	defs, err := msgdef.Parse("float64[3] xyz\nstring<=16 name\nint32[] values\n", "pkg/msg/Mixed")
	test.That(t, err, test.ShouldBeNil)

	desc := defs["pkg/msg/Mixed"]
	test.That(t, desc.Fields[0].Descriptor.Kind, test.ShouldEqual, typesys.FieldArray)
	test.That(t, desc.Fields[0].Descriptor.Count, test.ShouldEqual, 3)
	test.That(t, desc.Fields[1].Descriptor.Bound, test.ShouldEqual, 16)
	test.That(t, desc.Fields[2].Descriptor.Kind, test.ShouldEqual, typesys.FieldSequence)
	test.That(t, desc.Fields[2].Descriptor.Count, test.ShouldEqual, 0)
}

func TestParseNestedAndHeader(t *testing.T) {
	text := "Header header\nPolygon poly\n================================================================================\nMSG: pkg/Polygon\nPoint32[] points\n================================================================================\nMSG: geometry_msgs/msg/Point32\nfloat32 x\nfloat32 y\nfloat32 z\n"
	defs, err := msgdef.Parse(text, "pkg/msg/PolygonStamped")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(defs), test.ShouldEqual, 3)

	top := defs["pkg/msg/PolygonStamped"]
	test.That(t, top.Fields[0].Descriptor.Ref, test.ShouldEqual, typesys.TypeName("std_msgs/msg/Header"))
	test.That(t, top.Fields[1].Descriptor.Ref, test.ShouldEqual, typesys.TypeName("pkg/msg/Polygon"))
}
