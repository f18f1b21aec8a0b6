package registry_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

func strField(k typesys.PrimitiveKind) typesys.FieldDescriptor {
	return typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: k}
}

func TestRegisterAndGet(t *testing.T) {
	reg := registry.New()
	desc := typesys.TypeDescriptor{
		Name:   "pkg/msg/Foo",
		Fields: []typesys.Field{{Name: "x", Descriptor: strField(typesys.Int32)}},
	}
	err := reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{"pkg/msg/Foo": desc})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reg.Has("pkg/msg/Foo"), test.ShouldBeTrue)

	got, err := reg.Get("pkg/msg/Foo")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Fields[0].Name, test.ShouldEqual, "x")
}

func TestRegisterIdempotentCaseInsensitiveFieldNames(t *testing.T) {
	reg := registry.New()
	first := typesys.TypeDescriptor{
		Name:   "pkg/msg/Foo",
		Fields: []typesys.Field{{Name: "X", Descriptor: strField(typesys.Int32)}},
	}
	second := typesys.TypeDescriptor{
		Name:   "pkg/msg/Foo",
		Fields: []typesys.Field{{Name: "x", Descriptor: strField(typesys.Int32)}},
	}
	test.That(t, reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{"pkg/msg/Foo": first}), test.ShouldBeNil)
	test.That(t, reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{"pkg/msg/Foo": second}), test.ShouldBeNil)
}

func TestRegisterConflict(t *testing.T) {
	reg := registry.New()
	first := typesys.TypeDescriptor{
		Name:   "pkg/msg/Foo",
		Fields: []typesys.Field{{Name: "x", Descriptor: strField(typesys.Int32)}},
	}
	second := typesys.TypeDescriptor{
		Name:   "pkg/msg/Foo",
		Fields: []typesys.Field{{Name: "x", Descriptor: strField(typesys.Int64)}},
	}
	test.That(t, reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{"pkg/msg/Foo": first}), test.ShouldBeNil)
	err := reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{"pkg/msg/Foo": second})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestHeaderAlwaysAccepted(t *testing.T) {
	reg := registry.New()
	replacement := typesys.TypeDescriptor{
		Name: "std_msgs/msg/Header",
		Fields: []typesys.Field{
			{Name: "stamp", Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: "builtin_interfaces/msg/Time"}},
			{Name: "frame_id", Descriptor: strField(typesys.String)},
			{Name: "seq", Descriptor: strField(typesys.Uint32)},
		},
	}
	err := reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{"std_msgs/msg/Header": replacement})
	test.That(t, err, test.ShouldBeNil)
	got, err := reg.Get("std_msgs/msg/Header")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(got.Fields), test.ShouldEqual, 3)
}

func TestUnknownType(t *testing.T) {
	reg := registry.New()
	_, err := reg.Get("pkg/msg/Missing")
	test.That(t, err, test.ShouldNotBeNil)
}
