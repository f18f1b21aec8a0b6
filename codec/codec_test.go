package codec_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/rosbags-go/rosbags/codec"
	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

func point32() typesys.TypeDescriptor {
	f32 := typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.Float32}
	return typesys.TypeDescriptor{
		Name: "geometry_msgs/msg/Point32",
		Fields: []typesys.Field{
			{Name: "x", Descriptor: f32},
			{Name: "y", Descriptor: f32},
			{Name: "z", Descriptor: f32},
		},
	}
}

func polygon() typesys.TypeDescriptor {
	inner := typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: "geometry_msgs/msg/Point32"}
	return typesys.TypeDescriptor{
		Name: "geometry_msgs/msg/Polygon",
		Fields: []typesys.Field{
			{Name: "points", Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldSequence, Inner: &inner, Count: 0}},
		},
	}
}

func newPolygonRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	err := reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{
		"geometry_msgs/msg/Point32":  point32(),
		"geometry_msgs/msg/Polygon": polygon(),
	})
	test.That(t, err, test.ShouldBeNil)
	return reg
}

func TestPolygonCDRRoundTrip(t *testing.T) {
	reg := newPolygonRegistry(t)
	desc, err := reg.Get("geometry_msgs/msg/Polygon")
	test.That(t, err, test.ShouldBeNil)

	value := codec.Value{
		"points": []interface{}{
			codec.Value{"x": float32(1), "y": float32(2), "z": float32(3)},
			codec.Value{"x": float32(-1), "y": float32(0.5), "z": float32(0)},
		},
	}

	buf, err := codec.SerializeCDR(reg, desc, value)
	test.That(t, err, test.ShouldBeNil)

	decoded, err := codec.DeserializeCDR(reg, desc, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded, test.ShouldResemble, value)
}

func TestPolygonROS1RoundTrip(t *testing.T) {
	reg := newPolygonRegistry(t)
	desc, err := reg.Get("geometry_msgs/msg/Polygon")
	test.That(t, err, test.ShouldBeNil)

	value := codec.Value{
		"points": []interface{}{
			codec.Value{"x": float32(1), "y": float32(2), "z": float32(3)},
		},
	}

	buf, err := codec.SerializeROS1(reg, desc, value)
	test.That(t, err, test.ShouldBeNil)

	decoded, err := codec.DeserializeROS1(reg, desc, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded, test.ShouldResemble, value)
}

func TestFactoryCachesProcedures(t *testing.T) {
	reg := newPolygonRegistry(t)
	f := codec.NewFactory(reg)

	p1, err := f.Procedures("geometry_msgs/msg/Polygon")
	test.That(t, err, test.ShouldBeNil)
	p2, err := f.Procedures("geometry_msgs/msg/Polygon")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p1, test.ShouldEqual, p2)
}

func TestUnknownTypeProcedures(t *testing.T) {
	reg := registry.New()
	f := codec.NewFactory(reg)
	_, err := f.Procedures("pkg/msg/Missing")
	test.That(t, err, test.ShouldNotBeNil)
}
