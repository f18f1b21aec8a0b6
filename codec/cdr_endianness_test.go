package codec_test

import (
	"encoding/binary"
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/rosbags-go/rosbags/codec"
	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

func vector3() typesys.TypeDescriptor {
	f64 := typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.Float64}
	return typesys.TypeDescriptor{
		Name: "geometry_msgs/msg/Vector3",
		Fields: []typesys.Field{
			{Name: "x", Descriptor: f64},
			{Name: "y", Descriptor: f64},
			{Name: "z", Descriptor: f64},
		},
	}
}

func magneticField() typesys.TypeDescriptor {
	header := typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: "std_msgs/msg/Header"}
	field := typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: "geometry_msgs/msg/Vector3"}
	f64 := typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.Float64}
	return typesys.TypeDescriptor{
		Name: "sensor_msgs/msg/MagneticField",
		Fields: []typesys.Field{
			{Name: "header", Descriptor: header},
			{Name: "magnetic_field", Descriptor: field},
			{Name: "magnetic_field_covariance", Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldArray, Inner: &f64, Count: 9}},
		},
	}
}

// buildMagneticField hand-lays-out the CDR body for a MagneticField value
// with stamp=(708,256), frame_id="foo42", field=(128,128,128), and an
// identity covariance, in either byte order, to exercise the
// representation-identifier driven endianness switch independent of the
// serializer under test.
func buildMagneticField(order binary.ByteOrder) []byte {
	body := make([]byte, 0, 120)
	put32 := func(v uint32) {
		tmp := make([]byte, 4)
		order.PutUint32(tmp, v)
		body = append(body, tmp...)
	}
	put64 := func(v uint64) {
		tmp := make([]byte, 8)
		order.PutUint64(tmp, v)
		body = append(body, tmp...)
	}
	padTo := func(n int) {
		for len(body)%n != 0 {
			body = append(body, 0)
		}
	}

	put32(708)                      // stamp.sec
	put32(256)                      // stamp.nanosec
	put32(uint32(len("foo42") + 1)) // frame_id length
	body = append(body, "foo42"...) // frame_id bytes
	body = append(body, 0)          // frame_id terminator
	padTo(8)                        // align for the first float64
	put64(math.Float64bits(128))    // x
	put64(math.Float64bits(128))    // y
	put64(math.Float64bits(128))    // z
	identity := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	for _, v := range identity {
		put64(math.Float64bits(v))
	}

	out := make([]byte, 4, 4+len(body))
	if order == binary.LittleEndian {
		out[1] = 1
	} else {
		out[1] = 0
	}
	return append(out, body...)
}

func newMagneticFieldRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	err := reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{
		"geometry_msgs/msg/Vector3":     vector3(),
		"sensor_msgs/msg/MagneticField": magneticField(),
	})
	test.That(t, err, test.ShouldBeNil)
	return reg
}

func TestMagneticFieldEndiannessAgreement(t *testing.T) {
	reg := newMagneticFieldRegistry(t)
	desc, err := reg.Get("sensor_msgs/msg/MagneticField")
	test.That(t, err, test.ShouldBeNil)

	le := buildMagneticField(binary.LittleEndian)
	be := buildMagneticField(binary.BigEndian)

	leValue, err := codec.DeserializeCDR(reg, desc, le)
	test.That(t, err, test.ShouldBeNil)
	beValue, err := codec.DeserializeCDR(reg, desc, be)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, leValue, test.ShouldResemble, beValue)

	header := leValue["header"].(codec.Value)
	stamp := header["stamp"].(codec.Value)
	test.That(t, stamp["sec"], test.ShouldEqual, int32(708))
	test.That(t, stamp["nanosec"], test.ShouldEqual, uint32(256))
	test.That(t, header["frame_id"], test.ShouldEqual, "foo42")
}

func TestJointTrajectoryToleratesTrailingGarbage(t *testing.T) {
	reg := registry.New()
	point := typesys.TypeDescriptor{
		Name: "trajectory_msgs/msg/JointTrajectoryPoint",
		Fields: []typesys.Field{
			{Name: "time_from_start", Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: "builtin_interfaces/msg/Duration"}},
		},
	}
	strSeq := typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.String}
	pointSeq := typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: "trajectory_msgs/msg/JointTrajectoryPoint"}
	trajectory := typesys.TypeDescriptor{
		Name: "trajectory_msgs/msg/JointTrajectory",
		Fields: []typesys.Field{
			{Name: "header", Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: "std_msgs/msg/Header"}},
			{Name: "joint_names", Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldSequence, Inner: &strSeq}},
			{Name: "points", Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldSequence, Inner: &pointSeq}},
		},
	}
	err := reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{
		"trajectory_msgs/msg/JointTrajectoryPoint": point,
		"trajectory_msgs/msg/JointTrajectory":      trajectory,
	})
	test.That(t, err, test.ShouldBeNil)

	desc, err := reg.Get("trajectory_msgs/msg/JointTrajectory")
	test.That(t, err, test.ShouldBeNil)

	value := codec.Value{
		"header": codec.Value{
			"stamp":    codec.Value{"sec": int32(1), "nanosec": uint32(0)},
			"frame_id": "base",
		},
		"joint_names": []interface{}{"a", "b"},
		"points":      []interface{}{},
	}

	buf, err := codec.SerializeCDR(reg, desc, value)
	test.That(t, err, test.ShouldBeNil)

	for garbage := 0; garbage <= 3; garbage++ {
		padded := append(append([]byte{}, buf...), make([]byte, garbage)...)
		decoded, err := codec.DeserializeCDR(reg, desc, padded)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, decoded["joint_names"], test.ShouldResemble, []interface{}{"a", "b"})
		test.That(t, decoded["points"], test.ShouldResemble, []interface{}{})
	}
}
