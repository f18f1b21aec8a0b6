package hashing_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/hashing"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

func TestHeaderMD5(t *testing.T) {
	reg := registry.New()
	digest, err := hashing.MD5(reg, "std_msgs/msg/Header")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, digest, test.ShouldEqual, "2176decaecbce78abc3b96ef049fabed")
}

func TestByteRIHS01(t *testing.T) {
	reg := registry.New()
	err := reg.Register(map[typesys.TypeName]typesys.TypeDescriptor{
		"std_msgs/msg/Byte": {
			Name: "std_msgs/msg/Byte",
			Fields: []typesys.Field{
				{Name: "data", Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.Octet}},
			},
		},
	})
	test.That(t, err, test.ShouldBeNil)

	digest, err := hashing.RIHS01(reg, "std_msgs/msg/Byte")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, digest, test.ShouldEqual, "RIHS01_41e1a3345f73fe93ede006da826a6ee274af23dd4653976ff249b0f44e3e798f")
}

func TestGenerateMsgDefRoundTrip(t *testing.T) {
	reg := registry.New()
	msgdefText, digest, err := hashing.GenerateMsgDef(reg, "std_msgs/msg/Header")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(msgdefText), test.ShouldBeGreaterThan, 0)
	test.That(t, digest, test.ShouldEqual, "2176decaecbce78abc3b96ef049fabed")
}
