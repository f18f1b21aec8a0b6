package codec

import (
	"sync"

	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

// Procedures bundles the byte-level and value-level conversions materialized
// for one registered type. All fields are safe for concurrent use once
// obtained from a Factory.
type Procedures struct {
	Type typesys.TypeDescriptor

	ROS1ToCDR func(ros1 []byte, ipos int, cdr []byte, opos int, copy bool) (int, int, error)
	CDRToROS1 func(cdr []byte, ipos int, ros1 []byte, opos int, copy bool) (int, int, error)

	SerializeCDR   func(Value) ([]byte, error)
	DeserializeCDR func([]byte) (Value, error)

	SerializeROS1   func(Value) ([]byte, error)
	DeserializeROS1 func([]byte) (Value, error)
}

// Factory lazily builds and caches Procedures per type name against a
// shared Registry. A Procedures value, once materialized, never changes:
// re-registering a type under the same name that produces an identical
// descriptor does not invalidate the cache entry.
type Factory struct {
	reg *registry.Registry

	mu    sync.Mutex
	cache map[typesys.TypeName]*Procedures
}

// NewFactory builds a Factory bound to reg.
func NewFactory(reg *registry.Registry) *Factory {
	return &Factory{reg: reg, cache: map[typesys.TypeName]*Procedures{}}
}

// Procedures returns the cached Procedures for name, materializing it on
// first use.
func (f *Factory) Procedures(name typesys.TypeName) (*Procedures, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.cache[name]; ok {
		return p, nil
	}

	desc, err := f.reg.Get(name)
	if err != nil {
		return nil, err
	}

	reg := f.reg
	p := &Procedures{
		Type: desc,
		ROS1ToCDR: func(ros1 []byte, ipos int, cdr []byte, opos int, copy bool) (int, int, error) {
			return ROS1ToCDR(reg, desc, ros1, ipos, cdr, opos, copy)
		},
		CDRToROS1: func(cdr []byte, ipos int, ros1 []byte, opos int, copy bool) (int, int, error) {
			return CDRToROS1(reg, desc, cdr, ipos, ros1, opos, copy)
		},
		SerializeCDR: func(v Value) ([]byte, error) {
			return SerializeCDR(reg, desc, v)
		},
		DeserializeCDR: func(b []byte) (Value, error) {
			return DeserializeCDR(reg, desc, b)
		},
		SerializeROS1: func(v Value) ([]byte, error) {
			return SerializeROS1(reg, desc, v)
		},
		DeserializeROS1: func(b []byte) (Value, error) {
			return DeserializeROS1(reg, desc, b)
		},
	}
	f.cache[name] = p
	return p, nil
}
