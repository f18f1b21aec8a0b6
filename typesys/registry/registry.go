// Package registry implements the TypeRegistry: a process-addressable store
// of TypeDescriptors keyed by normalized type name, seeded with the
// primitive-adjacent builtin types every message graph depends on.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/rosbags-go/rosbags/typesys"
)

// ConflictError reports an attempt to register a type under a name that
// already holds a structurally different descriptor.
type ConflictError struct {
	Name typesys.TypeName
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("type %q is already registered with a different definition", e.Name)
}

// UnknownTypeError reports a lookup for a name the registry has never seen.
type UnknownTypeError struct {
	Name typesys.TypeName
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("type %q is not registered", e.Name)
}

// Registry is the TypeRegistry: safe for concurrent use, since codec
// construction and MCAP scanning may both resolve references concurrently.
type Registry struct {
	mu    sync.RWMutex
	types map[typesys.TypeName]typesys.TypeDescriptor
}

// New builds a Registry seeded with std_msgs/msg/Header and the
// builtin_interfaces time types every ROS graph assumes exist.
func New() *Registry {
	r := &Registry{types: map[typesys.TypeName]typesys.TypeDescriptor{}}
	for name, desc := range seedTypes() {
		r.types[name] = desc
	}
	return r
}

// Register adds every entry of defs that is not already present. An entry
// that duplicates an existing, structurally-equal descriptor (field names
// compared case-insensitively, per legacy accommodation) is a silent no-op.
// std_msgs/msg/Header is always accepted, overwriting the seed. Any other
// structural mismatch fails the whole batch with ConflictError.
func (r *Registry) Register(defs map[typesys.TypeName]typesys.TypeDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, desc := range defs {
		if name == "std_msgs/msg/Header" {
			continue
		}
		if existing, ok := r.types[name]; ok && !existing.Equal(desc) {
			return errors.WithStack(&ConflictError{Name: name})
		}
	}
	for name, desc := range defs {
		if _, ok := r.types[name]; !ok || name == "std_msgs/msg/Header" {
			r.types[name] = desc
		}
	}
	return nil
}

// Get resolves a registered type by name.
func (r *Registry) Get(name typesys.TypeName) (typesys.TypeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.types[name]
	if !ok {
		return typesys.TypeDescriptor{}, errors.WithStack(&UnknownTypeError{Name: name})
	}
	return desc, nil
}

// Has reports whether name is registered, without error allocation.
func (r *Registry) Has(name typesys.TypeName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Names returns every registered type name, sorted, for deterministic
// iteration.
func (r *Registry) Names() []typesys.TypeName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]typesys.TypeName, 0, len(r.types))
	for n := range r.types {
		out = append(out, n)
	}
	sortTypeNames(out)
	return out
}

func sortTypeNames(names []typesys.TypeName) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && strings.Compare(string(names[j-1]), string(names[j])) > 0; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}

func seedTypes() map[typesys.TypeName]typesys.TypeDescriptor {
	str := func(k typesys.PrimitiveKind) typesys.FieldDescriptor {
		return typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: k}
	}
	return map[typesys.TypeName]typesys.TypeDescriptor{
		"builtin_interfaces/msg/Time": {
			Name: "builtin_interfaces/msg/Time",
			Fields: []typesys.Field{
				{Name: "sec", Descriptor: str(typesys.Int32)},
				{Name: "nanosec", Descriptor: str(typesys.Uint32)},
			},
		},
		"builtin_interfaces/msg/Duration": {
			Name: "builtin_interfaces/msg/Duration",
			Fields: []typesys.Field{
				{Name: "sec", Descriptor: str(typesys.Int32)},
				{Name: "nanosec", Descriptor: str(typesys.Uint32)},
			},
		},
		"std_msgs/msg/Header": {
			Name: "std_msgs/msg/Header",
			Fields: []typesys.Field{
				{Name: "stamp", Descriptor: typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: "builtin_interfaces/msg/Time"}},
				{Name: "frame_id", Descriptor: str(typesys.String)},
			},
		},
	}
}
