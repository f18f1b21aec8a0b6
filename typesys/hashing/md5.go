// Package hashing computes the two stable message-type digests that name a
// connection's wire layout: ROS1's MD5 sum over a canonical text form, and
// ROS2's RIHS01 SHA-256 sum over a canonical JSON document.
package hashing

import (
	"crypto/md5" //nolint:gosec // ROS1 connection digests are MD5 by protocol definition, not for security.
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

var timeAliases = map[typesys.TypeName]string{
	"builtin_interfaces/msg/Time":     "time",
	"builtin_interfaces/msg/Duration": "duration",
}

// MD5 computes the ROS1 connection digest for a registered type: the MD5 sum
// of its canonical textual field listing, recursing through referenced
// types and substituting their own sub-digests.
func MD5(reg *registry.Registry, name typesys.TypeName) (string, error) {
	text, err := md5Text(reg, name, map[typesys.TypeName]string{})
	if err != nil {
		return "", err
	}
	return hexMD5(text), nil
}

func hexMD5(text string) string {
	sum := md5.Sum([]byte(text)) //nolint:gosec
	return fmt.Sprintf("%x", sum)
}

func md5Text(reg *registry.Registry, name typesys.TypeName, cache map[typesys.TypeName]string) (string, error) {
	desc, err := reg.Get(name)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, c := range desc.Constants {
		lines = append(lines, fmt.Sprintf("%s %s=%v", c.Primitive, c.Name, c.Value))
	}

	for _, f := range desc.Fields {
		if f.Name == "structure_needs_at_least_one_member" {
			continue
		}
		line, err := md5FieldLine(reg, f.Name, f.Descriptor, cache)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}

	if name == "std_msgs/msg/Header" {
		lines = append([]string{"uint32 seq"}, lines...)
	}

	return strings.Join(lines, "\n"), nil
}

func md5FieldLine(reg *registry.Registry, fieldName string, fd typesys.FieldDescriptor, cache map[typesys.TypeName]string) (string, error) {
	switch fd.Kind {
	case typesys.FieldBase:
		return fmt.Sprintf("%s %s", md5BaseTypeName(fd), fieldName), nil
	case typesys.FieldName:
		sub, err := md5SubDigest(reg, fd.Ref, cache)
		if err != nil {
			return "", err
		}
		if alias, ok := timeAliases[fd.Ref]; ok {
			return fmt.Sprintf("%s %s", alias, fieldName), nil
		}
		return fmt.Sprintf("%s %s", sub, fieldName), nil
	case typesys.FieldArray, typesys.FieldSequence:
		count := ""
		if fd.Count != 0 {
			if fd.Kind == typesys.FieldArray {
				count = fmt.Sprintf("%d", fd.Count)
			} else {
				count = fmt.Sprintf("<=%d", fd.Count)
			}
		}
		inner := fd.Inner
		switch inner.Kind {
		case typesys.FieldBase:
			return fmt.Sprintf("%s[%s] %s", md5BaseTypeName(*inner), count, fieldName), nil
		case typesys.FieldName:
			if alias, ok := timeAliases[inner.Ref]; ok {
				return fmt.Sprintf("%s[%s] %s", alias, count, fieldName), nil
			}
			sub, err := md5SubDigest(reg, inner.Ref, cache)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s %s", sub, fieldName), nil
		default:
			return "", errors.Errorf("md5: array/sequence of array/sequence is not representable in MSG text")
		}
	default:
		return "", errors.Errorf("md5: unhandled field kind %v", fd.Kind)
	}
}

func md5BaseTypeName(fd typesys.FieldDescriptor) string {
	if fd.Primitive == typesys.Octet {
		return "byte"
	}
	if fd.Primitive == typesys.String {
		if fd.Bound > 0 {
			return fmt.Sprintf("string<=%d", fd.Bound)
		}
		return "string"
	}
	return fd.Primitive.String()
}

func md5SubDigest(reg *registry.Registry, name typesys.TypeName, cache map[typesys.TypeName]string) (string, error) {
	if d, ok := cache[name]; ok {
		return d, nil
	}
	text, err := md5Text(reg, name, cache)
	if err != nil {
		return "", err
	}
	d := hexMD5(text)
	cache[name] = d
	return d, nil
}
