package hashing

import (
	"fmt"
	"strings"

	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

// subdef holds one referenced type's rendered MSG text and its own digest,
// accumulated while walking the root type's field graph.
type subdef struct {
	text   string
	digest string
}

// GenerateMsgDef renders a connection's concatenated ROS1 ".msg" text (the
// root type followed by "="*80-separated blocks for every referenced type)
// together with the MD5 digest that goes with it, the form a rosbag1 writer
// stores in a connection header.
func GenerateMsgDef(reg *registry.Registry, name typesys.TypeName) (string, string, error) {
	subdefs := map[typesys.TypeName]*subdef{}
	order := []typesys.TypeName{}

	text, digest, err := genDefHash(reg, name, subdefs, &order)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	b.WriteString(text)
	for _, n := range order {
		fmt.Fprintf(&b, "%s\nMSG: %s\n%s", strings.Repeat("=", 80), denormalizeMsgType(n), subdefs[n].text)
	}
	return b.String(), digest, nil
}

func genDefHash(reg *registry.Registry, name typesys.TypeName, subdefs map[typesys.TypeName]*subdef, order *[]typesys.TypeName) (string, string, error) {
	desc, err := reg.Get(name)
	if err != nil {
		return "", "", err
	}

	var deftext, hashtext []string

	for _, c := range desc.Constants {
		line := fmt.Sprintf("%s %s=%v", c.Primitive, strings.TrimSuffix(c.Name, "_"), c.Value)
		deftext = append(deftext, line)
		hashtext = append(hashtext, line)
	}

	for _, f := range desc.Fields {
		if f.Name == "structure_needs_at_least_one_member" {
			continue
		}
		fname := strings.TrimSuffix(f.Name, "_")
		dline, hline, err := genDefFieldLine(reg, fname, f.Descriptor, subdefs, order)
		if err != nil {
			return "", "", err
		}
		deftext = append(deftext, dline)
		hashtext = append(hashtext, hline)
	}

	if name == "std_msgs/msg/Header" {
		deftext = append([]string{"uint32 seq"}, deftext...)
		hashtext = append([]string{"uint32 seq"}, hashtext...)
	}

	text := strings.Join(deftext, "\n") + "\n"
	digest := hexMD5(strings.Join(hashtext, "\n"))
	return text, digest, nil
}

func genDefFieldLine(reg *registry.Registry, fname string, fd typesys.FieldDescriptor, subdefs map[typesys.TypeName]*subdef, order *[]typesys.TypeName) (string, string, error) {
	switch fd.Kind {
	case typesys.FieldBase:
		t := md5BaseTypeName(fd)
		return fmt.Sprintf("%s %s", t, fname), fmt.Sprintf("%s %s", t, fname), nil

	case typesys.FieldName:
		if alias, ok := timeAliases[fd.Ref]; ok {
			return fmt.Sprintf("%s %s", alias, fname), fmt.Sprintf("%s %s", alias, fname), nil
		}
		sd, err := ensureSubdef(reg, fd.Ref, subdefs, order)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%s %s", denormalizeMsgType(fd.Ref), fname), fmt.Sprintf("%s %s", sd.digest, fname), nil

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
			t := md5BaseTypeName(*inner)
			line := fmt.Sprintf("%s[%s] %s", t, count, fname)
			return line, line, nil
		case typesys.FieldName:
			if alias, ok := timeAliases[inner.Ref]; ok {
				line := fmt.Sprintf("%s[%s] %s", alias, count, fname)
				return line, line, nil
			}
			sd, err := ensureSubdef(reg, inner.Ref, subdefs, order)
			if err != nil {
				return "", "", err
			}
			return fmt.Sprintf("%s[%s] %s", denormalizeMsgType(inner.Ref), count, fname), fmt.Sprintf("%s %s", sd.digest, fname), nil
		default:
			return "", "", fmt.Errorf("gendef: array/sequence of array/sequence is not representable in MSG text")
		}

	default:
		return "", "", fmt.Errorf("gendef: unhandled field kind %v", fd.Kind)
	}
}

func ensureSubdef(reg *registry.Registry, name typesys.TypeName, subdefs map[typesys.TypeName]*subdef, order *[]typesys.TypeName) (*subdef, error) {
	if sd, ok := subdefs[name]; ok {
		return sd, nil
	}
	placeholder := &subdef{}
	subdefs[name] = placeholder
	*order = append(*order, name)

	text, digest, err := genDefHash(reg, name, subdefs, order)
	if err != nil {
		return nil, err
	}
	placeholder.text = text
	placeholder.digest = digest
	return placeholder, nil
}

// denormalizeMsgType undoes the "package/msg/Type" normalization for ROS1
// MSG text output: "package/msg/Type" -> "package/Type".
func denormalizeMsgType(name typesys.TypeName) string {
	s := string(name)
	idx := strings.Index(s, "/msg/")
	if idx < 0 {
		return s
	}
	return s[:idx] + "/" + s[idx+len("/msg/"):]
}
