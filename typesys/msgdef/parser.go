// Package msgdef implements the MSG definition grammar: ROS1/ROS2 ".msg"
// text, including the concatenated multi-type blobs rosbag1 stores as
// connection message definitions.
package msgdef

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/parse"
)

var (
	separatorRe = regexp.MustCompile(`(?m)^={80}[ \t]*\r?\n?`)
	headerRe    = regexp.MustCompile(`^MSG:\s*([A-Za-z_][A-Za-z0-9_/]*)\s*\n?`)
	identRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)
	scopedRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(/[A-Za-z_][A-Za-z0-9_]*)*`)
	intRe       = regexp.MustCompile(`^[-+]?(0[xX][0-9a-fA-F]+|0[0-7]+|[0-9]+)`)
	floatRe     = regexp.MustCompile(`^[-+]?[0-9]*\.[0-9]+([eE][-+]?[0-9]+)?|^[-+]?[0-9]*\.?[0-9]+[eE][-+]?[0-9]+`)
	boolRe      = regexp.MustCompile(`(?i)^(true|false)`)
)

var primitiveAliases = map[string]string{
	"time":     "builtin_interfaces/msg/Time",
	"duration": "builtin_interfaces/msg/Duration",
	"byte":     "octet",
	"char":     "uint8",
}

// Parse implements the DefinitionParser contract's parse_msg operation: it
// consumes one-or-more "=" * 80 separated blocks, the first belonging to
// name, and returns every type the blob defines.
func Parse(text string, name string) (map[typesys.TypeName]typesys.TypeDescriptor, error) {
	primary := typesys.Normalize(name)
	synthetic := "MSG: " + string(primary) + "\n" + text

	blocks := separatorRe.Split(synthetic, -1)

	bodies := map[string]string{}
	order := []string{}

	for i, block := range blocks {
		m := headerRe.FindStringSubmatchIndex(block)
		if m == nil {
			return nil, parse.NewError(text, 0, "block missing MSG: header")
		}
		typename := block[m[2]:m[3]]
		body := block[m[1]:]
		norm := string(typesys.Normalize(typename))
		if i == 0 {
			norm = string(primary)
		}
		bodies[norm] = body
		order = append(order, norm)
	}

	result := make(map[typesys.TypeName]typesys.TypeDescriptor, len(order))
	for _, n := range order {
		desc, err := parseBlock(typesys.TypeName(n), bodies[n], order)
		if err != nil {
			return nil, err
		}
		result[typesys.TypeName(n)] = desc
	}
	return result, nil
}

func parseBlock(name typesys.TypeName, body string, siblingNames []string) (typesys.TypeDescriptor, error) {
	desc := typesys.TypeDescriptor{Name: name}

	lines := strings.Split(body, "\n")
	for _, raw := range lines {
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s := parse.NewScanner(line, regexp.MustCompile(`^[ \t]+`))

		fd, isConstCandidate, constPrim, isStringConst, stringConstName, stringConstValue, err := parseTypeSpec(s, raw, name, siblingNames)
		if err != nil {
			return desc, err
		}

		if isStringConst {
			value := strings.TrimSpace(stringConstValue)
			if eq := strings.Index(raw, "="); eq >= 0 {
				value = strings.TrimSpace(raw[eq+1:])
			}
			desc.Constants = append(desc.Constants, typesys.ConstantDef{
				Name:      typesys.NormalizeFieldName(stringConstName),
				Primitive: typesys.String,
				Value:     value,
			})
			continue
		}

		ident, ok := s.Regexp(identRe)
		if !ok {
			return desc, parse.NewError(raw, s.Pos, "expected identifier")
		}

		if s.Literal("=") {
			if !isConstCandidate {
				return desc, parse.NewError(raw, s.Pos, "constants must have a primitive base type")
			}
			val, err := parseLiteralForPrimitive(s, constPrim, raw)
			if err != nil {
				return desc, err
			}
			desc.Constants = append(desc.Constants, typesys.ConstantDef{
				Name:      typesys.NormalizeFieldName(ident),
				Primitive: constPrim,
				Value:     val,
			})
			continue
		}

		// optional default value: consumed and discarded.
		if !s.Eof() {
			skipDefaultValue(s)
		}

		desc.Fields = append(desc.Fields, typesys.Field{
			Name:       typesys.NormalizeFieldName(ident),
			Descriptor: fd,
		})
	}

	return desc, nil
}

func stripComment(line string) string {
	inSingle, inDouble := false, false
	for i, r := range line {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble {
				return line[:i]
			}
		}
	}
	return line
}

// parseTypeSpec parses a type_spec (possibly followed by array/sequence
// suffix). It also detects the "string NAME = literal" const special case,
// which consumes the rest of the raw line verbatim per the MSG grammar.
func parseTypeSpec(
	s *parse.Scanner,
	rawLine string,
	owner typesys.TypeName,
	siblings []string,
) (fd typesys.FieldDescriptor, isConst bool, constPrim typesys.PrimitiveKind, isStringConst bool, stringConstName string, stringConstValue string, err error) {
	mark := s.Mark()

	if s.Literal("string") {
		if s.Literal("<=") {
			n, ok := s.Regexp(intRe)
			if !ok {
				return fd, false, 0, false, "", "", parse.NewError(rawLine, s.Pos, "expected bound after string<=")
			}
			bound, _ := strconv.Atoi(n)
			base := typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.String, Bound: bound}
			fd, err = applyArraySuffix(s, base, rawLine)
			return fd, false, 0, false, "", "", err
		}
		// Bare "string": if followed by "NAME =", it is a string constant
		// whose value is the untokenized remainder of the source line.
		if looksLikeStringConst(s) {
			ident, ok := s.Regexp(identRe)
			if ok {
				eqIdx := findTopLevelEquals(s.Text[s.Pos:])
				if eqIdx >= 0 {
					rest := s.Text[s.Pos+eqIdx+1:]
					return typesys.FieldDescriptor{}, false, 0, true, ident, rest, nil
				}
			}
			s.Reset(mark)
			s.Literal("string")
		}
		base := typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.String}
		fd, err = applyArraySuffix(s, base, rawLine)
		return fd, true, typesys.String, false, "", "", err
	}

	name, ok := s.Regexp(scopedRe)
	if !ok {
		return fd, false, 0, false, "", "", parse.NewError(rawLine, s.Pos, "expected type name")
	}

	resolved := resolveTypeName(name, owner, siblings)

	switch v := resolved.(type) {
	case typesys.PrimitiveKind:
		base := typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: v}
		fd, err = applyArraySuffix(s, base, rawLine)
		return fd, true, v, false, "", "", err
	case typesys.TypeName:
		base := typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: v}
		fd, err = applyArraySuffix(s, base, rawLine)
		return fd, false, 0, false, "", "", err
	default:
		return fd, false, 0, false, "", "", parse.NewError(rawLine, s.Pos, "unreachable")
	}
}

func looksLikeStringConst(s *parse.Scanner) bool {
	mark := s.Mark()
	defer s.Reset(mark)
	ident, ok := s.Regexp(identRe)
	if !ok || ident == "" {
		return false
	}
	return s.Literal("=")
}

func findTopLevelEquals(s string) int {
	return strings.Index(s, "=")
}

// resolveTypeName implements normalize_fieldtype from the original MSG
// visitor: primitive aliases first, then Header, then sibling-relative,
// then package-relative resolution.
func resolveTypeName(name string, owner typesys.TypeName, siblings []string) interface{} {
	if alias, ok := primitiveAliases[name]; ok {
		if prim, ok := typesys.PrimitiveFromName(alias); ok {
			return prim
		}
		return typesys.Normalize(alias)
	}
	if prim, ok := typesys.PrimitiveFromName(name); ok {
		return prim
	}
	if name == "Header" {
		return typesys.TypeName("std_msgs/msg/Header")
	}
	for _, sib := range siblings {
		if shortName(sib) == name {
			return typesys.TypeName(sib)
		}
	}
	if !strings.Contains(name, "/") {
		pkg := owner.Package()
		return typesys.TypeName(pkg + "/msg/" + name)
	}
	return typesys.Normalize(name)
}

func shortName(typeName string) string {
	parts := strings.Split(typeName, "/")
	return parts[len(parts)-1]
}

func applyArraySuffix(s *parse.Scanner, base typesys.FieldDescriptor, rawLine string) (typesys.FieldDescriptor, error) {
	if s.Literal("[<=") {
		n, ok := s.Regexp(intRe)
		if !ok {
			return base, parse.NewError(rawLine, s.Pos, "expected bound in [<=N]")
		}
		if !s.Literal("]") {
			return base, parse.NewError(rawLine, s.Pos, "expected ']'")
		}
		bound, _ := strconv.Atoi(n)
		b := base
		return typesys.FieldDescriptor{Kind: typesys.FieldSequence, Inner: &b, Count: bound}, nil
	}
	if s.Literal("[") {
		n, ok := s.Regexp(intRe)
		if !s.Literal("]") {
			return base, parse.NewError(rawLine, s.Pos, "expected ']'")
		}
		b := base
		if ok {
			count, _ := strconv.Atoi(n)
			return typesys.FieldDescriptor{Kind: typesys.FieldArray, Inner: &b, Count: count}, nil
		}
		return typesys.FieldDescriptor{Kind: typesys.FieldSequence, Inner: &b, Count: 0}, nil
	}
	return base, nil
}

func parseLiteralForPrimitive(s *parse.Scanner, prim typesys.PrimitiveKind, rawLine string) (interface{}, error) {
	switch prim {
	case typesys.Bool:
		if m, ok := s.Regexp(boolRe); ok {
			return strings.EqualFold(m, "true"), nil
		}
		if m, ok := s.Regexp(intRe); ok {
			return m == "1", nil
		}
		return nil, parse.NewError(rawLine, s.Pos, "expected boolean literal")
	case typesys.Float32, typesys.Float64:
		if m, ok := s.Regexp(floatRe); ok {
			v, err := strconv.ParseFloat(m, 64)
			return v, err
		}
		return nil, parse.NewError(rawLine, s.Pos, "expected float literal")
	default:
		if m, ok := s.Regexp(intRe); ok {
			v, err := parseIntLiteral(m)
			return v, err
		}
		return nil, parse.NewError(rawLine, s.Pos, "expected integer literal")
	}
}

func parseIntLiteral(m string) (int64, error) {
	neg := false
	if strings.HasPrefix(m, "+") {
		m = m[1:]
	} else if strings.HasPrefix(m, "-") {
		neg = true
		m = m[1:]
	}
	var v int64
	var err error
	switch {
	case strings.HasPrefix(m, "0x") || strings.HasPrefix(m, "0X"):
		v, err = strconv.ParseInt(m[2:], 16, 64)
	case len(m) > 1 && m[0] == '0':
		v, err = strconv.ParseInt(m, 8, 64)
	default:
		v, err = strconv.ParseInt(m, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}

func skipDefaultValue(s *parse.Scanner) {
	// Defaults are not retained on FieldDescriptor; consume to end of line.
	s.Pos = len(s.Text)
}
