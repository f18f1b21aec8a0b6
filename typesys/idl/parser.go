// Package idl implements the IDL definition grammar: a C-like interface
// description language with modules, structs, typedefs, consts and
// annotations, as used by ROS2 ".idl" message definitions.
package idl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/parse"
)

var skipRe = regexp.MustCompile(`^(?:[ \t\r\n]+|//[^\n]*|/\*(?:[^*]|\*[^/])*\*/)+`)

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)
	numRe   = regexp.MustCompile(`^(0[xX][0-9a-fA-F]+|[0-9]*\.[0-9]+([eE][-+]?[0-9]+)?|[0-9]+\.[0-9]*|[0-9]+)`)
	strLit  = regexp.MustCompile(`^"(?:[^"\\]|\\.)*"`)
)

var primitiveNames = map[string]typesys.PrimitiveKind{
	"boolean": typesys.Bool,
	"octet":   typesys.Octet,
	"int8":    typesys.Int8,
	"uint8":   typesys.Uint8,
	"int16":   typesys.Int16,
	"uint16":  typesys.Uint16,
	"int32":   typesys.Int32,
	"uint32":  typesys.Uint32,
	"int64":   typesys.Int64,
	"uint64":  typesys.Uint64,
	"float":   typesys.Float32,
	"double":  typesys.Float64,
	"char":    typesys.Uint8,
	"byte":    typesys.Octet,
}

// typedefEntry records an expanded typedef: the underlying field descriptor
// it stands for, keyed by the scope-qualified name it was declared under.
type typedefEntry struct {
	fd typesys.FieldDescriptor
}

type parserState struct {
	s        *parse.Scanner
	text     string
	types    map[typesys.TypeName]typesys.TypeDescriptor
	typedefs map[string]typedefEntry
	consts   map[string]interface{}
}

// Parse implements the DefinitionParser contract's IDL half: it consumes a
// full ".idl" unit (one or more possibly-nested modules) and returns every
// struct type it declares, keyed by its flattened "a/b/c" registry name.
func Parse(text string) (map[typesys.TypeName]typesys.TypeDescriptor, error) {
	p := &parserState{
		s:        parse.NewScanner(text, skipRe),
		text:     text,
		types:    map[typesys.TypeName]typesys.TypeDescriptor{},
		typedefs: map[string]typedefEntry{},
		consts:   map[string]interface{}{},
	}
	if err := p.parseUnit(nil); err != nil {
		return nil, err
	}
	return p.types, nil
}

func (p *parserState) parseUnit(scope []string) error {
	for !p.s.Eof() {
		if err := p.parseDeclaration(scope); err != nil {
			return err
		}
	}
	return nil
}

// parseDeclaration consumes exactly one top-level or module-body
// declaration: a module, struct, typedef, const, or a dangling annotation.
func (p *parserState) parseDeclaration(scope []string) error {
	p.skipAnnotations()

	switch {
	case p.s.Literal("module"):
		return p.parseModule(scope)
	case p.s.Literal("struct"):
		return p.parseStruct(scope)
	case p.s.Literal("typedef"):
		return p.parseTypedef(scope)
	case p.s.Literal("const"):
		return p.parseConst(scope)
	default:
		return parse.NewError(p.text, p.s.Pos, "expected module, struct, typedef or const")
	}
}

// skipAnnotations consumes zero or more "@Name(...)" or "@Name" annotations;
// per spec they carry no semantics and are discarded.
func (p *parserState) skipAnnotations() {
	for p.s.Literal("@") {
		p.s.Regexp(identRe)
		if p.s.Literal("(") {
			depth := 1
			for depth > 0 && !p.s.Eof() {
				if p.s.Literal("(") {
					depth++
					continue
				}
				if p.s.Literal(")") {
					depth--
					continue
				}
				p.s.Pos++
				p.s.SkipWS()
			}
		}
	}
}

func (p *parserState) parseModule(scope []string) error {
	name, ok := p.s.Regexp(identRe)
	if !ok {
		return parse.NewError(p.text, p.s.Pos, "expected module name")
	}
	if !p.s.Literal("{") {
		return parse.NewError(p.text, p.s.Pos, "expected '{' after module name")
	}
	inner := append(append([]string{}, scope...), name)
	for {
		p.skipAnnotations()
		if p.s.Literal("}") {
			break
		}
		if p.s.Eof() {
			return parse.NewError(p.text, p.s.Pos, "unterminated module")
		}
		if err := p.parseDeclaration(inner); err != nil {
			return err
		}
	}
	p.s.Literal(";")
	return nil
}

func (p *parserState) parseStruct(scope []string) error {
	name, ok := p.s.Regexp(identRe)
	if !ok {
		return parse.NewError(p.text, p.s.Pos, "expected struct name")
	}
	if !p.s.Literal("{") {
		return parse.NewError(p.text, p.s.Pos, "expected '{' after struct name")
	}

	fullName := typesys.TypeName(strings.Join(append(append([]string{}, scope...), name), "/"))
	fullName = typesys.Normalize(string(fullName))

	desc := typesys.TypeDescriptor{Name: fullName}
	for {
		p.skipAnnotations()
		if p.s.Literal("}") {
			break
		}
		if p.s.Eof() {
			return parse.NewError(p.text, p.s.Pos, "unterminated struct")
		}
		fd, fieldName, err := p.parseMember(scope)
		if err != nil {
			return err
		}
		if !p.s.Literal(";") {
			return parse.NewError(p.text, p.s.Pos, "expected ';' after member")
		}
		desc.Fields = append(desc.Fields, typesys.Field{
			Name:       typesys.NormalizeFieldName(fieldName),
			Descriptor: fd,
		})
	}
	p.s.Literal(";")

	p.types[fullName] = desc
	return nil
}

// parseMember parses one "TYPE name[ARRAYSUFFIX]" struct member.
func (p *parserState) parseMember(scope []string) (typesys.FieldDescriptor, string, error) {
	base, err := p.parseTypeSpec(scope)
	if err != nil {
		return base, "", err
	}
	name, ok := p.s.Regexp(identRe)
	if !ok {
		return base, "", parse.NewError(p.text, p.s.Pos, "expected member name")
	}
	fd, err := p.parseArraySuffix(base)
	return fd, name, err
}

// parseTypeSpec parses a bare type reference: primitive, bounded/unbounded
// string, sequence<T[, bound]>, or a scoped type name (possibly a typedef).
func (p *parserState) parseTypeSpec(scope []string) (typesys.FieldDescriptor, error) {
	if p.s.Literal("sequence") {
		if !p.s.Literal("<") {
			return typesys.FieldDescriptor{}, parse.NewError(p.text, p.s.Pos, "expected '<' after sequence")
		}
		inner, err := p.parseTypeSpec(scope)
		if err != nil {
			return typesys.FieldDescriptor{}, err
		}
		inner, err = p.parseArraySuffixNone(inner)
		if err != nil {
			return typesys.FieldDescriptor{}, err
		}
		bound := 0
		if p.s.Literal(",") {
			n, ok := p.s.Regexp(numRe)
			if !ok {
				return typesys.FieldDescriptor{}, parse.NewError(p.text, p.s.Pos, "expected sequence bound")
			}
			bound, _ = strconv.Atoi(n)
		}
		if !p.s.Literal(">") {
			return typesys.FieldDescriptor{}, parse.NewError(p.text, p.s.Pos, "expected '>' closing sequence")
		}
		return typesys.FieldDescriptor{Kind: typesys.FieldSequence, Inner: &inner, Count: bound}, nil
	}

	if p.s.Literal("string") {
		if p.s.Literal("<") {
			n, ok := p.s.Regexp(numRe)
			if !ok {
				return typesys.FieldDescriptor{}, parse.NewError(p.text, p.s.Pos, "expected string bound")
			}
			bound, _ := strconv.Atoi(n)
			if !p.s.Literal(">") {
				return typesys.FieldDescriptor{}, parse.NewError(p.text, p.s.Pos, "expected '>' closing string bound")
			}
			return typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.String, Bound: bound}, nil
		}
		return typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.String}, nil
	}

	name, ok := p.s.Regexp(identRe)
	if !ok {
		return typesys.FieldDescriptor{}, parse.NewError(p.text, p.s.Pos, "expected type name")
	}
	// "::" scoped qualifiers: flatten to "/" as with unqualified module paths.
	for p.s.Literal("::") {
		next, ok := p.s.Regexp(identRe)
		if !ok {
			return typesys.FieldDescriptor{}, parse.NewError(p.text, p.s.Pos, "expected identifier after '::'")
		}
		name = name + "/" + next
	}

	if prim, ok := primitiveNames[name]; ok {
		return typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: prim}, nil
	}
	if name == "boolean" {
		return typesys.FieldDescriptor{Kind: typesys.FieldBase, Primitive: typesys.Bool}, nil
	}

	if td, ok := p.typedefs[resolveKey(scope, name)]; ok {
		return td.fd, nil
	}
	if td, ok := p.typedefs[name]; ok {
		return td.fd, nil
	}

	ref := resolveTypeRef(name, scope)
	return typesys.FieldDescriptor{Kind: typesys.FieldName, Ref: ref}, nil
}

// parseArraySuffix consumes zero or more "[N]" fixed-array suffixes,
// innermost-last (IDL arrays read left-to-right as outermost-first).
func (p *parserState) parseArraySuffix(base typesys.FieldDescriptor) (typesys.FieldDescriptor, error) {
	var dims []int
	for p.s.Literal("[") {
		n, ok := p.s.Regexp(numRe)
		if !ok {
			return base, parse.NewError(p.text, p.s.Pos, "expected array dimension")
		}
		if !p.s.Literal("]") {
			return base, parse.NewError(p.text, p.s.Pos, "expected ']'")
		}
		count, _ := strconv.Atoi(n)
		dims = append(dims, count)
	}
	fd := base
	for i := len(dims) - 1; i >= 0; i-- {
		b := fd
		fd = typesys.FieldDescriptor{Kind: typesys.FieldArray, Inner: &b, Count: dims[i]}
	}
	return fd, nil
}

func (p *parserState) parseArraySuffixNone(base typesys.FieldDescriptor) (typesys.FieldDescriptor, error) {
	return base, nil
}

func (p *parserState) parseTypedef(scope []string) error {
	base, err := p.parseTypeSpec(scope)
	if err != nil {
		return err
	}
	name, ok := p.s.Regexp(identRe)
	if !ok {
		return parse.NewError(p.text, p.s.Pos, "expected typedef name")
	}
	fd, err := p.parseArraySuffix(base)
	if err != nil {
		return err
	}
	if !p.s.Literal(";") {
		return parse.NewError(p.text, p.s.Pos, "expected ';' after typedef")
	}
	p.typedefs[resolveKey(scope, name)] = typedefEntry{fd: fd}
	return nil
}

// parseConst parses "const TYPE NAME = expr;", storing the reduced literal
// value for use as an operand in later constant expressions.
func (p *parserState) parseConst(scope []string) error {
	prim, err := p.parseConstType()
	if err != nil {
		return err
	}
	name, ok := p.s.Regexp(identRe)
	if !ok {
		return parse.NewError(p.text, p.s.Pos, "expected const name")
	}
	if !p.s.Literal("=") {
		return parse.NewError(p.text, p.s.Pos, "expected '=' in const")
	}
	val, err := p.parseExpr()
	if err != nil {
		return err
	}
	if !p.s.Literal(";") {
		return parse.NewError(p.text, p.s.Pos, "expected ';' after const")
	}
	_ = prim
	p.consts[resolveKey(scope, name)] = val
	p.consts[name] = val
	return nil
}

func (p *parserState) parseConstType() (typesys.PrimitiveKind, error) {
	if p.s.Literal("string") {
		if p.s.Literal("<") {
			p.s.Regexp(numRe)
			p.s.Literal(">")
		}
		return typesys.String, nil
	}
	name, ok := p.s.Regexp(identRe)
	if !ok {
		return 0, parse.NewError(p.text, p.s.Pos, "expected const type")
	}
	if prim, ok := primitiveNames[name]; ok {
		return prim, nil
	}
	if name == "boolean" {
		return typesys.Bool, nil
	}
	return 0, parse.NewError(p.text, p.s.Pos, fmt.Sprintf("unknown const type %q", name))
}

// parseExpr reduces an IDL constant expression (unary/binary arithmetic and
// bitwise operators over numeric literals and prior const references, plus
// bare string/bool literals) to a single Go value.
func (p *parserState) parseExpr() (interface{}, error) {
	return p.parseBinary(0)
}

var precedence = map[string]int{
	"|": 1, "^": 2, "&": 3,
	"<<": 4, ">>": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func (p *parserState) parseBinary(minPrec int) (interface{}, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, prec, ok := p.peekBinaryOp()
		if !ok || prec < minPrec {
			return lhs, nil
		}
		p.consumeOp(op)
		rhs, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		lhs, err = applyBinaryOp(op, lhs, rhs)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parserState) peekBinaryOp() (string, int, bool) {
	for _, op := range []string{"<<", ">>", "+", "-", "*", "/", "%", "|", "^", "&"} {
		if strings.HasPrefix(p.s.Text[p.s.Pos:], op) {
			return op, precedence[op], true
		}
	}
	return "", 0, false
}

func (p *parserState) consumeOp(op string) { p.s.Literal(op) }

func (p *parserState) parseUnary() (interface{}, error) {
	if p.s.Literal("-") {
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate(v)
	}
	if p.s.Literal("+") {
		return p.parseUnary()
	}
	if p.s.Literal("~") {
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		i, ok := v.(int64)
		if !ok {
			return nil, parse.NewError(p.text, p.s.Pos, "'~' requires an integer operand")
		}
		return ^i, nil
	}
	return p.parsePrimaryExpr()
}

func (p *parserState) parsePrimaryExpr() (interface{}, error) {
	if p.s.Literal("(") {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.s.Literal(")") {
			return nil, parse.NewError(p.text, p.s.Pos, "expected ')'")
		}
		return v, nil
	}
	if p.s.Literal("TRUE") || p.s.Literal("true") {
		return true, nil
	}
	if p.s.Literal("FALSE") || p.s.Literal("false") {
		return false, nil
	}
	if lit, ok := p.s.Regexp(strLit); ok {
		return unquote(lit), nil
	}
	if n, ok := p.s.Regexp(numRe); ok {
		return parseNumber(n)
	}
	if id, ok := p.s.Regexp(identRe); ok {
		if v, ok := p.consts[id]; ok {
			return v, nil
		}
		return nil, parse.NewError(p.text, p.s.Pos, fmt.Sprintf("unknown constant reference %q", id))
	}
	return nil, parse.NewError(p.text, p.s.Pos, "expected expression")
}

func unquote(lit string) string {
	inner := lit[1 : len(lit)-1]
	return strings.ReplaceAll(strings.ReplaceAll(inner, `\"`, `"`), `\\`, `\`)
}

func parseNumber(n string) (interface{}, error) {
	if strings.HasPrefix(n, "0x") || strings.HasPrefix(n, "0X") {
		v, err := strconv.ParseInt(n[2:], 16, 64)
		return v, err
	}
	if strings.ContainsAny(n, ".eE") {
		return strconv.ParseFloat(n, 64)
	}
	v, err := strconv.ParseInt(n, 10, 64)
	return v, err
}

func negate(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case int64:
		return -x, nil
	case float64:
		return -x, nil
	default:
		return nil, fmt.Errorf("cannot negate %T", v)
	}
}

func applyBinaryOp(op string, a, b interface{}) (interface{}, error) {
	af, aIsFloat := a.(float64)
	bf, bIsFloat := b.(float64)
	if aIsFloat || bIsFloat {
		if !aIsFloat {
			af = float64(a.(int64))
		}
		if !bIsFloat {
			bf = float64(b.(int64))
		}
		switch op {
		case "+":
			return af + bf, nil
		case "-":
			return af - bf, nil
		case "*":
			return af * bf, nil
		case "/":
			return af / bf, nil
		default:
			return nil, fmt.Errorf("operator %q not defined for floating literals", op)
		}
	}
	ai, bi := a.(int64), b.(int64)
	switch op {
	case "+":
		return ai + bi, nil
	case "-":
		return ai - bi, nil
	case "*":
		return ai * bi, nil
	case "/":
		return ai / bi, nil
	case "%":
		return ai % bi, nil
	case "<<":
		return ai << uint(bi), nil
	case ">>":
		return ai >> uint(bi), nil
	case "|":
		return ai | bi, nil
	case "&":
		return ai & bi, nil
	case "^":
		return ai ^ bi, nil
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func resolveKey(scope []string, name string) string {
	return strings.Join(append(append([]string{}, scope...), name), "/")
}

// resolveTypeRef normalizes a struct member's type reference the way the MSG
// parser resolves bare names: Header shortcut, then package-relative.
func resolveTypeRef(name string, scope []string) typesys.TypeName {
	if name == "Header" {
		return "std_msgs/msg/Header"
	}
	if strings.Contains(name, "/") {
		return typesys.Normalize(name)
	}
	if len(scope) > 0 {
		return typesys.Normalize(scope[0] + "/" + name)
	}
	return typesys.Normalize(name)
}
