package step

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the type of a parameter value
type Kind int

const (
	// KindUnset is the "$" placeholder
	KindUnset Kind = iota
	// KindDerived is the "*" placeholder of a derived attribute
	KindDerived
	KindRef
	KindString
	KindNumber
	KindEnum
	KindBinary
	KindList
	// KindTyped is an inline typed value such as LENGTH_MEASURE(2.5)
	KindTyped
)

var kindNames = [...]string{"unset", "derived", "reference", "string", "number", "enumeration", "binary", "list", "typed value"}

// String returns the kind name used in error messages
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is one parameter of an entity record
type Value struct {
	Kind Kind
	Ref  int
	Num  float64
	// Str holds string contents, enumeration names without dots, binary
	// digits and the type name of a typed value
	Str  string
	List []Value
}

// IsSet reports whether the value carries data
func (v Value) IsSet() bool {
	return v.Kind != KindUnset && v.Kind != KindDerived
}

// Bool interprets a .T./.F. enumeration
func (v Value) Bool() (bool, bool) {
	if v.Kind != KindEnum {
		return false, false
	}
	switch v.Str {
	case "T":
		return true, true
	case "F":
		return false, true
	}
	return false, false
}

// String renders the value in exchange file syntax
func (v Value) String() string {
	switch v.Kind {
	case KindUnset:
		return "$"
	case KindDerived:
		return "*"
	case KindRef:
		return "#" + strconv.Itoa(v.Ref)
	case KindString:
		return "'" + strings.ReplaceAll(v.Str, "'", "''") + "'"
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindEnum:
		return "." + v.Str + "."
	case KindBinary:
		return `"` + v.Str + `"`
	case KindList, KindTyped:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		list := "(" + strings.Join(parts, ",") + ")"
		if v.Kind == KindTyped {
			return v.Str + list
		}
		return list
	}
	return "?"
}

// syntaxError describes a malformed parameter list
type syntaxError struct {
	pos      int
	expected string
	found    string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("at column %d: expected %s, found %q", e.pos+1, e.expected, e.found)
}

// maxListDepth bounds how deeply parameter lists may nest
const maxListDepth = 256

// paramParser is a recursive descent parser over one parameter list
type paramParser struct {
	s     string
	pos   int
	depth int
}

// parseList parses a parenthesized, comma separated parameter list
func parseList(s string) ([]Value, error) {
	p := &paramParser{s: s}
	list, err := p.list()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, p.errorf("end of parameters")
	}
	return list, nil
}

func (p *paramParser) errorf(expected string) error {
	found := "end of input"
	if p.pos < len(p.s) {
		end := min(p.pos+12, len(p.s))
		found = p.s[p.pos:end]
	}
	return &syntaxError{pos: p.pos, expected: expected, found: found}
}

func (p *paramParser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *paramParser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *paramParser) list() ([]Value, error) {
	p.skipSpace()
	if p.peek() != '(' {
		return nil, p.errorf("'('")
	}
	if p.depth == maxListDepth {
		return nil, p.errorf(fmt.Sprintf("at most %d nested lists", maxListDepth))
	}
	p.depth++
	defer func() { p.depth-- }()
	p.pos++
	var out []Value

	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return out, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("',' or ')'")
		}
	}
}

func (p *paramParser) value() (Value, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '$':
		p.pos++
		return Value{Kind: KindUnset}, nil
	case c == '*':
		p.pos++
		return Value{Kind: KindDerived}, nil
	case c == '#':
		p.pos++
		start := p.pos
		for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
			p.pos++
		}
		id, err := strconv.Atoi(p.s[start:p.pos])
		if err != nil {
			p.pos = start
			return Value{}, p.errorf("entity id")
		}
		return Value{Kind: KindRef, Ref: id}, nil
	case c == '\'':
		return p.quoted()
	case c == '"':
		p.pos++
		start := p.pos
		for p.pos < len(p.s) && p.s[p.pos] != '"' {
			p.pos++
		}
		if p.pos >= len(p.s) {
			return Value{}, p.errorf("closing '\"'")
		}
		v := Value{Kind: KindBinary, Str: p.s[start:p.pos]}
		p.pos++
		return v, nil
	case c == '(':
		list, err := p.list()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindList, List: list}, nil
	case c == '.':
		p.pos++
		start := p.pos
		for p.pos < len(p.s) && isIdent(p.s[p.pos]) {
			p.pos++
		}
		if p.peek() != '.' || p.pos == start {
			return Value{}, p.errorf("enumeration")
		}
		v := Value{Kind: KindEnum, Str: p.s[start:p.pos]}
		p.pos++
		return v, nil
	case isDigit(c) || c == '-' || c == '+':
		return p.number()
	case isLetter(c):
		start := p.pos
		for p.pos < len(p.s) && isIdent(p.s[p.pos]) {
			p.pos++
		}
		name := p.s[start:p.pos]
		list, err := p.list()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindTyped, Str: name, List: list}, nil
	}
	return Value{}, p.errorf("parameter")
}

// quoted reads a string literal. A doubled quote stands for one quote.
func (p *paramParser) quoted() (Value, error) {
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '\'' {
			if p.pos+1 < len(p.s) && p.s[p.pos+1] == '\'' {
				sb.WriteByte('\'')
				p.pos += 2
				continue
			}
			p.pos++
			return Value{Kind: KindString, Str: sb.String()}, nil
		}
		sb.WriteByte(c)
		p.pos++
	}
	return Value{}, p.errorf("closing quote")
}

func (p *paramParser) number() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if isDigit(c) || c == '.' || c == 'E' || c == 'e' {
			p.pos++
			continue
		}
		if (c == '-' || c == '+') && (p.s[p.pos-1] == 'E' || p.s[p.pos-1] == 'e') {
			p.pos++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(p.s[start:p.pos], 64)
	if err != nil {
		p.pos = start
		return Value{}, p.errorf("number")
	}
	return Value{Kind: KindNumber, Num: f}, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdent(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

// parseComplex parses the body of a complex record, a parenthesized
// sequence of typed values without separators
func parseComplex(s string) ([]Value, error) {
	p := &paramParser{s: s}
	p.skipSpace()
	if p.peek() != '(' {
		return nil, p.errorf("'('")
	}
	p.pos++

	var parts []Value
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			break
		}
		if !isLetter(p.peek()) {
			return nil, p.errorf("entity type")
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		parts = append(parts, v)
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, p.errorf("end of record")
	}
	return parts, nil
}
