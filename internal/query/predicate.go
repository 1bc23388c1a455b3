package query

import (
	"fmt"
	"strings"
)

// ParamPrefix names the placeholders emitted by the filter compiler.
const ParamPrefix = "param_"

// Binding binds a placeholder name (without the leading colon) to a value.
type Binding struct {
	Name  string
	Value any
}

// Predicate is a compiled filter: SQL text with named ":param_N" placeholders
// plus their bindings in encounter order.
type Predicate struct {
	SQL      string
	Bindings []Binding
}

// Params returns the bindings as a name → value map.
func (p *Predicate) Params() map[string]any {
	m := make(map[string]any, len(p.Bindings))
	for _, b := range p.Bindings {
		m[b.Name] = b.Value
	}
	return m
}

// ToSql implements squirrel.Sqlizer. Named placeholders are rewritten to
// positional "?" in order of appearance and the whole predicate is wrapped in
// parentheses so it conjoins safely with other conditions. Placeholders inside
// string literals and quoted identifiers are left alone.
func (p *Predicate) ToSql() (string, []any, error) {
	values := p.Params()
	var (
		b    strings.Builder
		args []any
		src  = p.SQL
	)
	b.Grow(len(src) + 2)
	b.WriteByte('(')

	// quote is the delimiter of the literal or identifier being copied, or 0.
	// Doubled delimiters toggle twice, which keeps escapes inside the span.
	var quote byte
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			b.WriteByte(ch)
		case ch == '\'' || ch == '"':
			quote = ch
			b.WriteByte(ch)
		case ch == ':' && i+1 < len(src) && isIdentStart(src[i+1]) && (i == 0 || src[i-1] != ':'):
			j := i + 1
			for j < len(src) && isIdentChar(src[j]) {
				j++
			}
			name := src[i+1 : j]
			v, ok := values[name]
			if !ok {
				return "", nil, fmt.Errorf("predicate: no binding for placeholder %q", name)
			}
			b.WriteByte('?')
			args = append(args, v)
			i = j - 1
		default:
			b.WriteByte(ch)
		}
	}
	b.WriteByte(')')
	return b.String(), args, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
