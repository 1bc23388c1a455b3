package query

import (
	"errors"
	"fmt"
	"strings"
)

// FilterCompiler turns a filter tree into a Predicate. One compiler belongs to
// one compilation: its placeholder counter only grows, so names are never
// reused even if Compile runs more than once.
type FilterCompiler struct {
	resolver *Resolver
	registry *Registry
	dialect  Dialect
	root     string

	next     int
	bindings []Binding
}

func NewFilterCompiler(md Metadata, registry *Registry, dialect Dialect) *FilterCompiler {
	return &FilterCompiler{
		resolver: NewResolver(md),
		registry: registry,
		dialect:  dialect,
		root:     md.RootAlias(),
	}
}

// fragment is a rendered condition and the connective joining it to the
// fragment before it. The first fragment's connective is ignored.
type fragment struct {
	conn Logical
	sql  string
}

// Compile returns nil when the tree yields no condition.
func (c *FilterCompiler) Compile(f *Filter) (*Predicate, error) {
	mark := len(c.bindings)

	var group []fragment
	if err := c.walk(f, "", &group, And); err != nil {
		c.bindings = c.bindings[:mark]
		return nil, err
	}
	if len(group) == 0 {
		return nil, nil
	}

	bindings := make([]Binding, len(c.bindings)-mark)
	copy(bindings, c.bindings[mark:])
	return &Predicate{SQL: render(group), Bindings: bindings}, nil
}

func (c *FilterCompiler) walk(f *Filter, field string, group *[]fragment, conn Logical) error {
	var logical, other int
	for _, e := range f.Entries() {
		if IsLogical(e.Key) {
			logical++
		} else {
			other++
		}
	}
	if logical > 0 && other > 0 {
		return invalidFilter(field, "logical operators cannot be mixed with fields at the same level")
	}

	for _, e := range f.Entries() {
		if absent(e.Value) {
			continue
		}

		if l, ok := logicalTokens[e.Key]; ok {
			frag, err := c.compileLogical(e, l, field)
			if err != nil {
				return err
			}
			if frag != "" {
				*group = append(*group, fragment{conn: conn, sql: frag})
			}
			continue
		}

		if op, ok := c.registry.Lookup(e.Key); ok {
			if _, isNode := e.Value.(*Filter); isNode {
				return invalidFilter(field, "operator %s expects a value, got an object", e.Key)
			}
			frag, err := c.compileOperator(op, e.Key, field, e.Value)
			if err != nil {
				return err
			}
			*group = append(*group, fragment{conn: conn, sql: frag})
			continue
		}

		child, ok := e.Value.(*Filter)
		if !ok {
			return invalidFilter(field, "unknown operator %q", e.Key)
		}
		if err := c.walk(child, joinField(field, e.Key), group, conn); err != nil {
			return err
		}
	}
	return nil
}

// compileLogical compiles every element into one parenthesised group joined
// by the connective. Empty groups render as "".
func (c *FilterCompiler) compileLogical(e Entry, l Logical, field string) (string, error) {
	items, ok := toSlice(e.Value)
	if !ok {
		return "", invalidFilter(field, "%s expects a list of filters", e.Key)
	}

	var sub []fragment
	for i, item := range items {
		if item == nil {
			continue
		}
		child, ok := item.(*Filter)
		if !ok {
			return "", invalidFilter(field, "%s[%d] must be an object", e.Key, i)
		}
		if err := c.walk(child, field, &sub, l); err != nil {
			return "", err
		}
	}
	if len(sub) == 0 {
		return "", nil
	}
	return "(" + render(sub) + ")", nil
}

func (c *FilterCompiler) compileOperator(op Operator, token, field string, value any) (string, error) {
	col, err := c.resolver.Column(c.root + Separator + field)
	if err != nil {
		var unknown *UnknownFieldError
		if errors.As(err, &unknown) {
			unknown.Field = field
		}
		return "", err
	}

	operands, err := op.Operands(value)
	if err != nil {
		return "", invalidFilter(field, "%s: %v", token, err)
	}

	params := make([]string, len(operands))
	for i := range operands {
		params[i] = fmt.Sprintf(":%s%d", ParamPrefix, c.next)
		c.next++
	}

	c.bindings = append(c.bindings, op.Bind(params, operands)...)
	return op.Where(c.dialect.Column(col), params, value), nil
}

func render(group []fragment) string {
	var b strings.Builder
	for i, f := range group {
		if i > 0 {
			b.WriteString(" " + f.conn.String() + " ")
		}
		b.WriteString(f.sql)
	}
	return b.String()
}

func joinField(field, key string) string {
	if field == "" {
		return key
	}
	return field + Separator + key
}

// absent reports values that impose no constraint: nil and empty sequences.
func absent(v any) bool {
	if v == nil {
		return true
	}
	if list, ok := toSlice(v); ok {
		return len(list) == 0
	}
	return false
}
