package query

import (
	"fmt"
	"strings"
)

// Operator renders one comparison token. Operands returns the values that
// each need a placeholder (none for _null/_empty); the compiler allocates
// that many names and passes them to Where and Bind.
type Operator interface {
	Operands(value any) ([]any, error)
	Where(column string, params []string, value any) string
	Bind(params []string, operands []any) []Binding
}

// Logical is a connective combining sibling fragments.
type Logical int

const (
	And Logical = iota
	Or
)

func (l Logical) String() string {
	if l == Or {
		return "OR"
	}
	return "AND"
}

var logicalTokens = map[string]Logical{
	"_and": And,
	"_or":  Or,
}

// Registry maps operator tokens to descriptors. It is immutable once built and
// safe to share between concurrent compilations.
type Registry struct {
	ops map[string]Operator
}

// DefaultOperators returns the built-in operator set for a dialect.
func DefaultOperators(d Dialect) map[string]Operator {
	return map[string]Operator{
		"_eq":          comparison{symbol: "="},
		"_neq":         comparison{symbol: "!="},
		"_lt":          comparison{symbol: "<"},
		"_lte":         comparison{symbol: "<="},
		"_gt":          comparison{symbol: ">"},
		"_gte":         comparison{symbol: ">="},
		"_contains":    pattern{prefix: "%", suffix: "%", ilike: d.ILike},
		"_starts_with": pattern{suffix: "%", ilike: d.ILike},
		"_ends_with":   pattern{prefix: "%", ilike: d.ILike},
		"_null":        nullCheck{},
		"_empty":       emptyCheck{},
		"_in":          membership{},
		"_between":     between{},
	}
}

// NewRegistry builds a registry from the dialect defaults plus overrides.
// A nil override removes the token.
func NewRegistry(d Dialect, overrides map[string]Operator) *Registry {
	ops := DefaultOperators(d)
	for token, op := range overrides {
		if op == nil {
			delete(ops, token)
			continue
		}
		ops[token] = op
	}
	return &Registry{ops: ops}
}

func (r *Registry) Lookup(token string) (Operator, bool) {
	op, ok := r.ops[token]
	return op, ok
}

// IsLogical reports whether token is a logical connective.
func IsLogical(token string) bool {
	_, ok := logicalTokens[token]
	return ok
}

// bindEach pairs placeholder names with operands in order.
func bindEach(params []string, operands []any) []Binding {
	out := make([]Binding, 0, len(params))
	for i, p := range params {
		out = append(out, Binding{Name: strings.TrimPrefix(p, ":"), Value: operands[i]})
	}
	return out
}

func single(value any) ([]any, error) {
	if _, ok := toSlice(value); ok {
		return nil, fmt.Errorf("expected a single value, got a list")
	}
	if _, ok := value.(*Filter); ok {
		return nil, fmt.Errorf("expected a single value, got an object")
	}
	return []any{value}, nil
}

// --- Descriptors ---

type comparison struct{ symbol string }

func (comparison) Operands(value any) ([]any, error) { return single(value) }

func (o comparison) Where(column string, params []string, _ any) string {
	return fmt.Sprintf("%s %s %s", column, o.symbol, params[0])
}

func (comparison) Bind(params []string, operands []any) []Binding {
	return bindEach(params, operands)
}

// pattern is a case-insensitive LIKE; prefix/suffix are the wildcard markers
// wrapped around the bound operand.
type pattern struct {
	prefix, suffix string
	ilike          bool
}

func (pattern) Operands(value any) ([]any, error) { return single(value) }

func (o pattern) Where(column string, params []string, _ any) string {
	if o.ilike {
		return fmt.Sprintf("%s ILIKE %s", column, params[0])
	}
	return fmt.Sprintf("UPPER(%s) LIKE UPPER(%s)", column, params[0])
}

func (o pattern) Bind(params []string, operands []any) []Binding {
	wrapped := make([]any, len(operands))
	for i, v := range operands {
		wrapped[i] = o.prefix + fmt.Sprint(v) + o.suffix
	}
	return bindEach(params, wrapped)
}

type nullCheck struct{}

func (nullCheck) Operands(any) ([]any, error) { return nil, nil }

func (nullCheck) Where(column string, _ []string, value any) string {
	if Truthy(value) {
		return column + " IS NULL"
	}
	return column + " IS NOT NULL"
}

func (nullCheck) Bind([]string, []any) []Binding { return nil }

type emptyCheck struct{}

func (emptyCheck) Operands(any) ([]any, error) { return nil, nil }

func (emptyCheck) Where(column string, _ []string, value any) string {
	if Truthy(value) {
		return column + " = ''"
	}
	return column + " != ''"
}

func (emptyCheck) Bind([]string, []any) []Binding { return nil }

type membership struct{}

func (membership) Operands(value any) ([]any, error) {
	list, ok := toSlice(value)
	if !ok {
		return nil, fmt.Errorf("expected a list of values")
	}
	return list, nil
}

func (membership) Where(column string, params []string, _ any) string {
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(params, ", "))
}

func (membership) Bind(params []string, operands []any) []Binding {
	return bindEach(params, operands)
}

type between struct{}

func (between) Operands(value any) ([]any, error) {
	list, ok := toSlice(value)
	if !ok || len(list) != 2 {
		return nil, fmt.Errorf("expected a [from, to] pair")
	}
	return list, nil
}

func (between) Where(column string, params []string, _ any) string {
	return fmt.Sprintf("%s BETWEEN %s AND %s", column, params[0], params[1])
}

func (between) Bind(params []string, operands []any) []Binding {
	return bindEach(params, operands)
}
