package query

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// Truthy applies the query-string boolean convention: nil, false, 0, "0",
// "false" and "" are false; everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.TrimSpace(t)
		return s != "" && s != "0" && !strings.EqualFold(s, "false")
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	}
	if f, err := cast.ToFloat64E(v); err == nil {
		return f != 0
	}
	return true
}

// PositiveInt coerces v (number or numeric string) to a positive integer.
// It reports false for anything else, including zero and negatives.
func PositiveInt(v any) (uint64, bool) {
	if v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	n, err := cast.ToInt64E(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return uint64(n), true
}

// toSlice returns v as a slice of operands and whether v was a sequence.
func toSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}
