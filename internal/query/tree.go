package query

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one key of a filter node.
type Entry struct {
	Key   string
	Value any
}

// Filter is a filter tree node: an ordered mapping whose values are nested
// *Filter nodes, []any sequences, scalars, or nil. Key order is significant
// (it fixes fragment and placeholder order), so JSON decoding keeps it.
type Filter struct {
	entries []Entry
}

func NewFilter(entries ...Entry) *Filter {
	return &Filter{entries: entries}
}

// ParseFilter decodes a JSON object into a Filter.
func ParseFilter(data string) (*Filter, error) {
	f := &Filter{}
	if err := f.UnmarshalJSON([]byte(data)); err != nil {
		return nil, err
	}
	return f, nil
}

// Set appends key (or replaces its value in place) and returns f.
func (f *Filter) Set(key string, value any) *Filter {
	for i := range f.entries {
		if f.entries[i].Key == key {
			f.entries[i].Value = value
			return f
		}
	}
	f.entries = append(f.entries, Entry{Key: key, Value: value})
	return f
}

func (f *Filter) Entries() []Entry {
	if f == nil {
		return nil
	}
	return f.entries
}

func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.entries)
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	switch t := v.(type) {
	case nil:
		f.entries = nil
	case *Filter:
		f.entries = t.entries
	default:
		return fmt.Errorf("filter: expected an object, got %T", v)
	}
	return nil
}

func (f *Filter) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range f.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		return t.Float64()
	default:
		// string, bool or nil
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (*Filter, error) {
	f := &Filter{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		f.entries = append(f.entries, Entry{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	list := []any{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return list, nil
}
