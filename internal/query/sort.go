package query

import "strings"

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// descPrefix marks a descending sort token, e.g. "-age".
const descPrefix = "-"

type OrderEntry struct {
	Column    ResolvedColumn
	Direction Direction
}

// OrderMap is an ordered column → direction map. Setting a column that is
// already present moves it to the end with the new direction.
type OrderMap struct {
	entries []OrderEntry
}

func (m *OrderMap) Set(c ResolvedColumn, dir Direction) {
	for i, e := range m.entries {
		if e.Column == c {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	m.entries = append(m.entries, OrderEntry{Column: c, Direction: dir})
}

func (m *OrderMap) Entries() []OrderEntry {
	if m == nil {
		return nil
	}
	return m.entries
}

func (m *OrderMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// CompileSort resolves sort tokens into an OrderMap. Returns nil when no
// token yields a column.
func CompileSort(r *Resolver, tokens []string) (*OrderMap, error) {
	m := &OrderMap{}
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		dir := Asc
		if strings.HasPrefix(tok, descPrefix) {
			dir = Desc
			tok = strings.TrimPrefix(tok, descPrefix)
		}
		if tok == "" {
			continue
		}
		c, err := r.Column(tok)
		if err != nil {
			return nil, err
		}
		m.Set(c, dir)
	}
	if m.Len() == 0 {
		return nil, nil
	}
	return m, nil
}
