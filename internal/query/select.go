package query

import (
	"fmt"
	"strings"
)

// CompileSelect resolves select tokens, expanding wildcards, and returns the
// de-duplicated column list in first-occurrence order. Two distinct columns
// whose result labels coincide ("user"/"profile_id" and "user_profile"/"id")
// are rejected.
func CompileSelect(r *Resolver, tokens []string) ([]ResolvedColumn, error) {
	labels := make(map[string]ResolvedColumn)
	var cols []ResolvedColumn

	add := func(c ResolvedColumn) error {
		prev, ok := labels[c.Label()]
		if !ok {
			labels[c.Label()] = c
			cols = append(cols, c)
			return nil
		}
		if prev != c {
			return fmt.Errorf("columns %s and %s share result label %q", prev, c, c.Label())
		}
		return nil
	}

	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if IsWildcard(tok) {
			all, err := r.AllColumns(tok)
			if err != nil {
				return nil, err
			}
			for _, c := range all {
				if err := add(c); err != nil {
					return nil, err
				}
			}
			continue
		}
		c, err := r.Column(tok)
		if err != nil {
			return nil, err
		}
		if err := add(c); err != nil {
			return nil, err
		}
	}
	return cols, nil
}
