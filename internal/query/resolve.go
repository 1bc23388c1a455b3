package query

import (
	"strings"

	"github.com/atlekbai/querydsl/internal/schema"
)

const (
	// Separator splits field references into alias, group and attribute segments.
	Separator = "."
	// Wildcard as the last segment of a select token expands to many columns.
	Wildcard = "*"
)

// ResolvedColumn addresses a storage column through its owning alias.
type ResolvedColumn struct {
	Alias string
	Path  string
}

func (c ResolvedColumn) String() string { return c.Alias + Separator + c.Path }

// Label is the result-set name the column is selected under.
func (c ResolvedColumn) Label() string { return c.Alias + "_" + c.Path }

// Resolver maps dotted field references to alias-qualified storage columns.
type Resolver struct {
	md Metadata
}

func NewResolver(md Metadata) *Resolver {
	return &Resolver{md: md}
}

// Alias returns the alias owning ref.
func (r *Resolver) Alias(ref string) string {
	alias, _ := r.alias(strings.Split(ref, Separator))
	return alias
}

// alias scans the segments before the leaf from the end and returns the first
// registered alias together with its index. Index -1 means the implicit root.
func (r *Resolver) alias(parts []string) (string, int) {
	for i := len(parts) - 2; i >= 0; i-- {
		if r.md.IsAlias(parts[i]) {
			return parts[i], i
		}
	}
	return r.md.RootAlias(), -1
}

// Column resolves ref to its canonical storage column.
func (r *Resolver) Column(ref string) (ResolvedColumn, error) {
	parts := strings.Split(ref, Separator)
	alias, idx := r.alias(parts)
	property := strings.Join(parts[idx+1:], Separator)

	attr := findAttribute(r.md.Attributes(alias), property)
	if attr == nil {
		return ResolvedColumn{}, &UnknownFieldError{Field: ref, Alias: alias}
	}
	return ResolvedColumn{Alias: alias, Path: attr.Column}, nil
}

// AllColumns expands a wildcard reference. "name.*" yields the columns of the
// embedded group "name"; "profile.*" or "*" yields every attribute of the alias.
func (r *Resolver) AllColumns(ref string) ([]ResolvedColumn, error) {
	parts := strings.Split(ref, Separator)
	if parts[len(parts)-1] != Wildcard {
		return nil, &UnknownFieldError{Field: ref}
	}
	alias, idx := r.alias(parts)
	prefix := strings.Join(parts[idx+1:len(parts)-1], Separator)

	attrs := r.md.Attributes(alias)
	if prefix != "" && !hasEmbedded(r.md.Embeddeds(alias), prefix) {
		return nil, &UnknownFieldError{Field: ref, Alias: alias}
	}

	seen := make(map[string]bool, len(attrs))
	cols := make([]ResolvedColumn, 0, len(attrs))
	for _, a := range attrs {
		if prefix != "" && a.Embedded != prefix {
			continue
		}
		if seen[a.Column] {
			continue
		}
		seen[a.Column] = true
		cols = append(cols, ResolvedColumn{Alias: alias, Path: a.Column})
	}
	return cols, nil
}

// IsWildcard reports whether ref ends in the wildcard segment.
func IsWildcard(ref string) bool {
	return ref == Wildcard || strings.HasSuffix(ref, Separator+Wildcard)
}

func findAttribute(attrs []schema.AttributeDef, property string) *schema.AttributeDef {
	if property == "" {
		return nil
	}
	for i := range attrs {
		if attrs[i].Name == property || attrs[i].Column == property {
			return &attrs[i]
		}
	}
	return nil
}

func hasEmbedded(groups []schema.EmbeddedDef, name string) bool {
	for _, g := range groups {
		if g.Name == name {
			return true
		}
	}
	return false
}
