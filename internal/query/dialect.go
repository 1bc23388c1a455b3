package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/querydsl/internal/schema"
)

// Dialect captures the backend differences the compiler cares about.
type Dialect struct {
	Name string
	// Quote wraps identifiers in double quotes when rendering columns.
	Quote bool
	// ILike reports native case-insensitive LIKE support.
	ILike bool
	// Placeholders is the positional placeholder format used by SelectBuilder.
	Placeholders sq.PlaceholderFormat
}

var (
	Postgres    = Dialect{Name: "postgres", Quote: true, ILike: true, Placeholders: sq.Dollar}
	CockroachDB = Dialect{Name: "cockroachdb", Quote: true, ILike: true, Placeholders: sq.Dollar}
	SQLite      = Dialect{Name: "sqlite", Quote: true, ILike: false, Placeholders: sq.Question}
	MySQL       = Dialect{Name: "mysql", Quote: false, ILike: false, Placeholders: sq.Question}
	// Generic renders bare identifiers and the uppercase LIKE fallback.
	Generic = Dialect{Name: "generic", Quote: false, ILike: false, Placeholders: sq.Question}
)

// DialectByName returns a known dialect.
func DialectByName(name string) (Dialect, error) {
	for _, d := range []Dialect{Postgres, CockroachDB, SQLite, MySQL, Generic} {
		if d.Name == name {
			return d, nil
		}
	}
	return Dialect{}, fmt.Errorf("unknown dialect %q", name)
}

// Ident renders a single identifier.
func (d Dialect) Ident(name string) string {
	if d.Quote {
		return schema.QuoteIdent(name)
	}
	return name
}

// Column renders an alias-qualified column reference.
func (d Dialect) Column(c ResolvedColumn) string {
	return d.Ident(c.Alias) + Separator + d.Ident(c.Path)
}
