package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/querydsl/internal/schema"
)

// SelectBuilder accumulates a compiled plan and renders it with squirrel.
// It implements Builder.
type SelectBuilder struct {
	root    *schema.EntityDef
	alias   string
	dialect Dialect

	joins       []Join
	columns     []ResolvedColumn
	order       *OrderMap
	where       []sq.Sqlizer
	page        *Pagination
	cache       *CacheOption
	withDeleted bool
}

// NewSelectBuilder returns a builder selecting from root under alias.
func NewSelectBuilder(root *schema.EntityDef, alias string, dialect Dialect) *SelectBuilder {
	return &SelectBuilder{root: root, alias: alias, dialect: dialect}
}

func (b *SelectBuilder) LeftJoin(j Join)              { b.joins = append(b.joins, j) }
func (b *SelectBuilder) Select(cols []ResolvedColumn) { b.columns = cols }
func (b *SelectBuilder) OrderBy(order *OrderMap)      { b.order = order }
func (b *SelectBuilder) AndWhere(p *Predicate)        { b.where = append(b.where, p) }
func (b *SelectBuilder) Paginate(p Pagination)        { b.page = &p }
func (b *SelectBuilder) Cache(c CacheOption)          { b.cache = &c }
func (b *SelectBuilder) WithDeleted()                 { b.withDeleted = true }

func (b *SelectBuilder) Alias() string { return b.alias }

// CacheOption returns the caching request, or nil.
func (b *SelectBuilder) CacheOption() *CacheOption { return b.cache }

// Pagination returns the skip/take window, or nil.
func (b *SelectBuilder) Pagination() *Pagination { return b.page }

// Columns returns the selected columns; every root attribute when the plan
// selected nothing.
func (b *SelectBuilder) Columns() []ResolvedColumn {
	if len(b.columns) > 0 {
		return b.columns
	}
	cols := make([]ResolvedColumn, 0, len(b.root.Attributes))
	for _, a := range b.root.Attributes {
		cols = append(cols, ResolvedColumn{Alias: b.alias, Path: a.Column})
	}
	return cols
}

// BuildList renders the full SELECT with ordering and pagination.
func (b *SelectBuilder) BuildList() (string, []any, error) {
	columns := make([]string, 0, len(b.columns))
	for _, c := range b.Columns() {
		columns = append(columns, fmt.Sprintf(`%s AS %s`, b.dialect.Column(c), b.dialect.Ident(c.Label())))
	}

	qb := b.base(sq.Select(columns...))
	for _, e := range b.order.Entries() {
		qb = qb.OrderBy(fmt.Sprintf(`%s %s`, b.dialect.Column(e.Column), e.Direction))
	}
	if b.page != nil {
		qb = qb.Limit(b.page.Take)
		if b.page.Skip > 0 {
			qb = qb.Offset(b.page.Skip)
		}
	}
	return qb.ToSql()
}

// BuildCount renders count(*) over the same joins and conditions.
func (b *SelectBuilder) BuildCount() (string, []any, error) {
	return b.base(sq.Select("count(*)")).ToSql()
}

// BuildEstimate returns SELECT 1 FROM ... WHERE ... for use with EXPLAIN (FORMAT JSON).
func (b *SelectBuilder) BuildEstimate() (string, []any, error) {
	return b.base(sq.Select("1")).ToSql()
}

func (b *SelectBuilder) base(qb sq.SelectBuilder) sq.SelectBuilder {
	qb = qb.From(b.tableRef(b.root) + " " + b.dialect.Ident(b.alias)).
		PlaceholderFormat(b.dialect.Placeholders)

	for _, j := range b.joins {
		on := fmt.Sprintf(`%s = %s`,
			b.dialect.Column(ResolvedColumn{Alias: j.Alias, Path: j.Relation.ForeignColumn}),
			b.dialect.Column(ResolvedColumn{Alias: j.Parent, Path: j.Relation.LocalColumn}))
		if cond := b.notDeleted(j.Target, j.Alias); cond != "" {
			on += " AND " + cond
		}
		qb = qb.LeftJoin(fmt.Sprintf(`%s %s ON %s`, b.tableRef(j.Target), b.dialect.Ident(j.Alias), on))
	}

	if cond := b.notDeleted(b.root, b.alias); cond != "" {
		qb = qb.Where(cond)
	}
	for _, w := range b.where {
		qb = qb.Where(w)
	}
	return qb
}

// notDeleted returns the soft-delete guard for an entity, or "".
func (b *SelectBuilder) notDeleted(e *schema.EntityDef, alias string) string {
	if b.withDeleted || e.DeletedAtColumn == "" {
		return ""
	}
	return b.dialect.Column(ResolvedColumn{Alias: alias, Path: e.DeletedAtColumn}) + " IS NULL"
}

func (b *SelectBuilder) tableRef(e *schema.EntityDef) string {
	if e.Schema != "" {
		return b.dialect.Ident(e.Schema) + "." + b.dialect.Ident(e.Table)
	}
	return b.dialect.Ident(e.Table)
}
