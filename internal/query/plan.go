package query

import (
	"fmt"

	"github.com/atlekbai/querydsl/internal/schema"
)

// Options configures a compilation. The zero value uses the Generic dialect,
// the built-in operators and the default pagination window.
type Options struct {
	Dialect    Dialect
	Registry   *Registry
	Pagination PaginationOptions
}

func (o Options) withDefaults() Options {
	if o.Dialect.Name == "" {
		o.Dialect = Generic
	}
	if o.Registry == nil {
		o.Registry = NewRegistry(o.Dialect, nil)
	}
	if o.Pagination.DefaultLimit == 0 {
		o.Pagination.DefaultLimit = DefaultLimit
	}
	if o.Pagination.DefaultPage == 0 {
		o.Pagination.DefaultPage = DefaultPage
	}
	return o
}

// Plan is the compiled form of a Description. Nil/empty parts mean the
// description did not ask for them.
type Plan struct {
	RootAlias   string
	Root        *schema.EntityDef
	Joins       []Join
	Columns     []ResolvedColumn
	Order       *OrderMap
	Where       *Predicate
	Pagination  *Pagination
	Cache       *CacheOption
	WithDeleted bool
}

// Compile resolves a description against root (aliased rootAlias) in the
// fixed order relations → select → sort → filter → pagination → cache →
// withDeleted. Relations run first because they define the aliases the other
// compilers resolve against. No builder is touched, so a failing compilation
// leaves nothing half-applied.
func Compile(desc *Description, root *schema.EntityDef, rootAlias string, entities EntityLookup, opts Options) (*Plan, error) {
	if root == nil {
		return nil, fmt.Errorf("compile: nil root entity")
	}
	if desc == nil {
		desc = &Description{}
	}
	opts = opts.withDefaults()

	scope := NewScope(rootAlias, root)
	plan := &Plan{RootAlias: rootAlias, Root: root}

	joins, err := CompileRelations(scope, entities, desc.Relations)
	if err != nil {
		return nil, fmt.Errorf("relations: %w", err)
	}
	plan.Joins = joins

	resolver := NewResolver(scope)

	if plan.Columns, err = CompileSelect(resolver, desc.Select); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	if plan.Order, err = CompileSort(resolver, desc.Sort); err != nil {
		return nil, fmt.Errorf("sort: %w", err)
	}
	if desc.Filter != nil {
		fc := NewFilterCompiler(scope, opts.Registry, opts.Dialect)
		if plan.Where, err = fc.Compile(desc.Filter); err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
	}

	plan.Pagination = desc.pagination(opts.Pagination)
	if plan.Cache, err = desc.cache(); err != nil {
		return nil, err
	}
	plan.WithDeleted = Truthy(desc.WithDeleted)

	return plan, nil
}

// Builder is the sink a Plan is applied to.
type Builder interface {
	LeftJoin(j Join)
	Select(cols []ResolvedColumn)
	OrderBy(order *OrderMap)
	AndWhere(p *Predicate)
	Paginate(p Pagination)
	Cache(c CacheOption)
	WithDeleted()
}

// Apply hands the plan to b in the compilation order.
func (p *Plan) Apply(b Builder) {
	for _, j := range p.Joins {
		b.LeftJoin(j)
	}
	if len(p.Columns) > 0 {
		b.Select(p.Columns)
	}
	if p.Order.Len() > 0 {
		b.OrderBy(p.Order)
	}
	if p.Where != nil {
		b.AndWhere(p.Where)
	}
	if p.Pagination != nil {
		b.Paginate(*p.Pagination)
	}
	if p.Cache != nil {
		b.Cache(*p.Cache)
	}
	if p.WithDeleted {
		b.WithDeleted()
	}
}

// Parse compiles desc and applies it to a fresh SelectBuilder.
func Parse(desc *Description, root *schema.EntityDef, rootAlias string, entities EntityLookup, opts Options) (*SelectBuilder, error) {
	plan, err := Compile(desc, root, rootAlias, entities, opts)
	if err != nil {
		return nil, err
	}
	b := NewSelectBuilder(root, rootAlias, opts.withDefaults().Dialect)
	plan.Apply(b)
	return b, nil
}
