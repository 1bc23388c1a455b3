package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLimit = 25
	DefaultPage  = 1
)

// Description is the declarative query a list endpoint receives. Every field
// is optional. Paginate, Page, Limit, Cache and WithDeleted accept the loose
// forms query strings produce ("true", "0", "20") and are coerced by Compile.
type Description struct {
	Select      []string `json:"select,omitempty"`
	Sort        []string `json:"sort,omitempty"`
	Relations   []string `json:"relations,omitempty"`
	Filter      *Filter  `json:"filter,omitempty"`
	Paginate    any      `json:"paginate,omitempty"`
	Page        any      `json:"page,omitempty"`
	Limit       any      `json:"limit,omitempty"`
	Cache       any      `json:"cache,omitempty"`
	WithDeleted any      `json:"withDeleted,omitempty"`
}

type PaginationOptions struct {
	DefaultLimit uint64
	DefaultPage  uint64
}

// Pagination is the skip/take window derived from page and limit.
type Pagination struct {
	Skip uint64
	Take uint64
}

// CacheOption is the result caching request. An empty ID means the caller
// wants the cache keyed by the generated SQL.
type CacheOption struct {
	Enabled bool
	ID      string
	TTL     time.Duration
}

// pagination returns nil when pagination is disabled.
func (d *Description) pagination(opts PaginationOptions) *Pagination {
	if d.Paginate != nil && !Truthy(d.Paginate) {
		return nil
	}
	limit, ok := PositiveInt(d.Limit)
	if !ok {
		limit = opts.DefaultLimit
	}
	page, ok := PositiveInt(d.Page)
	if !ok {
		page = opts.DefaultPage
	}
	return &Pagination{Skip: limit * (page - 1), Take: limit}
}

// cache accepts true/false, a TTL in milliseconds, or an [id, ms] pair.
// It returns nil when the description does not mention caching.
func (d *Description) cache() (*CacheOption, error) {
	switch v := d.Cache.(type) {
	case nil:
		return nil, nil
	case bool:
		return &CacheOption{Enabled: v}, nil
	case []any:
		if len(v) != 2 {
			return nil, fmt.Errorf("cache: expected [id, milliseconds]")
		}
		ms, ok := PositiveInt(v[1])
		if !ok {
			return nil, fmt.Errorf("cache: invalid duration %v", v[1])
		}
		return &CacheOption{Enabled: true, ID: fmt.Sprint(v[0]), TTL: time.Duration(ms) * time.Millisecond}, nil
	}
	if ms, ok := PositiveInt(d.Cache); ok {
		return &CacheOption{Enabled: true, TTL: time.Duration(ms) * time.Millisecond}, nil
	}
	return &CacheOption{Enabled: Truthy(d.Cache)}, nil
}

// ParseValues reads a Description from URL query parameters:
//
//	?select=id,age&sort=-age&relations=profile&filter={"age":{"_gte":18}}
//	&page=2&limit=10&paginate=false&cache=true&withDeleted=1
//
// List parameters accept comma-separated values and repetition.
func ParseValues(q url.Values) (*Description, error) {
	d := &Description{
		Select:    listParam(q, "select"),
		Sort:      listParam(q, "sort"),
		Relations: listParam(q, "relations"),
	}

	if raw := q.Get("filter"); raw != "" {
		f, err := ParseFilter(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid filter parameter: %w", err)
		}
		d.Filter = f
	}

	if v := q.Get("paginate"); v != "" {
		d.Paginate = v
	}
	if v := q.Get("page"); v != "" {
		d.Page = v
	}
	if v := q.Get("limit"); v != "" {
		d.Limit = v
	}
	if v := q.Get("withDeleted"); v != "" {
		d.WithDeleted = v
	}

	// ?cache=true | ?cache=5000 | ?cache=users,5000
	if v := q.Get("cache"); v != "" {
		if id, ms, ok := strings.Cut(v, ","); ok {
			n, err := strconv.ParseUint(strings.TrimSpace(ms), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid cache parameter %q", v)
			}
			d.Cache = []any{strings.TrimSpace(id), n}
		} else if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 1 {
			d.Cache = n
		} else {
			d.Cache = Truthy(v)
		}
	}

	return d, nil
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
