package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/querydsl/internal/query"
	"github.com/atlekbai/querydsl/internal/schema"
)

const (
	QueryServiceName = "querydsl.v1.QueryService"

	ListProcedure    = "/" + QueryServiceName + "/List"
	CompileProcedure = "/" + QueryServiceName + "/Compile"
)

// exactCountThreshold is the planner estimate below which we run an exact count.
const exactCountThreshold = 50_000

// DB is the part of *pgxpool.Pool the service needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ListRequest names the root entity and carries the query description.
type ListRequest struct {
	Entity string `json:"entity"`
	query.Description
}

func (r *ListRequest) Validate() error {
	if r.Entity == "" {
		return errors.New("entity is required")
	}
	return nil
}

type ListResponse struct {
	TotalCount int64            `json:"total_count"`
	Page       uint64           `json:"page,omitempty"`
	Limit      uint64           `json:"limit,omitempty"`
	Results    []map[string]any `json:"results"`
	Cached     bool             `json:"cached,omitempty"`
}

// CompileResponse is the SQL a description compiles to, without executing it.
type CompileResponse struct {
	Entity    string `json:"entity"`
	SQL       string `json:"sql"`
	Args      []any  `json:"args"`
	CountSQL  string `json:"count_sql"`
	CountArgs []any  `json:"count_args"`
}

type QueryService struct {
	db       DB
	entities *schema.Cache
	opts     query.Options
	cacheTTL time.Duration
	cache    *resultCache
	log      *slog.Logger
}

// NewQueryService wires the compiler to a database. cacheTTL applies to
// requests that enable caching without naming a duration.
func NewQueryService(db DB, entities *schema.Cache, opts query.Options, cacheTTL time.Duration, log *slog.Logger) *QueryService {
	if log == nil {
		log = slog.Default()
	}
	return &QueryService{
		db:       db,
		entities: entities,
		opts:     opts,
		cacheTTL: cacheTTL,
		cache:    newResultCache(),
		log:      log,
	}
}

func (s *QueryService) RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler) {
	opts := handlerOptions(interceptors)
	mux := http.NewServeMux()
	mux.Handle(ListProcedure, connect.NewUnaryHandler(ListProcedure, s.List, opts...))
	mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, s.Compile, opts...))
	return "/" + QueryServiceName + "/", mux
}

func (s *QueryService) List(ctx context.Context, req *connect.Request[ListRequest]) (*connect.Response[ListResponse], error) {
	resp, err := s.Run(ctx, req.Msg.Entity, &req.Msg.Description)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

func (s *QueryService) Compile(ctx context.Context, req *connect.Request[ListRequest]) (*connect.Response[CompileResponse], error) {
	resp, err := s.Explain(req.Msg.Entity, &req.Msg.Description)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

// Explain compiles desc against entity and returns the generated statements.
func (s *QueryService) Explain(entity string, desc *query.Description) (*CompileResponse, error) {
	b, err := s.prepare(entity, desc)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := b.BuildList()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	countSQL, countArgs, err := b.BuildCount()
	if err != nil {
		return nil, fmt.Errorf("build count: %w", err)
	}
	return &CompileResponse{Entity: entity, SQL: sqlStr, Args: args, CountSQL: countSQL, CountArgs: countArgs}, nil
}

// Run compiles desc against entity, executes it and returns one page of rows
// plus the total count.
func (s *QueryService) Run(ctx context.Context, entity string, desc *query.Description) (*ListResponse, error) {
	b, err := s.prepare(entity, desc)
	if err != nil {
		return nil, err
	}

	opt := b.CacheOption()
	if opt == nil || !opt.Enabled {
		return s.execute(ctx, b)
	}

	key, err := cacheKey(entity, b, opt)
	if err != nil {
		return nil, err
	}
	ttl := opt.TTL
	if ttl == 0 {
		ttl = s.cacheTTL
	}

	resp, hit, err := s.cache.Do(key, ttl, func() (*ListResponse, error) {
		return s.execute(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		s.log.Debug("query cache hit", "entity", entity, "key", key)
		cached := *resp
		cached.Cached = true
		return &cached, nil
	}
	return resp, nil
}

// Count returns the exact number of rows desc matches, ignoring pagination.
func (s *QueryService) Count(ctx context.Context, entity string, desc *query.Description) (int64, error) {
	b, err := s.prepare(entity, desc)
	if err != nil {
		return 0, err
	}
	return s.exactCount(ctx, b)
}

func (s *QueryService) prepare(entity string, desc *query.Description) (*query.SelectBuilder, error) {
	root := s.entities.Get(entity)
	if root == nil {
		return nil, fmt.Errorf("%w: no entity registered with name %q", ErrEntityNotFound, entity)
	}
	b, err := query.Parse(desc, root, RootAlias(root), s.entities, s.opts)
	if err != nil {
		return nil, &compileError{err: err}
	}
	return b, nil
}

func (s *QueryService) execute(ctx context.Context, b *query.SelectBuilder) (*ListResponse, error) {
	if err := checkShape(b.Columns(), b.Alias()); err != nil {
		return nil, &compileError{err: err}
	}

	listSQL, listArgs, err := b.BuildList()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	var totalCount int64
	g.Go(func() error {
		var err error
		totalCount, err = s.resolveCount(gctx, b)
		return err
	})

	var rows []map[string]any
	g.Go(func() error {
		dbRows, err := s.db.Query(gctx, listSQL, listArgs...)
		if err != nil {
			return err
		}
		rows, err = pgx.CollectRows(dbRows, pgx.RowToMap)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	resp := &ListResponse{
		TotalCount: totalCount,
		Results:    shapeRows(rows, b.Columns(), b.Alias()),
	}
	if p := b.Pagination(); p != nil {
		resp.Limit = p.Take
		resp.Page = p.Skip/p.Take + 1
	}
	return resp, nil
}

// resolveCount uses the EXPLAIN trick for cheap estimation on large tables,
// falling back to exact count only when the planner estimate is small.
// Dialects without EXPLAIN (FORMAT JSON) always count exactly.
func (s *QueryService) resolveCount(ctx context.Context, b *query.SelectBuilder) (int64, error) {
	if s.opts.Dialect.Name != query.Postgres.Name && s.opts.Dialect.Name != query.CockroachDB.Name {
		return s.exactCount(ctx, b)
	}

	estSQL, estArgs, err := b.BuildEstimate()
	if err != nil {
		return 0, err
	}

	var planJSON string
	err = s.db.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+estSQL, estArgs...).Scan(&planJSON)
	if err != nil {
		return 0, fmt.Errorf("explain estimate: %w", err)
	}

	estimated := parsePlanRows(planJSON)

	if estimated <= exactCountThreshold {
		count, err := s.exactCount(ctx, b)
		if err != nil {
			return estimated, nil
		}
		return count, nil
	}

	return estimated, nil
}

func (s *QueryService) exactCount(ctx context.Context, b *query.SelectBuilder) (int64, error) {
	countSQL, countArgs, err := b.BuildCount()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

func parsePlanRows(planJSON string) int64 {
	var plan []struct {
		Plan struct {
			PlanRows float64 `json:"Plan Rows"`
		} `json:"Plan"`
	}
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil || len(plan) == 0 {
		return 0
	}
	return int64(plan[0].Plan.PlanRows)
}

// RootAlias is the alias an entity is selected under: its name with a
// lowercase first letter, e.g. "User" -> "user".
func RootAlias(e *schema.EntityDef) string {
	return strings.ToLower(e.Name[:1]) + e.Name[1:]
}

// shapeRows turns "alias_path" result columns into records: root columns at
// the top level, joined columns nested under their alias.
func shapeRows(rows []map[string]any, cols []query.ResolvedColumn, root string) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(cols))
		for _, c := range cols {
			v := jsonValue(row[c.Label()])
			if c.Alias == root {
				rec[c.Path] = v
				continue
			}
			nested, ok := rec[c.Alias].(map[string]any)
			if !ok {
				nested = make(map[string]any)
				rec[c.Alias] = nested
			}
			nested[c.Path] = v
		}
		out = append(out, rec)
	}
	return out
}

// checkShape rejects selections where a root column and a joined record would
// land on the same key of a shaped row.
func checkShape(cols []query.ResolvedColumn, root string) error {
	nested := make(map[string]bool)
	for _, c := range cols {
		if c.Alias != root {
			nested[c.Alias] = true
		}
	}
	for _, c := range cols {
		if c.Alias == root && nested[c.Path] {
			return fmt.Errorf("column %s collides with joined record %q in results", c, c.Path)
		}
	}
	return nil
}

// jsonValue converts driver values without a useful JSON form.
func jsonValue(v any) any {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String()
	case []byte:
		return string(t)
	}
	return v
}

// cacheKey is the caller's cache id, or the entity plus generated SQL and args.
func cacheKey(entity string, b *query.SelectBuilder, opt *query.CacheOption) (string, error) {
	if opt.ID != "" {
		return opt.ID, nil
	}
	sqlStr, args, err := b.BuildList()
	if err != nil {
		return "", fmt.Errorf("build list: %w", err)
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	return entity + "\x00" + sqlStr + "\x00" + string(encoded), nil
}
