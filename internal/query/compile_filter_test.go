package query

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/atlekbai/querydsl/internal/schema"
)

func compileFilter(t *testing.T, scope *Scope, d Dialect, filter string) (*Predicate, error) {
	t.Helper()
	fc := NewFilterCompiler(scope, NewRegistry(d, nil), d)
	return fc.Compile(mustFilter(t, filter))
}

// --- Field operators ---

func TestFilterConjunction(t *testing.T) {
	p, err := compileFilter(t, testScope(t), Generic, `{"age": {"_gte": 18, "_lt": 65}}`)
	if err != nil {
		t.Fatal(err)
	}
	want := "user.age >= :param_0 AND user.age < :param_1"
	if p.SQL != want {
		t.Fatalf("got %q, want %q", p.SQL, want)
	}
	wantBindings := []Binding{{"param_0", int64(18)}, {"param_1", int64(65)}}
	if !reflect.DeepEqual(p.Bindings, wantBindings) {
		t.Fatalf("bindings = %v, want %v", p.Bindings, wantBindings)
	}
}

func TestFilterAllOperators(t *testing.T) {
	filter := `{
		"name": {
			"first": {"_eq": "name", "_neq": "name", "_contains": "name", "_starts_with": "name", "_ends_with": "name"},
			"last": {"_null": false, "_empty": false}
		},
		"age": {"_lt": 100, "_lte": 100, "_gt": 0, "_gte": 0, "_between": [0, 100], "_in": [1, 2, 3, 4]},
		"profile": {"_null": true, "_empty": true}
	}`
	p, err := compileFilter(t, testScope(t), SQLite, filter)
	if err != nil {
		t.Fatal(err)
	}

	want := `"user"."nameFirst" = :param_0 AND "user"."nameFirst" != :param_1` +
		` AND UPPER("user"."nameFirst") LIKE UPPER(:param_2)` +
		` AND UPPER("user"."nameFirst") LIKE UPPER(:param_3)` +
		` AND UPPER("user"."nameFirst") LIKE UPPER(:param_4)` +
		` AND "user"."nameLast" IS NOT NULL AND "user"."nameLast" != ''` +
		` AND "user"."age" < :param_5 AND "user"."age" <= :param_6` +
		` AND "user"."age" > :param_7 AND "user"."age" >= :param_8` +
		` AND "user"."age" BETWEEN :param_9 AND :param_10` +
		` AND "user"."age" IN (:param_11, :param_12, :param_13, :param_14)` +
		` AND "user"."profileId" IS NULL AND "user"."profileId" = ''`
	if p.SQL != want {
		t.Fatalf("got\n  %s\nwant\n  %s", p.SQL, want)
	}

	params := p.Params()
	expect := map[string]any{
		"param_0": "name", "param_1": "name",
		"param_2": "%name%", "param_3": "name%", "param_4": "%name",
		"param_5": int64(100), "param_6": int64(100), "param_7": int64(0), "param_8": int64(0),
		"param_9": int64(0), "param_10": int64(100),
		"param_11": int64(1), "param_12": int64(2), "param_13": int64(3), "param_14": int64(4),
	}
	if !reflect.DeepEqual(params, expect) {
		t.Fatalf("params = %v, want %v", params, expect)
	}
}

func TestFilterNativeILike(t *testing.T) {
	p, err := compileFilter(t, testScope(t), Postgres, `{"name": {"first": {"_contains": "ann"}}}`)
	if err != nil {
		t.Fatal(err)
	}
	want := `"user"."nameFirst" ILIKE :param_0`
	if p.SQL != want {
		t.Fatalf("got %q, want %q", p.SQL, want)
	}
	if p.Bindings[0].Value != "%ann%" {
		t.Fatalf("expected wrapped operand, got %v", p.Bindings[0].Value)
	}
}

func TestFilterDottedKey(t *testing.T) {
	p, err := compileFilter(t, testScope(t), Generic, `{"name.first": {"_eq": "Ann"}}`)
	if err != nil {
		t.Fatal(err)
	}
	if p.SQL != "user.nameFirst = :param_0" {
		t.Fatalf("got %q", p.SQL)
	}
}

// --- Logical groups ---

func TestFilterOr(t *testing.T) {
	p, err := compileFilter(t, testScope(t), Generic, `{"_or": [{"age": {"_gte": 18}}, {"age": {"_lt": 10}}]}`)
	if err != nil {
		t.Fatal(err)
	}
	want := "(user.age >= :param_0 OR user.age < :param_1)"
	if p.SQL != want {
		t.Fatalf("got %q, want %q", p.SQL, want)
	}
}

func TestFilterNestedLogical(t *testing.T) {
	filter := `{"_or": [
		{"_and": [
			{"_or": [{"name": {"first": {"_eq": "a"}}}, {"name": {"first": {"_neq": "b"}}}]},
			{"age": {"_gte": 18}}
		]},
		{"age": {"_gt": 60}}
	]}`
	p, err := compileFilter(t, testScope(t), Generic, filter)
	if err != nil {
		t.Fatal(err)
	}
	want := "(((user.nameFirst = :param_0 OR user.nameFirst != :param_1) AND user.age >= :param_2) OR user.age > :param_3)"
	if p.SQL != want {
		t.Fatalf("got\n  %s\nwant\n  %s", p.SQL, want)
	}
}

func TestFilterOrAppliesToEveryOperator(t *testing.T) {
	p, err := compileFilter(t, testScope(t), Generic, `{"_or": [{"age": {"_lt": 10, "_gt": 60}}]}`)
	if err != nil {
		t.Fatal(err)
	}
	want := "(user.age < :param_0 OR user.age > :param_1)"
	if p.SQL != want {
		t.Fatalf("got %q, want %q", p.SQL, want)
	}
}

func TestFilterAcrossRelations(t *testing.T) {
	scope := testScope(t, "profile", "profile.photo")
	p, err := compileFilter(t, scope, Generic,
		`{"_or": [{"profile": {"gender": {"_eq": "f"}}}, {"photo": {"src": {"_null": false}}}]}`)
	if err != nil {
		t.Fatal(err)
	}
	want := "(profile.gender = :param_0 OR photo.src IS NOT NULL)"
	if p.SQL != want {
		t.Fatalf("got %q, want %q", p.SQL, want)
	}
	if len(p.Bindings) != 1 {
		t.Fatalf("expected 1 binding, got %v", p.Bindings)
	}
}

// --- Absent values ---

func TestFilterEmpty(t *testing.T) {
	for _, filter := range []string{
		`{}`,
		`{"age": null}`,
		`{"age": {"_in": []}}`,
		`{"_or": []}`,
		`{"_and": [{}, {"age": {}}]}`,
	} {
		p, err := compileFilter(t, testScope(t), Generic, filter)
		if err != nil {
			t.Errorf("%s: %v", filter, err)
			continue
		}
		if p != nil {
			t.Errorf("%s: expected no predicate, got %q", filter, p.SQL)
		}
	}
}

func TestFilterSkipsNullOperand(t *testing.T) {
	p, err := compileFilter(t, testScope(t), Generic, `{"age": {"_eq": null, "_gt": 3}}`)
	if err != nil {
		t.Fatal(err)
	}
	if p.SQL != "user.age > :param_0" {
		t.Fatalf("got %q", p.SQL)
	}
}

// --- Errors ---

func TestFilterUnknownField(t *testing.T) {
	fc := NewFilterCompiler(testScope(t), NewRegistry(Generic, nil), Generic)
	_, err := fc.Compile(mustFilter(t, `{"age": {"_gte": 1}, "bogus": {"_eq": 1}}`))

	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFieldError, got %v", err)
	}
	if unknown.Field != "bogus" {
		t.Fatalf("expected field bogus, got %q", unknown.Field)
	}

	// The failed compilation must not leak bindings into the next one.
	p, err := fc.Compile(mustFilter(t, `{"age": {"_lt": 5}}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Bindings) != 1 {
		t.Fatalf("expected 1 binding, got %v", p.Bindings)
	}
}

func TestFilterInvalid(t *testing.T) {
	tests := []struct {
		name   string
		filter string
	}{
		{"mixed logical and field keys", `{"_or": [{"age": {"_eq": 1}}], "age": {"_eq": 2}}`},
		{"unknown operator", `{"age": {"_like": 1}}`},
		{"operator with object value", `{"age": {"_eq": {"_gt": 1}}}`},
		{"between arity", `{"age": {"_between": [1, 2, 3]}}`},
		{"in scalar", `{"age": {"_in": 5}}`},
		{"logical scalar", `{"_or": 5}`},
		{"logical element scalar", `{"_or": [5]}`},
		{"comparison list", `{"age": {"_eq": [1, 2]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileFilter(t, testScope(t), Generic, tt.filter)
			var invalid *InvalidFilterError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidFilterError, got %v", err)
			}
		})
	}
}

// --- Placeholders ---

func TestFilterPlaceholdersNeverRepeat(t *testing.T) {
	fc := NewFilterCompiler(testScope(t), NewRegistry(Generic, nil), Generic)
	first, err := fc.Compile(mustFilter(t, `{"age": {"_gte": 1}}`))
	if err != nil {
		t.Fatal(err)
	}
	second, err := fc.Compile(mustFilter(t, `{"age": {"_lte": 2}}`))
	if err != nil {
		t.Fatal(err)
	}
	if first.Bindings[0].Name != "param_0" || second.Bindings[0].Name != "param_1" {
		t.Fatalf("got %v then %v", first.Bindings, second.Bindings)
	}
}

func TestFilterConcurrentCompilers(t *testing.T) {
	registry := NewRegistry(Generic, nil)
	entities := testEntities()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scope := NewScope("user", entities.Get("User"))
			fc := NewFilterCompiler(scope, registry, Generic)
			f := NewFilter(Entry{Key: "age", Value: NewFilter(Entry{Key: "_eq", Value: i})})
			p, err := fc.Compile(f)
			if err != nil {
				errs <- err
				return
			}
			if p.SQL != "user.age = :param_0" || p.Bindings[0].Value != i {
				errs <- fmt.Errorf("compiler %d: got %q %v", i, p.SQL, p.Bindings)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// --- Sqlizer ---

func TestPredicateToSql(t *testing.T) {
	p, err := compileFilter(t, testScope(t), Generic, `{"_or": [{"age": {"_between": [18, 30]}}, {"name": {"last": {"_empty": true}}}]}`)
	if err != nil {
		t.Fatal(err)
	}
	sql, args, err := condToSQL(p)
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT 1 WHERE ((user.age BETWEEN ? AND ? OR user.nameLast = ''))"
	if sql != want {
		t.Fatalf("got %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{int64(18), int64(30)}) {
		t.Fatalf("args = %v", args)
	}
}

func TestPredicateToSqlMissingBinding(t *testing.T) {
	p := &Predicate{SQL: "a = :param_0 AND b = :param_1", Bindings: []Binding{{"param_0", 1}}}
	if _, _, err := p.ToSql(); err == nil {
		t.Fatal("expected error for unbound placeholder")
	}
}

func TestPredicateToSqlIgnoresCastsAndLiterals(t *testing.T) {
	p := &Predicate{SQL: "a::text = :param_0 AND b = ':param_9'", Bindings: []Binding{{"param_0", "x"}}}
	sql, args, err := p.ToSql()
	if err != nil {
		t.Fatal(err)
	}
	if sql != "(a::text = ? AND b = ':param_9')" {
		t.Fatalf("got %q", sql)
	}
	if len(args) != 1 {
		t.Fatalf("args = %v", args)
	}

	// a quote inside an identifier does not open a literal
	p = &Predicate{
		SQL:      `"t"."o'x" = :param_0 AND "t"."a""b" = :param_1 AND c = 'it''s :param_9'`,
		Bindings: []Binding{{"param_0", 1}, {"param_1", 2}},
	}
	sql, args, err = p.ToSql()
	if err != nil {
		t.Fatal(err)
	}
	if want := `("t"."o'x" = ? AND "t"."a""b" = ? AND c = 'it''s :param_9')`; sql != want {
		t.Fatalf("got %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{1, 2}) {
		t.Fatalf("args = %v", args)
	}
}

func TestCompileQuoteInColumnName(t *testing.T) {
	entities := schema.NewCache()
	entities.Register(&schema.EntityDef{
		Name:  "Tag",
		Table: "tags",
		Attributes: []schema.AttributeDef{
			{Name: "o'x", Type: schema.AttrNumber},
			{Name: "a", Type: schema.AttrNumber},
		},
	})
	scope := NewScope("t", entities.Get("Tag"))

	pred, err := compileFilter(t, scope, Postgres, `{"o'x": {"_eq": 1}, "a": {"_eq": 2}}`)
	if err != nil {
		t.Fatal(err)
	}
	sql, args, err := pred.ToSql()
	if err != nil {
		t.Fatal(err)
	}
	if want := `("t"."o'x" = ? AND "t"."a" = ?)`; sql != want {
		t.Fatalf("got %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(args, []any{int64(1), int64(2)}) {
		t.Fatalf("args = %v", args)
	}
}
