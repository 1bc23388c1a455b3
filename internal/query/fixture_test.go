package query

import (
	"testing"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/querydsl/internal/schema"
)

// --- Helper constructors ---

// testEntities registers User -> Profile -> Image:
//
//	User:    id, age, profile (profileId), name.first (nameFirst), name.last (nameLast)
//	Profile: id, gender, photo (photoId)
//	Image:   id, src, alt
func testEntities() *schema.Cache {
	c := schema.NewCache()
	c.Register(&schema.EntityDef{
		Name:  "User",
		Table: "users",
		Attributes: []schema.AttributeDef{
			{Name: "id", Type: schema.AttrUUID},
			{Name: "age", Type: schema.AttrNumber},
			{Name: "profile", Column: "profileId", Type: schema.AttrRelation},
			{Name: "name.first", Type: schema.AttrText},
			{Name: "name.last", Type: schema.AttrText},
		},
		Relations: []schema.RelationDef{
			{Name: "profile", Target: "Profile", LocalColumn: "profileId", ForeignColumn: "id"},
		},
	})
	c.Register(&schema.EntityDef{
		Name:  "Profile",
		Table: "profiles",
		Attributes: []schema.AttributeDef{
			{Name: "id", Type: schema.AttrUUID},
			{Name: "gender", Type: schema.AttrText},
			{Name: "photo", Column: "photoId", Type: schema.AttrRelation},
		},
		Relations: []schema.RelationDef{
			{Name: "photo", Target: "Image", LocalColumn: "photoId", ForeignColumn: "id"},
		},
	})
	c.Register(&schema.EntityDef{
		Name:  "Image",
		Table: "images",
		Attributes: []schema.AttributeDef{
			{Name: "id", Type: schema.AttrUUID},
			{Name: "src", Type: schema.AttrText},
			{Name: "alt", Type: schema.AttrText},
		},
	})
	return c
}

// testScope returns a scope rooted at "user" with the given relations joined.
func testScope(t *testing.T, relations ...string) *Scope {
	t.Helper()
	entities := testEntities()
	scope := NewScope("user", entities.Get("User"))
	if _, err := CompileRelations(scope, entities, relations); err != nil {
		t.Fatal(err)
	}
	return scope
}

func mustFilter(t *testing.T, s string) *Filter {
	t.Helper()
	f, err := ParseFilter(s)
	if err != nil {
		t.Fatalf("parse filter %s: %v", s, err)
	}
	return f
}

// condToSQL renders a condition inside a trivial SELECT.
func condToSQL(cond sq.Sqlizer) (string, []any, error) {
	return sq.Select("1").Where(cond).ToSql()
}
