package schema

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.LoadFile(filepath.Join("testdata", "entities.yaml")))

	assert.Equal(t, 3, c.EntityCount())
	assert.Equal(t, []string{"Image", "Profile", "User"}, c.Names())

	user := c.Get("User")
	require.NotNil(t, user)
	assert.Equal(t, `"app"."users"`, user.TableName())
	assert.Equal(t, "deletedAt", user.DeletedAtColumn)

	first := user.Attribute("name.first")
	require.NotNil(t, first)
	assert.Equal(t, "nameFirst", first.Column)
	assert.Equal(t, "name", first.Embedded)
	assert.Same(t, first, user.Attribute("nameFirst"))

	group := user.Embedded("name")
	require.NotNil(t, group)
	assert.Equal(t, []string{"name.first", "name.last"}, group.Attributes)

	rel := user.Relation("profile")
	require.NotNil(t, rel)
	assert.Equal(t, "Profile", rel.Target)
	assert.Equal(t, "profileId", rel.LocalColumn)
	assert.Equal(t, "id", rel.ForeignColumn)
}

func TestLoadYAMLRequiresNameAndTable(t *testing.T) {
	c := NewCache()
	err := c.LoadYAML([]byte("entities:\n  - name: Orphan\n"))
	assert.Error(t, err)
	assert.Zero(t, c.EntityCount())
}

func TestLoadYAMLReplacesEntities(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.LoadYAML([]byte("entities:\n  - {name: A, table: a}\n  - {name: B, table: b}\n")))
	require.NoError(t, c.LoadYAML([]byte("entities:\n  - {name: C, table: c}\n")))

	assert.Equal(t, []string{"C"}, c.Names())
	assert.Nil(t, c.Get("A"))
}

func TestRegisterDerivesStableID(t *testing.T) {
	c := NewCache()
	c.Register(&EntityDef{Name: "User", Table: "users"})
	first := c.Get("User")
	require.NotNil(t, first)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Same(t, first, c.GetByID(first.ID))

	c.Register(&EntityDef{Name: "User", Table: "people"})
	second := c.Get("User")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "people", c.GetByID(second.ID).Table)
}

func TestFlatten(t *testing.T) {
	tests := map[string]string{
		"id":              "id",
		"name.first":      "nameFirst",
		"address.geo.lat": "addressGeoLat",
	}
	for in, want := range tests {
		assert.Equal(t, want, flatten(in), in)
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, QuoteIdent("users"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}
