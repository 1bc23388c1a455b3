package schema

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type AttributeType string

const (
	AttrText     AttributeType = "TEXT"
	AttrNumber   AttributeType = "NUMBER"
	AttrBoolean  AttributeType = "BOOLEAN"
	AttrDate     AttributeType = "DATE"
	AttrDatetime AttributeType = "DATETIME"
	AttrUUID     AttributeType = "UUID"
	AttrRelation AttributeType = "RELATION"
)

// AttributeDef is a declared attribute of an entity.
// Name is the declared (possibly dotted) name, e.g. "name.first".
// Column is the flattened storage column, e.g. "nameFirst".
type AttributeDef struct {
	Name     string        `yaml:"name"`
	Column   string        `yaml:"column"`
	Embedded string        `yaml:"embedded,omitempty"`
	Type     AttributeType `yaml:"type,omitempty"`
}

// EmbeddedDef groups attributes that are addressed through a common prefix
// but stored as flattened columns on the owning entity.
type EmbeddedDef struct {
	Name       string   `yaml:"name"`
	Attributes []string `yaml:"attributes"`
}

// RelationDef describes a joinable relation. The join condition is
// target.ForeignColumn = owner.LocalColumn.
type RelationDef struct {
	Name          string `yaml:"name"`
	Target        string `yaml:"target"`
	LocalColumn   string `yaml:"local_column"`
	ForeignColumn string `yaml:"foreign_column"`
}

type EntityDef struct {
	ID              uuid.UUID      `yaml:"-"`
	Name            string         `yaml:"name"`
	Schema          string         `yaml:"schema,omitempty"`
	Table           string         `yaml:"table"`
	Attributes      []AttributeDef `yaml:"attributes"`
	Embeddeds       []EmbeddedDef  `yaml:"embeddeds,omitempty"`
	Relations       []RelationDef  `yaml:"relations,omitempty"`
	DeletedAtColumn string         `yaml:"deleted_at_column,omitempty"`
}

// TableName returns the quoted, optionally schema-qualified table name.
func (e *EntityDef) TableName() string {
	if e.Schema != "" {
		return QuoteIdent(e.Schema) + "." + QuoteIdent(e.Table)
	}
	return QuoteIdent(e.Table)
}

// Attribute finds an attribute whose declared name or storage column equals name.
func (e *EntityDef) Attribute(name string) *AttributeDef {
	for i := range e.Attributes {
		a := &e.Attributes[i]
		if a.Name == name || a.Column == name {
			return a
		}
	}
	return nil
}

// Embedded returns the embedded group with the given name, or nil.
func (e *EntityDef) Embedded(name string) *EmbeddedDef {
	for i := range e.Embeddeds {
		if e.Embeddeds[i].Name == name {
			return &e.Embeddeds[i]
		}
	}
	return nil
}

// Relation returns the relation with the given name, or nil.
func (e *EntityDef) Relation(name string) *RelationDef {
	for i := range e.Relations {
		if e.Relations[i].Name == name {
			return &e.Relations[i]
		}
	}
	return nil
}

// normalize fills in derived fields: embedded membership and default columns.
func (e *EntityDef) normalize() {
	if e.ID == uuid.Nil {
		e.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(e.Name))
	}
	for i := range e.Attributes {
		a := &e.Attributes[i]
		if a.Column == "" {
			a.Column = flatten(a.Name)
		}
		if a.Embedded == "" {
			if dot := strings.LastIndexByte(a.Name, '.'); dot > 0 {
				a.Embedded = a.Name[:dot]
			}
		}
		if a.Embedded != "" {
			g := e.Embedded(a.Embedded)
			if g == nil {
				e.Embeddeds = append(e.Embeddeds, EmbeddedDef{Name: a.Embedded})
				g = &e.Embeddeds[len(e.Embeddeds)-1]
			}
			if !slices.Contains(g.Attributes, a.Name) {
				g.Attributes = append(g.Attributes, a.Name)
			}
		}
	}
}

// flatten turns "name.first" into "nameFirst".
func flatten(name string) string {
	parts := strings.Split(name, ".")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}
