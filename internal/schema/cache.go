package schema

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

const loadEntitiesQuery = `
SELECT
	e.id, e.name, e.storage_schema, e.storage_table, e.deleted_at_column,
	a.name, a.storage_column, a.embedded, a.type
FROM metadata.entities e
LEFT JOIN metadata.attributes a ON a.entity_id = e.id
ORDER BY e.name, a.position
`

const loadRelationsQuery = `
SELECT e.name, r.name, t.name, r.local_column, r.foreign_column
FROM metadata.relations r
JOIN metadata.entities e ON e.id = r.entity_id
JOIN metadata.entities t ON t.id = r.target_id
ORDER BY e.name, r.position
`

// Cache holds entity definitions by name. It is safe for concurrent reads;
// a reload swaps the whole set atomically.
type Cache struct {
	mu       sync.RWMutex
	entities map[string]*EntityDef
	byID     map[uuid.UUID]*EntityDef
}

func NewCache() *Cache {
	return &Cache{
		entities: make(map[string]*EntityDef),
		byID:     make(map[uuid.UUID]*EntityDef),
	}
}

// Load reads entity metadata from the metadata.* tables.
func (c *Cache) Load(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, loadEntitiesQuery)
	if err != nil {
		return fmt.Errorf("schema cache load: %w", err)
	}
	defer rows.Close()

	entities := make(map[string]*EntityDef)
	var order []string

	for rows.Next() {
		var (
			eID        uuid.UUID
			eName      string
			eSchema    *string
			eTable     string
			eDeletedAt *string
			aName      *string
			aColumn    *string
			aEmbedded  *string
			aType      *string
		)

		err := rows.Scan(
			&eID, &eName, &eSchema, &eTable, &eDeletedAt,
			&aName, &aColumn, &aEmbedded, &aType,
		)
		if err != nil {
			return fmt.Errorf("schema cache scan: %w", err)
		}

		ent, exists := entities[eName]
		if !exists {
			ent = &EntityDef{ID: eID, Name: eName, Table: eTable}
			if eSchema != nil {
				ent.Schema = *eSchema
			}
			if eDeletedAt != nil {
				ent.DeletedAtColumn = *eDeletedAt
			}
			entities[eName] = ent
			order = append(order, eName)
		}

		if aName != nil {
			attr := AttributeDef{Name: *aName}
			if aColumn != nil {
				attr.Column = *aColumn
			}
			if aEmbedded != nil {
				attr.Embedded = *aEmbedded
			}
			if aType != nil {
				attr.Type = AttributeType(*aType)
			}
			ent.Attributes = append(ent.Attributes, attr)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("schema cache rows: %w", err)
	}

	relRows, err := pool.Query(ctx, loadRelationsQuery)
	if err != nil {
		return fmt.Errorf("schema cache relations: %w", err)
	}
	defer relRows.Close()

	for relRows.Next() {
		var owner string
		var rel RelationDef
		if err := relRows.Scan(&owner, &rel.Name, &rel.Target, &rel.LocalColumn, &rel.ForeignColumn); err != nil {
			return fmt.Errorf("schema cache scan relation: %w", err)
		}
		if ent := entities[owner]; ent != nil {
			ent.Relations = append(ent.Relations, rel)
		}
	}
	if err := relRows.Err(); err != nil {
		return fmt.Errorf("schema cache relation rows: %w", err)
	}

	defs := make([]*EntityDef, 0, len(order))
	for _, name := range order {
		defs = append(defs, entities[name])
	}
	c.replace(defs)
	return nil
}

// definitionsFile is the YAML layout accepted by LoadFile.
type definitionsFile struct {
	Entities []*EntityDef `yaml:"entities"`
}

// LoadFile reads entity definitions from a YAML file.
func (c *Cache) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("schema file: %w", err)
	}
	return c.LoadYAML(data)
}

// LoadYAML reads entity definitions from YAML bytes.
func (c *Cache) LoadYAML(data []byte) error {
	var f definitionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("schema yaml: %w", err)
	}
	for _, e := range f.Entities {
		if e.Name == "" || e.Table == "" {
			return fmt.Errorf("schema yaml: entity requires name and table")
		}
	}
	c.replace(f.Entities)
	return nil
}

// Register adds or replaces a single entity definition.
func (c *Cache) Register(e *EntityDef) {
	e.normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	if old := c.entities[e.Name]; old != nil {
		delete(c.byID, old.ID)
	}
	c.entities[e.Name] = e
	c.byID[e.ID] = e
}

func (c *Cache) replace(defs []*EntityDef) {
	entities := make(map[string]*EntityDef, len(defs))
	byID := make(map[uuid.UUID]*EntityDef, len(defs))
	for _, e := range defs {
		e.normalize()
		entities[e.Name] = e
		byID[e.ID] = e
	}

	c.mu.Lock()
	c.entities = entities
	c.byID = byID
	c.mu.Unlock()
}

func (c *Cache) Get(name string) *EntityDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entities[name]
}

// GetByID finds an entity definition by its UUID.
func (c *Cache) GetByID(id uuid.UUID) *EntityDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID[id]
}

// Names returns the registered entity names, sorted.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entities))
	for name := range c.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntityCount returns the number of loaded entities.
func (c *Cache) EntityCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}
