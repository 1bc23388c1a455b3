package query

import (
	"fmt"
	"strings"

	"github.com/atlekbai/querydsl/internal/schema"
)

// Join is a left join requested by the relation compiler.
type Join struct {
	Parent   string // alias of the owning side
	Alias    string
	Relation *schema.RelationDef
	Target   *schema.EntityDef
}

// Property returns the "parent.relation" path the join was requested with.
func (j Join) Property() string { return j.Parent + Separator + j.Relation.Name }

// CompileRelations walks each relation path from the root alias and registers
// one join per newly seen alias (the path segment itself). Segments whose
// alias is already registered are skipped, so repeated prefixes join once.
func CompileRelations(scope *Scope, entities EntityLookup, paths []string) ([]Join, error) {
	root := scope.RootAlias()
	var joins []Join

	for _, path := range paths {
		path = strings.TrimPrefix(strings.TrimSpace(path), root+Separator)
		if path == "" {
			continue
		}

		last := root
		for _, segment := range strings.Split(path, Separator) {
			if scope.IsAlias(segment) {
				last = segment
				continue
			}

			owner := scope.Entity(last)
			rel := owner.Relation(segment)
			if rel == nil {
				return nil, &UnknownFieldError{Field: path, Alias: last}
			}
			target := entities.Get(rel.Target)
			if target == nil {
				return nil, fmt.Errorf("relation %s.%s: target entity %q not registered", owner.Name, rel.Name, rel.Target)
			}

			scope.Register(segment, target)
			joins = append(joins, Join{Parent: last, Alias: segment, Relation: rel, Target: target})
			last = segment
		}
	}
	return joins, nil
}
