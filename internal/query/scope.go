package query

import (
	"github.com/atlekbai/querydsl/internal/schema"
)

// Metadata is the entity metadata lookup the resolver consumes. It is keyed
// by alias: the root alias or any join alias already registered.
type Metadata interface {
	RootAlias() string
	IsAlias(name string) bool
	Attributes(alias string) []schema.AttributeDef
	Embeddeds(alias string) []schema.EmbeddedDef
}

// EntityLookup finds entity definitions by name. *schema.Cache implements it.
type EntityLookup interface {
	Get(name string) *schema.EntityDef
}

// Scope is the set of aliases known to one compilation, in registration order.
// The relation compiler populates it before select, sort and filter run.
type Scope struct {
	root    string
	order   []string
	targets map[string]*schema.EntityDef
}

func NewScope(rootAlias string, root *schema.EntityDef) *Scope {
	return &Scope{
		root:    rootAlias,
		order:   []string{rootAlias},
		targets: map[string]*schema.EntityDef{rootAlias: root},
	}
}

func (s *Scope) RootAlias() string { return s.root }

func (s *Scope) IsAlias(name string) bool {
	_, ok := s.targets[name]
	return ok
}

// Register binds alias to entity. It reports false if the alias is taken;
// the first registration wins.
func (s *Scope) Register(alias string, e *schema.EntityDef) bool {
	if s.IsAlias(alias) {
		return false
	}
	s.targets[alias] = e
	s.order = append(s.order, alias)
	return true
}

// Entity returns the entity bound to alias, or nil.
func (s *Scope) Entity(alias string) *schema.EntityDef {
	return s.targets[alias]
}

// Aliases returns the registered aliases, root first.
func (s *Scope) Aliases() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Scope) Attributes(alias string) []schema.AttributeDef {
	if e := s.targets[alias]; e != nil {
		return e.Attributes
	}
	return nil
}

func (s *Scope) Embeddeds(alias string) []schema.EmbeddedDef {
	if e := s.targets[alias]; e != nil {
		return e.Embeddeds
	}
	return nil
}
