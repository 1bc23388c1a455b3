package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/atlekbai/querydsl/internal/schema"
)

const (
	MetadataServiceName = "querydsl.v1.MetadataService"

	ListEntitiesProcedure = "/" + MetadataServiceName + "/ListEntities"
	GetEntityProcedure    = "/" + MetadataServiceName + "/GetEntity"
	ReloadProcedure       = "/" + MetadataServiceName + "/Reload"
)

// Loader refreshes entity definitions from their source.
type Loader func(ctx context.Context, entities *schema.Cache) error

type EntitySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Alias string `json:"alias"`
	Table string `json:"table"`
}

type ListEntitiesRequest struct{}

type ListEntitiesResponse struct {
	Entities []EntitySummary `json:"entities"`
}

type GetEntityRequest struct {
	Name string `json:"name"`
}

func (r *GetEntityRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type AttributeMeta struct {
	Name     string `json:"name"`
	Column   string `json:"column"`
	Embedded string `json:"embedded,omitempty"`
	Type     string `json:"type,omitempty"`
}

type RelationMeta struct {
	Name          string `json:"name"`
	Target        string `json:"target"`
	LocalColumn   string `json:"local_column"`
	ForeignColumn string `json:"foreign_column"`
}

type GetEntityResponse struct {
	EntitySummary
	Attributes []AttributeMeta `json:"attributes"`
	Embeddeds  []string        `json:"embeddeds,omitempty"`
	Relations  []RelationMeta  `json:"relations,omitempty"`
	SoftDelete bool            `json:"soft_delete"`
}

type ReloadRequest struct{}

type ReloadResponse struct {
	EntityCount int `json:"entity_count"`
}

// MetadataService exposes the entity definitions queries are compiled against.
type MetadataService struct {
	entities *schema.Cache
	reload   Loader
}

// NewMetadataService serves entities. A nil reload disables Reload.
func NewMetadataService(entities *schema.Cache, reload Loader) *MetadataService {
	return &MetadataService{entities: entities, reload: reload}
}

func (s *MetadataService) RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler) {
	opts := handlerOptions(interceptors)
	mux := http.NewServeMux()
	mux.Handle(ListEntitiesProcedure, connect.NewUnaryHandler(ListEntitiesProcedure, s.ListEntities, opts...))
	mux.Handle(GetEntityProcedure, connect.NewUnaryHandler(GetEntityProcedure, s.GetEntity, opts...))
	mux.Handle(ReloadProcedure, connect.NewUnaryHandler(ReloadProcedure, s.Reload, opts...))
	return "/" + MetadataServiceName + "/", mux
}

func (s *MetadataService) ListEntities(ctx context.Context, req *connect.Request[ListEntitiesRequest]) (*connect.Response[ListEntitiesResponse], error) {
	names := s.entities.Names()
	resp := &ListEntitiesResponse{Entities: make([]EntitySummary, 0, len(names))}
	for _, name := range names {
		if e := s.entities.Get(name); e != nil {
			resp.Entities = append(resp.Entities, Summarize(e))
		}
	}
	return connect.NewResponse(resp), nil
}

func (s *MetadataService) GetEntity(ctx context.Context, req *connect.Request[GetEntityRequest]) (*connect.Response[GetEntityResponse], error) {
	e := s.entities.Get(req.Msg.Name)
	if e == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("%w: %q", ErrEntityNotFound, req.Msg.Name))
	}

	resp := &GetEntityResponse{
		EntitySummary: Summarize(e),
		Attributes:    make([]AttributeMeta, 0, len(e.Attributes)),
		SoftDelete:    e.DeletedAtColumn != "",
	}
	for _, a := range e.Attributes {
		resp.Attributes = append(resp.Attributes, AttributeMeta{
			Name:     a.Name,
			Column:   a.Column,
			Embedded: a.Embedded,
			Type:     string(a.Type),
		})
	}
	for _, g := range e.Embeddeds {
		resp.Embeddeds = append(resp.Embeddeds, g.Name)
	}
	for _, r := range e.Relations {
		resp.Relations = append(resp.Relations, RelationMeta(r))
	}
	return connect.NewResponse(resp), nil
}

func (s *MetadataService) Reload(ctx context.Context, req *connect.Request[ReloadRequest]) (*connect.Response[ReloadResponse], error) {
	if s.reload == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, fmt.Errorf("entity reload is not configured"))
	}
	if err := s.reload(ctx, s.entities); err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("reload entities: %w", err))
	}
	return connect.NewResponse(&ReloadResponse{EntityCount: s.entities.EntityCount()}), nil
}

// Summarize describes e for listings.
func Summarize(e *schema.EntityDef) EntitySummary {
	return EntitySummary{
		ID:    e.ID.String(),
		Name:  e.Name,
		Alias: RootAlias(e),
		Table: e.TableName(),
	}
}
