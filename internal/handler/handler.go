package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atlekbai/querydsl/internal/query"
	"github.com/atlekbai/querydsl/internal/service"
)

// Querier runs compiled descriptions. *service.QueryService implements it.
type Querier interface {
	Run(ctx context.Context, entity string, desc *query.Description) (*service.ListResponse, error)
	Count(ctx context.Context, entity string, desc *query.Description) (int64, error)
	Explain(entity string, desc *query.Description) (*service.CompileResponse, error)
}

type Handler struct {
	svc Querier
}

func New(svc Querier) *Handler {
	return &Handler{svc: svc}
}

// Routes registers the REST endpoints on r.
func (h *Handler) Routes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/{entity}", h.List).Methods(http.MethodGet)
	api.HandleFunc("/{entity}/query", h.Query).Methods(http.MethodPost)
	api.HandleFunc("/{entity}/count", h.Count).Methods(http.MethodGet)
	api.HandleFunc("/{entity}/sql", h.SQL).Methods(http.MethodGet)
	api.HandleFunc("/{entity}/{id}", h.GetByID).Methods(http.MethodGet)
}

// List handles GET /api/{entity}?select=...&filter=...
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	desc, err := query.ParseValues(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), "")
		return
	}
	h.run(w, r, desc)
}

// Query handles POST /api/{entity}/query with a JSON description body.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var desc query.Description
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
		return
	}
	h.run(w, r, &desc)
}

// Count handles GET /api/{entity}/count. It always returns an exact count.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	desc, err := query.ParseValues(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), "")
		return
	}

	count, err := h.svc.Count(r.Context(), mux.Vars(r)["entity"], desc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// GetByID handles GET /api/{entity}/{id}. select and relations apply; the
// filter is replaced by an id match.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	desc, err := query.ParseValues(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), "")
		return
	}
	desc.Filter = query.NewFilter(query.Entry{Key: "id", Value: query.NewFilter(query.Entry{Key: "_eq", Value: vars["id"]})})
	desc.Paginate = false

	resp, err := h.svc.Run(r.Context(), vars["entity"], desc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(resp.Results) == 0 {
		writeError(w, http.StatusNotFound, "RECORD_NOT_FOUND", "Record not found", "")
		return
	}
	writeJSON(w, http.StatusOK, resp.Results[0])
}

// SQL handles GET /api/{entity}/sql and returns the generated statements
// without running them.
func (h *Handler) SQL(w http.ResponseWriter, r *http.Request) {
	desc, err := query.ParseValues(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), "")
		return
	}

	resp, err := h.svc.Explain(mux.Vars(r)["entity"], desc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, desc *query.Description) {
	resp, err := h.svc.Run(r.Context(), mux.Vars(r)["entity"], desc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
