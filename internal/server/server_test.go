package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/querydsl/internal/handler"
	"github.com/atlekbai/querydsl/internal/logger"
	"github.com/atlekbai/querydsl/internal/middleware"
	"github.com/atlekbai/querydsl/internal/query"
	"github.com/atlekbai/querydsl/internal/schema"
	"github.com/atlekbai/querydsl/internal/service"
)

func newTestHandler(t *testing.T) (http.Handler, *bytes.Buffer) {
	t.Helper()
	entities := schema.NewCache()
	require.NoError(t, entities.LoadFile("../schema/testdata/entities.yaml"))

	var buf bytes.Buffer
	log := logger.New(&buf, logger.Config{Level: "DEBUG"})

	qs := service.NewQueryService(nil, entities, query.Options{}, 0, log)
	ms := service.NewMetadataService(entities, nil)
	return NewHandler(log, handler.New(qs), qs, ms), &buf
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewHandlerREST(t *testing.T) {
	h, buf := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/User/sql?select=id", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, rec.Body.String(), `"entity":"User"`)
	assert.Contains(t, buf.String(), `"msg":"http request"`)
}

func TestNewHandlerConnect(t *testing.T) {
	h, buf := newTestHandler(t)

	rec := post(h, service.ListEntitiesProcedure, `{}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"name":"Image"`)

	rec = post(h, service.CompileProcedure, `{"entity":"User","select":["id"]}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"sql":`)
	assert.Contains(t, buf.String(), `"procedure":"/querydsl.v1.QueryService/Compile"`)
}

func TestNewHandlerConnectValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := post(h, service.CompileProcedure, `{"select":["id"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "entity is required")

	rec = post(h, service.GetEntityProcedure, `{"name":"Nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
