package handler

import (
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"

	"github.com/atlekbai/querydsl/internal/service"
)

// ErrorResponse is the body of every non-2xx REST response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// writeServiceError maps a service failure to its HTTP status and error code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch service.Code(err) {
	case connect.CodeNotFound:
		writeError(w, http.StatusNotFound, "ENTITY_NOT_FOUND", "Entity not found", err.Error())
	case connect.CodeInvalidArgument:
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), "")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Query failed", err.Error())
	}
}
