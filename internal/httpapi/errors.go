package httpapi

import (
	"encoding/json"
	"net/http"

	"mailmind/internal/download"
	"mailmind/internal/engine"
	"mailmind/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeServiceError maps well-known subsystem errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case download.IsModelNotFound(err):
		return http.StatusNotFound
	case engine.IsModelNotFound(err):
		return http.StatusNotFound
	case engine.IsNoCategories(err):
		return http.StatusBadRequest
	case engine.IsClassificationFailed(err):
		return http.StatusUnprocessableEntity
	case engine.IsEngineUnavailable(err):
		return http.StatusServiceUnavailable
	case download.IsIntegrityCheckFailed(err):
		return http.StatusBadGateway
	case download.IsDownloadCancelled(err):
		return http.StatusConflict
	case download.IsDownloadFailed(err):
		return http.StatusBadGateway
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
