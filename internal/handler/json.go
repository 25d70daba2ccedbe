package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/msomdec/usergraph/internal/logger"
)

// errorBody mirrors the GraphQL error envelope so clients handle transport
// failures and resolver failures the same way.
type errorBody struct {
	Errors []errorMessage `json:"errors"`
}

type errorMessage struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.ContextRequestLogger(r.Context()).Error("write JSON response", slog.String("error", err.Error()))
	}
}

// writeError sends a GraphQL-shaped error response with the given status code.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorBody{Errors: []errorMessage{{Message: message}}})
}

// readJSON decodes the request body into the given destination.
func readJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
