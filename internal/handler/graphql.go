package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/msomdec/usergraph/internal/graph"
	"github.com/msomdec/usergraph/internal/view"
)

// GraphQLHandler executes GraphQL requests against a schema.
type GraphQLHandler struct {
	schema graphql.Schema
}

// NewGraphQLHandler creates a new GraphQLHandler.
func NewGraphQLHandler(schema graphql.Schema) *GraphQLHandler {
	return &GraphQLHandler{schema: schema}
}

// HandleQuery executes a query or mutation.
// POST /graphql
// Request:  {"query":"...","variables":{...},"operationName":"..."}
//
//	or a raw document with Content-Type application/graphql
//
// Response: {"data":{...},"errors":[...]}
func (h *GraphQLHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := parseGraphQLRequest(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "Request body too large.")
			return
		}
		writeError(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, "Missing query.")
		return
	}

	result := graph.Execute(r.Context(), h.schema, req)
	writeJSON(w, r, http.StatusOK, result)
}

// HandlePlayground renders the GraphiQL page.
// GET /graphql
func (h *GraphQLHandler) HandlePlayground(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	view.Playground("usergraph", r.URL.Path).Render(r.Context(), w)
}

func parseGraphQLRequest(r *http.Request) (graph.Request, error) {
	var req graph.Request

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/graphql" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return req, err
		}
		req.Query = string(body)
		return req, nil
	}

	err := readJSON(r, &req)
	return req, err
}
