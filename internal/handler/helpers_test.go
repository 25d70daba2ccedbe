package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/usergraph/internal/graph"
	"github.com/msomdec/usergraph/internal/handler"
	"github.com/msomdec/usergraph/internal/repository/sqlite"
	"github.com/msomdec/usergraph/internal/service"
)

type allowAll struct{}

func (allowAll) Allow(string) bool { return true }

type routerOpt func(*handler.RouterConfig)

func newTestServer(t *testing.T, opts ...routerOpt) (*httptest.Server, *sqlite.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	registrations := service.NewRegistrationService(db.Users(), 4, logger)
	schema, err := graph.NewSchema(registrations)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}

	cfg := handler.RouterConfig{
		GraphQL:             handler.NewGraphQLHandler(schema),
		Health:              handler.NewHealthHandler(db, time.Second),
		Limiter:             allowAll{},
		Logger:              logger,
		Environment:         "test",
		RequestTimeout:      5 * time.Second,
		MaxRequestBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv := httptest.NewServer(handler.NewRouter(cfg))
	t.Cleanup(srv.Close)
	return srv, db
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode body %s: %v", raw, err)
	}
}
