package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/go-cmp/cmp"
	"github.com/msomdec/usergraph/internal/config"
	"github.com/msomdec/usergraph/internal/domain"
	"github.com/msomdec/usergraph/internal/repository"
	"github.com/msomdec/usergraph/internal/server"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testApp struct {
	baseURL string
	db      domain.Database
	logs    *syncBuffer
	stop    func() error
}

// startTestApp runs the full server on an ephemeral port against a fresh
// SQLite database. The returned stop function is idempotent and also
// registered with t.Cleanup.
func startTestApp(t *testing.T, overrides env.EnvSet) *testApp {
	t.Helper()

	es := env.EnvSet{
		"ENVIRONMENT":    "test",
		"HOST":           "127.0.0.1",
		"PORT":           "0",
		"LOG_LEVEL":      "debug",
		"BCRYPT_COST":    "4",
		"DATABASE_URL":   filepath.Join(t.TempDir(), "test.db"),
		"RATE_LIMIT_RPS": "0",
	}
	for k, v := range overrides {
		es[k] = v
	}
	cfg, err := config.Parse(es)
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}

	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Options{Driver: cfg.DatabaseDriver, URL: cfg.DatabaseURL})
	if err != nil {
		t.Fatalf("repository.Open: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		t.Fatalf("Migrate: %v", err)
	}

	logs := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv, err := server.New(cfg, db, logger)
	if err != nil {
		db.Close()
		t.Fatalf("server.New: %v", err)
	}
	addr, err := srv.Listen()
	if err != nil {
		db.Close()
		t.Fatalf("Listen: %v", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(serveCtx) }()

	var (
		once    sync.Once
		stopErr error
	)
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case stopErr = <-done:
			case <-time.After(10 * time.Second):
				stopErr = fmt.Errorf("server did not shut down")
			}
			if err := db.Close(); err != nil && stopErr == nil {
				stopErr = err
			}
		})
		return stopErr
	}
	t.Cleanup(func() {
		if err := stop(); err != nil {
			t.Errorf("stop: %v", err)
		}
	})

	return &testApp{
		baseURL: "http://" + addr.String(),
		db:      db,
		logs:    logs,
		stop:    stop,
	}
}

type registerResult struct {
	Data struct {
		Register *[]domain.FieldError `json:"register"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *testApp) register(t *testing.T, email, password string) registerResult {
	t.Helper()
	out, err := a.tryRegister(email, password)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// tryRegister is safe to call from goroutines other than the test's.
func (a *testApp) tryRegister(email, password string) (registerResult, error) {
	var out registerResult
	mutation := fmt.Sprintf(`mutation { register(email: %q, password: %q) { path message } }`, email, password)
	body, err := json.Marshal(map[string]string{"query": mutation})
	if err != nil {
		return out, fmt.Errorf("marshal: %w", err)
	}

	resp, err := http.Post(a.baseURL+"/graphql", "application/json", bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("POST /graphql: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("expected 200, got %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Errors) != 0 {
		return out, fmt.Errorf("unexpected GraphQL errors: %+v", out.Errors)
	}
	return out, nil
}

func TestServer_RegisterUser(t *testing.T) {
	app := startTestApp(t, nil)
	const email, password = "bob@bob.com", "bobby"

	out := app.register(t, email, password)
	if out.Data.Register != nil {
		t.Fatalf("expected null register, got %+v", *out.Data.Register)
	}

	users, err := app.db.Users().Find(context.Background(), domain.UserFilter{Email: email})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == password {
		t.Fatal("password stored in clear text")
	}

	out = app.register(t, email, password)
	want := []domain.FieldError{{Path: "email", Message: "already taken"}}
	if out.Data.Register == nil {
		t.Fatal("expected duplicate error, got null")
	}
	if diff := cmp.Diff(want, *out.Data.Register); diff != "" {
		t.Fatalf("duplicate mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_RegisterValidation(t *testing.T) {
	app := startTestApp(t, nil)

	tests := []struct {
		name     string
		email    string
		password string
		want     []domain.FieldError
	}{
		{
			name:     "bad email",
			email:    "ts",
			password: "bobby",
			want: []domain.FieldError{
				{Path: "email", Message: "email must be at least 3 characters"},
				{Path: "email", Message: "email must be a valid email"},
			},
		},
		{
			name:     "bad email and password",
			email:    "ts",
			password: "sp",
			want: []domain.FieldError{
				{Path: "email", Message: "email must be at least 3 characters"},
				{Path: "email", Message: "email must be a valid email"},
				{Path: "password", Message: "password must be at least 3 characters"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := app.register(t, tt.email, tt.password)
			if out.Data.Register == nil {
				t.Fatal("expected field errors, got null")
			}
			if diff := cmp.Diff(tt.want, *out.Data.Register); diff != "" {
				t.Fatalf("register mismatch (-want +got):\n%s", diff)
			}
		})
	}

	users, err := app.db.Users().Find(context.Background(), domain.UserFilter{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected no users after validation failures, got %d", len(users))
	}
}

func TestServer_ConcurrentRegistrations(t *testing.T) {
	app := startTestApp(t, nil)

	const workers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []registerResult
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := app.tryRegister("race@example.com", "password")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			results = append(results, out)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var successes int
	for _, r := range results {
		if r.Data.Register == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}
}

func TestServer_ShutdownLogsPort(t *testing.T) {
	app := startTestApp(t, nil)

	resp, err := http.Get(app.baseURL + "/health/ready")
	if err != nil {
		t.Fatalf("GET /health/ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if err := app.stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	port := app.baseURL[strings.LastIndex(app.baseURL, ":")+1:]
	var found bool
	for _, line := range strings.Split(strings.TrimSpace(app.logs.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["msg"] == "server shutting down" && fmt.Sprint(entry["port"]) == port {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected shutdown log with port %s in:\n%s", port, app.logs.String())
	}

	if _, err := http.Get(app.baseURL + "/health/live"); err == nil {
		t.Fatal("expected connection error after shutdown")
	}
}

// newTestServer builds a server over a fresh SQLite database without binding
// a port. Close is registered as a cleanup.
func newTestServer(t *testing.T, overrides env.EnvSet) *server.Server {
	t.Helper()

	es := env.EnvSet{"DATABASE_URL": filepath.Join(t.TempDir(), "x.db")}
	for k, v := range overrides {
		es[k] = v
	}
	cfg, err := config.Parse(es)
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	db, err := repository.Open(context.Background(), repository.Options{Driver: cfg.DatabaseDriver, URL: cfg.DatabaseURL})
	if err != nil {
		t.Fatalf("repository.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := server.New(cfg, db, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestServer_ServeWithoutListen(t *testing.T) {
	srv := newTestServer(t, nil)

	if err := srv.Serve(context.Background()); err == nil {
		t.Fatal("expected error when serving before Listen")
	}
	if srv.Addr() != nil {
		t.Fatal("expected nil address before Listen")
	}
}

func TestServer_FailedStartDoesNotLeakGoroutines(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer occupied.Close()

	cfg, err := config.Parse(env.EnvSet{
		"DATABASE_URL":   filepath.Join(t.TempDir(), "x.db"),
		"HOST":           "127.0.0.1",
		"PORT":           strconv.Itoa(occupied.Addr().(*net.TCPAddr).Port),
		"RATE_LIMIT_RPS": "10",
	})
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	db, err := repository.Open(context.Background(), repository.Options{Driver: cfg.DatabaseDriver, URL: cfg.DatabaseURL})
	if err != nil {
		t.Fatalf("repository.Open: %v", err)
	}
	defer db.Close()

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		srv, err := server.New(cfg, db, slog.New(slog.DiscardHandler))
		if err != nil {
			t.Fatalf("server.New: %v", err)
		}
		if err := srv.Start(context.Background()); err == nil {
			t.Fatal("expected Start to fail on an occupied port")
		}
	}

	// Sweep goroutines exit asynchronously once their limiter is closed.
	const slack = 2
	after := runtime.NumGoroutine()
	for deadline := time.Now().Add(2 * time.Second); after > before+slack && time.Now().Before(deadline); {
		time.Sleep(10 * time.Millisecond)
		after = runtime.NumGoroutine()
	}
	if after > before+slack {
		t.Fatalf("goroutines grew from %d to %d after failed starts", before, after)
	}
}

func TestServer_CloseReleasesUnservedListener(t *testing.T) {
	srv := newTestServer(t, env.EnvSet{"HOST": "127.0.0.1", "PORT": "0"})

	addr, err := srv.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	ln, err := net.Listen("tcp", addr.String())
	if err != nil {
		t.Fatalf("expected %s to be free after Close: %v", addr, err)
	}
	ln.Close()
}

func TestServer_CloseAfterServe(t *testing.T) {
	srv := newTestServer(t, env.EnvSet{"HOST": "127.0.0.1", "PORT": "0"})
	if _, err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.Serve(ctx); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("Close after Serve: %v", err)
	}
}
