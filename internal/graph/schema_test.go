package graph_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/msomdec/usergraph/internal/domain"
	"github.com/msomdec/usergraph/internal/graph"
)

type fakeRegistrar struct {
	errs  []domain.FieldError
	err   error
	calls []string
}

func (f *fakeRegistrar) Register(_ context.Context, email, password string) ([]domain.FieldError, error) {
	f.calls = append(f.calls, email+"/"+password)
	return f.errs, f.err
}

type registerResponse struct {
	Data struct {
		Register *[]domain.FieldError `json:"register"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func execute(t *testing.T, reg graph.Registrar, req graph.Request) registerResponse {
	t.Helper()
	schema, err := graph.NewSchema(reg)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	result := graph.Execute(context.Background(), schema, req)
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var resp registerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal result %s: %v", raw, err)
	}
	return resp
}

const registerMutation = `mutation { register(email: "bob@bob.com", password: "bobby") { path message } }`

func TestRegister_Success(t *testing.T) {
	reg := &fakeRegistrar{}
	resp := execute(t, reg, graph.Request{Query: registerMutation})

	if len(resp.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", resp.Errors)
	}
	if resp.Data.Register != nil {
		t.Fatalf("expected null register, got %+v", *resp.Data.Register)
	}
	if diff := cmp.Diff([]string{"bob@bob.com/bobby"}, reg.calls); diff != "" {
		t.Fatalf("registrar calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRegister_FieldErrors(t *testing.T) {
	want := []domain.FieldError{
		{Path: "email", Message: "email must be at least 3 characters"},
		{Path: "email", Message: "email must be a valid email"},
	}
	reg := &fakeRegistrar{errs: want}
	resp := execute(t, reg, graph.Request{Query: registerMutation})

	if len(resp.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", resp.Errors)
	}
	if resp.Data.Register == nil {
		t.Fatal("expected register errors, got null")
	}
	if diff := cmp.Diff(want, *resp.Data.Register); diff != "" {
		t.Fatalf("register mismatch (-want +got):\n%s", diff)
	}
}

func TestRegister_InfrastructureErrorIsMasked(t *testing.T) {
	reg := &fakeRegistrar{err: errors.New("dial tcp 10.0.0.1:5432: connection refused")}
	resp := execute(t, reg, graph.Request{Query: registerMutation})

	if len(resp.Errors) != 1 || resp.Errors[0].Message != graph.ErrInternal.Error() {
		t.Fatalf("expected single masked error, got %+v", resp.Errors)
	}
	if resp.Data.Register != nil {
		t.Fatalf("expected null register, got %+v", *resp.Data.Register)
	}
}

func TestRegister_Variables(t *testing.T) {
	reg := &fakeRegistrar{}
	execute(t, reg, graph.Request{
		Query:     `mutation Register($email: String!, $password: String!) { register(email: $email, password: $password) { path message } }`,
		Variables: map[string]any{"email": "a@b.co", "password": "secret"},
	})

	if diff := cmp.Diff([]string{"a@b.co/secret"}, reg.calls); diff != "" {
		t.Fatalf("registrar calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRegister_MissingArgument(t *testing.T) {
	reg := &fakeRegistrar{}
	resp := execute(t, reg, graph.Request{Query: `mutation { register(email: "bob@bob.com") { path } }`})

	if len(resp.Errors) == 0 {
		t.Fatal("expected a validation error for the missing password argument")
	}
	if len(reg.calls) != 0 {
		t.Fatalf("registrar should not be called, got %v", reg.calls)
	}
}

func TestHello(t *testing.T) {
	schema, err := graph.NewSchema(&fakeRegistrar{})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}

	tests := map[string]string{
		`{ hello }`:                 `Hello World`,
		`{ hello(name: "bob") }`:    `Hello bob`,
		`query { hello(name: "") }`: `Hello World`,
	}
	for query, want := range tests {
		result := graph.Execute(context.Background(), schema, graph.Request{Query: query})
		if len(result.Errors) != 0 {
			t.Fatalf("%s: unexpected errors: %v", query, result.Errors)
		}
		data, ok := result.Data.(map[string]any)
		if !ok {
			t.Fatalf("%s: unexpected data type %T", query, result.Data)
		}
		if got := data["hello"]; got != want {
			t.Fatalf("%s: got %v, want %q", query, got, want)
		}
	}
}
