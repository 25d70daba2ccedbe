// Package graph defines the GraphQL schema and its resolvers.
package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/graphql-go/graphql"
	"github.com/msomdec/usergraph/internal/domain"
	"github.com/msomdec/usergraph/internal/logger"
)

// ErrInternal replaces infrastructure failures in GraphQL responses.
var ErrInternal = errors.New("internal server error")

// Registrar registers users. *service.RegistrationService implements it.
type Registrar interface {
	Register(ctx context.Context, email, password string) ([]domain.FieldError, error)
}

var errorType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Error",
	Description: "A problem with a single input field.",
	Fields: graphql.Fields{
		"path": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(domain.FieldError).Path, nil
			},
		},
		"message": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(domain.FieldError).Message, nil
			},
		},
	},
})

// NewSchema builds the schema with register backed by reg.
func NewSchema(reg Registrar) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hello": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: resolveHello,
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"register": &graphql.Field{
				Type:        graphql.NewList(graphql.NewNonNull(errorType)),
				Description: "Creates a user. Returns null on success, otherwise the field errors.",
				Args: graphql.FieldConfigArgument{
					"email":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: registerResolver(reg),
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}

func resolveHello(p graphql.ResolveParams) (any, error) {
	name, _ := p.Args["name"].(string)
	if name == "" {
		name = "World"
	}
	return "Hello " + name, nil
}

func registerResolver(reg Registrar) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		email, _ := p.Args["email"].(string)
		password, _ := p.Args["password"].(string)

		errs, err := reg.Register(p.Context, email, password)
		if err != nil {
			logger.ContextRequestLogger(p.Context).ErrorContext(p.Context, "register failed",
				slog.String("error", err.Error()))
			return nil, ErrInternal
		}
		if len(errs) == 0 {
			return nil, nil
		}
		return errs, nil
	}
}
