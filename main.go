package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/msomdec/usergraph/internal/config"
	"github.com/msomdec/usergraph/internal/domain"
	"github.com/msomdec/usergraph/internal/logger"
	"github.com/msomdec/usergraph/internal/repository"
	"github.com/msomdec/usergraph/internal/repository/postgres"
	"github.com/msomdec/usergraph/internal/server"
	"github.com/msomdec/usergraph/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "usergraph",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Short:             "GraphQL user registration server",
		Long:              `usergraph serves a GraphQL API for registering user accounts`,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	}
	rootCmd.AddCommand(migrateCmd)

	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger and opens the database.
func setup(ctx context.Context) (*config.Config, *slog.Logger, domain.Database, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load configuration: %v", err)
		return nil, nil, nil, err
	}

	appLogger := logger.New(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment, os.Stdout)
	slog.SetDefault(appLogger)
	appLogger.Info("configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("DATABASE_DRIVER", cfg.DatabaseDriver),
		slog.Bool("AUTO_MIGRATE", cfg.AutoMigrate),
		slog.Bool("PLAYGROUND_ENABLED", cfg.PlaygroundEnabled),
	)

	dbCtx, cancel := context.WithTimeout(ctx, cfg.DatabasePingTimeout)
	defer cancel()

	db, err := repository.Open(dbCtx, repository.Options{
		Driver: cfg.DatabaseDriver,
		URL:    cfg.DatabaseURL,
		Pool: postgres.PoolOptions{
			MaxConns:        cfg.DBMaxConnections,
			MinConns:        cfg.DBMinConnections,
			MaxConnLifetime: cfg.DBMaxConnLifetime,
			MaxConnIdleTime: cfg.DBMaxConnIdleTime,
			ConnectTimeout:  cfg.DBConnectTimeout,
		},
	})
	if err != nil {
		appLogger.Error("failed to open database", slog.String("error", err.Error()))
		return nil, nil, nil, err
	}
	appLogger.Info("connected to database", slog.String("driver", cfg.DatabaseDriver))

	return cfg, appLogger, db, nil
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Warn("database close error", slog.String("error", err.Error()))
			return
		}
		appLogger.Info("database connection closed")
	}()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			appLogger.Error("failed to run migrations", slog.String("error", err.Error()))
			return err
		}
		appLogger.Info("database migrations applied")
	}

	srv, err := server.New(cfg, db, appLogger)
	if err != nil {
		appLogger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}
	defer srv.Close()

	appLogger.Info("starting server", slog.String("version", version.Get().Version))
	if err := srv.Start(ctx); err != nil {
		appLogger.Error("server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}

func migrate() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, appLogger, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		appLogger.Error("failed to run migrations", slog.String("error", err.Error()))
		return err
	}
	appLogger.Info("database migrations applied")
	return nil
}
