package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/mcp-apps/internal/apprun"
	"github.com/RobinCoderZhao/mcp-apps/migrations"
	"github.com/RobinCoderZhao/mcp-apps/pkg/storage"
)

func migrateCmd(flags *apprun.Flags) *cobra.Command {
	var (
		down  bool
		force int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), *flags, down, force)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations")
	cmd.Flags().IntVar(&force, "force", -1, "force the schema version and clear the dirty flag")
	return cmd
}

func runMigrate(ctx context.Context, flags apprun.Flags, down bool, force int) error {
	env, err := apprun.Load(flags)
	if err != nil {
		return err
	}
	logger := env.Logger.Logger
	dbCfg := env.Config.Database

	if dbCfg.Driver != storage.Postgres {
		return fmt.Errorf("migrate requires the postgres driver, got %q", dbCfg.Driver)
	}
	if strings.TrimSpace(dbCfg.DSN) == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := storage.Open(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	dbDriver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch {
	case force >= 0:
		if err := m.Force(force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		logger.Info("forced schema version", "version", force)
		return nil
	case down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("read version: %w", verr)
	}
	logger.Info("migrations complete", "version", version, "dirty", dirty)
	return nil
}
