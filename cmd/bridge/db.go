package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morezero/command-bridge/internal/config"
	"github.com/morezero/command-bridge/pkg/journal"
)

const defaultEnsureDBName = "bridge_journal"

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the command journal schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run database migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrateUp(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := runMigrateStatus(cmd.Context())
				if err != nil {
					return err
				}
				applied := "not applied"
				if st.Applied {
					applied = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Journal schema: %s (%d migration files in %s)\n",
					applied, st.MigrationFiles, st.MigrationPath)
				return nil
			},
		},
	)
	return cmd
}

func ensureDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-db [name]",
		Short: "Create the journal database if missing (default name: " + defaultEnsureDBName + ")",
		Long: `Create a database on the same host as DATABASE_URL, using its user and
credentials. Run migrations against it afterwards with DATABASE_URL pointing at it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := defaultEnsureDBName
			if len(args) == 1 && args[0] != "" {
				name = args[0]
			}
			if err := runEnsureDB(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %q is ready.\n", name)
			return nil
		},
	}
}

func loadDBConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrateUp(ctx context.Context) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	files, err := journal.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := journal.RunMigrations(ctx, pool, files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus(ctx context.Context) (*journal.SchemaStatus, error) {
	cfg, err := loadDBConfig()
	if err != nil {
		return nil, err
	}
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return journal.MigrationStatus(ctx, pool, cfg.MigrationPath)
}

func runEnsureDB(ctx context.Context, name string) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	targetURL, err := journal.WithDatabaseName(cfg.DatabaseURL, name)
	if err != nil {
		return err
	}
	return journal.EnsureDatabase(ctx, targetURL)
}
