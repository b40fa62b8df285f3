// Package migrate provides the database migration commands.
package migrate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/resona-io/resona/internal/infrastructure/config"
	"github.com/resona-io/resona/internal/infrastructure/database"
	"github.com/resona-io/resona/internal/infrastructure/migration"
	"github.com/resona-io/resona/internal/shared/logger"
)

var env string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
		newVersionCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(driver string) error {
				manager := migration.NewManager(driver)
				return manager.Migrate(database.Get(), migration.AutoMigrateModels()...)
			})
		},
	}
}

func newDownCommand() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(driver string) error {
				return migration.NewGooseStrategy(driver).MigrateDown(database.Get(), steps)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(driver string) error {
				return migration.NewGooseStrategy(driver).Status(database.Get())
			})
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(driver string) error {
				version, err := migration.NewGooseStrategy(driver).GetVersion(database.Get())
				if err != nil {
					return err
				}
				fmt.Printf("current migration version: %d\n", version)
				return nil
			})
		},
	}
}

func withDatabase(fn func(driver string) error) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	return fn(cfg.Database.Driver)
}
