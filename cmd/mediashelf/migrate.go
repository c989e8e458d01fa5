package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediashelf/mediashelf/internal/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withDB := func(fn func(db *database.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.New(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(db)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withDB(func(db *database.DB) error {
				if err := db.Migrate(); err != nil {
					return err
				}
				return printVersion(cmd, db)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: withDB(func(db *database.DB) error {
				if err := db.MigrateDown(); err != nil {
					return err
				}
				return printVersion(cmd, db)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE:  withDB(func(db *database.DB) error { return db.MigrationStatus() }),
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, db *database.DB) error {
	v, err := db.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
