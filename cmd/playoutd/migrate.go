package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/playout-core/internal/infrastructure/database"
)

func migrateCmd(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}

	open := func() (*database.DB, error) {
		cfg, _, err := loadConfig(configPath(), true)
		if err != nil {
			return nil, err
		}
		return database.Open(cfg.Database)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()

			_, pending, err := db.MigrationStatus(cmd.Context(), database.Migrations)
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(pending))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Rollback(cmd.Context(), database.Migrations); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back 1 migration")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()

			applied, pending, err := db.MigrationStatus(cmd.Context(), database.Migrations)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range applied {
				fmt.Fprintf(out, "%s %s %s at %s", color.New(color.FgGreen).Sprint("applied"), m.Version, m.Name, m.AppliedAt.Format(time.RFC3339))
				if m.Modified {
					fmt.Fprint(out, color.New(color.FgRed).Sprint(" (file changed since applied)"))
				}
				fmt.Fprintln(out)
			}
			for _, m := range pending {
				fmt.Fprintf(out, "%s %s %s\n", color.New(color.FgYellow).Sprint("pending"), m.Version, m.Name)
			}
			return nil
		},
	})

	return cmd
}
