package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/store/postgres"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.URL)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := postgres.MigrateDown(cfg.Database.URL, steps); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.URL)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.URL)
		},
	})
	return cmd
}

func printVersion(cmd *cobra.Command, databaseURL string) error {
	version, dirty, err := postgres.MigrationVersion(databaseURL)
	if err != nil {
		return err
	}
	state := ""
	if dirty {
		state = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d%s\n", version, state)
	return nil
}
