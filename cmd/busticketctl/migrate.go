package main

import (
	"fmt"
	"strconv"

	"busticket/internal/database/migrations"

	"github.com/spf13/cobra"
)

func migrateCmd(g *globals) *cobra.Command {
	var schemaOnly bool

	withRunner := func(cmd *cobra.Command, fn func(*migrations.Runner) error) error {
		sqldb, err := g.openDB(cmd.Context())
		if err != nil {
			return err
		}
		opts := migrations.DefaultOptions()
		opts.MigrationsDir = g.migrationsDir
		opts.SeedData = !schemaOnly
		runner := migrations.NewRunner(sqldb, opts, g.log)
		defer runner.Close()
		return fn(runner)
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
		Long: `Apply or roll back the SQL migrations in --migrations-dir.

Examples:
  busticketctl migrate up
  busticketctl migrate up --schema-only
  busticketctl migrate to 1
  busticketctl migrate down`,
	}
	cmd.PersistentFlags().BoolVar(&schemaOnly, "schema-only", false, "skip reference data migrations")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, (*migrations.Runner).RunMigrations)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, (*migrations.Runner).MigrateDown)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "to [version]",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withRunner(cmd, func(r *migrations.Runner) error {
				return r.MigrateTo(uint(version))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(r *migrations.Runner) error {
				v, dirty, err := r.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
				return nil
			})
		},
	})
	return cmd
}
