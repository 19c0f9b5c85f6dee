package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSchemaCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create database tables and seed the reference catalog",
		Long: `Create the PostgreSQL and ClickHouse tables of the configured backends.
When reference.catalog is set and PostgreSQL is configured, the catalog
entries are written to the reference tables. The SQLite parse log is
created on open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.db.PG == nil && a.db.CH == nil && a.db.Log == nil {
				return errors.New("no storage backend configured")
			}
			if err := a.db.CreateSchemas(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.db.Log != nil {
				_, _ = fmt.Fprintf(out, "sqlite: %s ready\n", a.cfg.Storage.SQLitePath)
			}
			if a.db.CH != nil {
				_, _ = fmt.Fprintln(out, "clickhouse: parse_events ready")
			}
			if a.db.PG != nil {
				_, _ = fmt.Fprintln(out, "postgres: reference and record tables ready")
				if a.catalog != nil {
					n, err := a.db.PG.SeedCatalog(cmd.Context(), a.catalog)
					if err != nil {
						return fmt.Errorf("seed catalog: %w", err)
					}
					_, _ = fmt.Fprintf(out, "postgres: %d catalog entries seeded\n", n)
				}
			}
			return nil
		},
	}
}
