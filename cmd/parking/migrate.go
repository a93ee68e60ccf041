// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stornco/parking/internal/store"
)

// newMigrateCmd creates the migrate command and its subcommands.
func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply or roll back the embedded schema migrations against the
PostgreSQL database in database.url (or DATABASE_URL). Without a
subcommand, all pending migrations are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, migrateUp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, migrateUp)
		},
	})

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration (or all with --all)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				return migrateDown(cmd, m, all)
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")
	cmd.AddCommand(down)

	var jsonOutput bool
	versionCmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"status"},
		Short:   "Show the applied schema version and pending migrations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				return migrateStatus(cmd, m, jsonOutput)
			})
		},
	}
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	cmd.AddCommand(versionCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				if err := m.Force(v); err != nil {
					return oops.Code("MIGRATION_FORCE_FAILED").With("version", v).Wrap(err)
				}
				cmd.Printf("Forced schema version to %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator loads the config, opens a migrator and runs fn with it.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(*cobra.Command, Migrator) error) error {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("DB_URL_REQUIRED").Errorf("database.url (or DATABASE_URL) is required")
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", err)
		}
	}()
	return fn(cmd, m)
}

func migrateUp(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func migrateDown(cmd *cobra.Command, m Migrator, all bool) error {
	if all {
		if err := m.Down(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
		}
		cmd.Println("Rolled back all migrations")
		return nil
	}
	if err := m.Steps(-1); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "down one").Wrap(err)
	}
	cmd.Println("Rolled back one migration")
	return nil
}

func migrateStatus(cmd *cobra.Command, m Migrator, jsonOutput bool) error {
	status, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
	}
	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err //nolint:wrapcheck // write to stdout
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), formatMigrationStatus(status))
	return err //nolint:wrapcheck // write to stdout
}

// formatMigrationStatus renders status for humans.
func formatMigrationStatus(s *store.Status) string {
	var b strings.Builder
	if s.Version == 0 {
		b.WriteString("Schema version: none\n")
	} else {
		fmt.Fprintf(&b, "Schema version: %d (%s)\n", s.Version, s.Name)
	}
	if s.Dirty {
		b.WriteString("WARNING: schema is dirty; fix it and run 'parking migrate force VERSION'\n")
	}
	if len(s.Pending) == 0 {
		b.WriteString("Pending: none\n")
		return b.String()
	}
	pending := make([]string, 0, len(s.Pending))
	for _, v := range s.Pending {
		pending = append(pending, strconv.FormatUint(uint64(v), 10))
	}
	fmt.Fprintf(&b, "Pending: %s\n", strings.Join(pending, ", "))
	return b.String()
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(arg string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Wrap(err)
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Errorf("version must be non-negative")
	}
	return v, nil
}
