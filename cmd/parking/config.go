// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stornco/parking/internal/config"
)

func newConfigCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file format",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err //nolint:wrapcheck // GenerateSchema returns coded errors
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err //nolint:wrapcheck // write to stdout
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Check a configuration file against the schema and value rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
			if err != nil {
				return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
			}
			if err := config.ValidateYAML(data); err != nil {
				return oops.Code("CONFIG_SCHEMA_INVALID").With("path", path).Wrap(err)
			}
			if _, err := (config.Loader{Getenv: deps.Getenv}).Load(path, nil); err != nil {
				return err //nolint:wrapcheck // Load returns coded errors
			}
			cmd.Printf("%s is valid\n", path)
			return nil
		},
	})

	return cmd
}
