// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stornco/parking/internal/config"
	"github.com/stornco/parking/internal/logging"
)

// serviceName labels logs and metrics.
const serviceName = "parking"

// NewRootCmd creates the root command for the parking CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "parking",
		Short: "StornCo Parking account service",
		Long: `StornCo Parking serves the account API: registration, login and
logout for users, and user management for staff.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newCreateSuperuserCmd(deps))
	cmd.AddCommand(newChangePasswordCmd(deps))
	cmd.AddCommand(newClearSessionsCmd(deps))
	cmd.AddCommand(newStatusCmd(deps))
	cmd.AddCommand(newConfigCmd(deps))

	return cmd
}

// loadConfig reads --config and the explicitly set flags of cmd.
func loadConfig(cmd *cobra.Command, deps *Deps) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err //nolint:wrapcheck // flag lookup on a flag registered above
	}
	return config.Loader{Getenv: deps.Getenv}.Load(path, cmd.Flags())
}

// newLogger builds the command's logger writing to its error stream.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
}
