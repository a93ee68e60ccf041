// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"bufio"
	"context"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stornco/parking/internal/auth"
	"github.com/stornco/parking/internal/config"
)

// Environment variables consulted when --password is not given.
const (
	superuserPasswordEnv = "PARKING_SUPERUSER_PASSWORD"
	passwordEnv          = "PARKING_PASSWORD"
)

func newCreateSuperuserCmd(deps *Deps) *cobra.Command {
	var email, phone, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a staff superuser",
		Long: `Create an active staff superuser. The password comes from --password,
then $` + superuserPasswordEnv + `, then the first line of standard input,
and must satisfy the password policy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(cmd, password, deps.Getenv(superuserPasswordEnv))
			if err != nil {
				return err
			}
			return withBackend(cmd, deps, func(ctx context.Context, b *backend) error {
				user, err := b.service.CreateSuperuser(ctx, auth.RegisterInput{
					Email:    email,
					Phone:    phone,
					Password: pw,
				})
				if err != nil {
					return err //nolint:wrapcheck // service errors are coded
				}
				cmd.Printf("Superuser %s created (id %s)\n", user.Email, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number (required)")
	cmd.Flags().StringVar(&password, "password", "", "password (default: $"+superuserPasswordEnv+" or stdin)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func newChangePasswordCmd(deps *Deps) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "changepassword",
		Short: "Set a user's password",
		Long: `Set the password of the user with the given email without knowing the
old one. The new password must satisfy the password policy; every session
of the user is ended. The password comes from --password, then
$` + passwordEnv + `, then the first line of standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(cmd, password, deps.Getenv(passwordEnv))
			if err != nil {
				return err
			}
			return withBackend(cmd, deps, func(ctx context.Context, b *backend) error {
				user, err := b.service.SetPassword(ctx, email, pw)
				if err != nil {
					return err //nolint:wrapcheck // service errors are coded
				}
				cmd.Printf("Password changed for %s\n", user.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address of the user (required)")
	cmd.Flags().StringVar(&password, "password", "", "new password (default: $"+passwordEnv+" or stdin)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newClearSessionsCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "clearsessions",
		Short: "Delete expired sessions",
		Long:  `Delete expired sessions from the session store. Safe to run from cron.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, deps, func(ctx context.Context, b *backend) error {
				n, err := b.service.Sessions().ClearExpired(ctx)
				if err != nil {
					return err //nolint:wrapcheck // session manager errors are coded
				}
				cmd.Printf("Removed %d expired sessions\n", n)
				return nil
			})
		},
	}
}

// withBackend loads the config, opens a persistent backend and runs fn.
func withBackend(cmd *cobra.Command, deps *Deps, fn func(context.Context, *backend) error) error {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if cfg.Session.Backend == config.BackendMemory {
		return oops.Code("CONFIG_INVALID").
			With("session_backend", cfg.Session.Backend).
			Errorf("%s needs a persistent backend; the memory backend forgets everything on exit", cmd.Name())
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := deps.OpenBackend(ctx, cfg, newLogger(cmd, cfg))
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

// readPassword returns flag, else env, else the first line of stdin.
func readPassword(cmd *cobra.Command, flag, env string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env != "" {
		return env, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", oops.Code("PASSWORD_REQUIRED").Wrap(err)
		}
		return "", oops.Code("PASSWORD_REQUIRED").Errorf("password is required")
	}
	return line, nil
}
