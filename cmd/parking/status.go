// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StornCo Parking Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stornco/parking/internal/observability"
)

// ServerStatus holds the health of a running server.
type ServerStatus struct {
	Addr  string `json:"addr"`
	Live  bool   `json:"live"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	jsonOutput bool
}

func newStatusCmd(deps *Deps) *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running parking server",
		Long: `Show the health of a running server by querying the liveness and
readiness endpoints of its metrics listener (metrics.addr).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, deps)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "metrics listener to query (default: metrics.addr)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig, deps *Deps) error {
	addr := cfg.addr
	if addr == "" {
		appCfg, err := loadConfig(cmd, deps)
		if err != nil {
			return err
		}
		addr = appCfg.Metrics.Addr
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	status := queryServerStatus(ctx, deps.HTTPClient, addr)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err //nolint:wrapcheck // write to stdout
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), formatStatusTable(status))
	return err //nolint:wrapcheck // write to stdout
}

// queryServerStatus queries the health endpoints served at addr.
func queryServerStatus(ctx context.Context, client *http.Client, addr string) ServerStatus {
	status := ServerStatus{Addr: addr}
	if addr == "" {
		status.Error = "metrics listener disabled"
		return status
	}
	base := baseURL(addr)

	live, err := checkHealth(ctx, client, base+"/healthz/liveness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	status.Live = live.Status == "ok"

	ready, err := checkHealth(ctx, client, base+"/healthz/readiness")
	if err != nil {
		status.Error = fmt.Sprintf("readiness check failed: %v", err)
		return status
	}
	status.Ready = ready.Status == "ok"
	status.Error = ready.Error
	return status
}

func checkHealth(ctx context.Context, client *http.Client, url string) (observability.HealthStatus, error) {
	var health observability.HealthStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return health, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return health, fmt.Errorf("request %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return health, fmt.Errorf("decode health response: %w", err)
	}
	return health, nil
}

// baseURL turns a listen address into a URL; a bare ":port" means
// localhost.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(s ServerStatus) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ADDR\tLIVE\tREADY\tERROR")
	errText := s.Error
	if errText == "" {
		errText = "-"
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Addr, yesNo(s.Live), yesNo(s.Ready), errText)

	_ = w.Flush()
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
