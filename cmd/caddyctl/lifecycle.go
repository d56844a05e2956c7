package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Write the Caddyfile and systemd unit, then enable the service",
	Long: `Grant the caddy binary permission to bind ports below 1024, render the
Caddyfile and site directory under the config root, write the systemd unit
and enable it. Running install again rewrites the same files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutating(cmd.Context(), "install", func(ctx context.Context, a *app) error {
			if err := a.manager.Install(ctx); err != nil {
				return fmt.Errorf("install failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Caddy installed (%s)\n", a.manager.UnitPath())
			return nil
		})
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the Caddy service, starting it if stopped",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutating(cmd.Context(), "restart", func(ctx context.Context, a *app) error {
			return a.manager.Restart(ctx)
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Caddy service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutating(cmd.Context(), "stop", func(ctx context.Context, a *app) error {
			return a.manager.Stop(ctx)
		})
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the Caddy service and its generated files",
	Long: `Stop and disable the service, delete the unit file and the files directly
under the config root, drop the config root's dnsmasq include from the
resolver config, and reload systemd.

Every step is attempted even if an earlier one fails. The command exits
non-zero when any step failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutating(cmd.Context(), "uninstall", func(ctx context.Context, a *app) error {
			report := a.manager.Uninstall(ctx)
			failed := report.Failed()
			for _, s := range failed {
				a.logger.Error("uninstall step failed", zap.String("step", s.Step), zap.Error(s.Err))
			}
			if len(failed) > 0 {
				return fmt.Errorf("uninstall finished with %d of %d steps failed", len(failed), len(report.Steps))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Caddy uninstalled")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(installCmd, restartCmd, stopCmd, uninstallCmd)
}
