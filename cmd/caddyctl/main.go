// Package main is the entry point for caddyctl, which installs the Caddy web
// server as a systemd service for Valet and manages its lifecycle.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootOpts struct {
	configPath string
	logLevel   string
	backend    string
}

var rootCmd = &cobra.Command{
	Use:   "caddyctl",
	Short: "Manage the Caddy daemon behind Valet",
	Long: `caddyctl writes the Caddyfile and systemd unit for Valet's Caddy server
and installs, restarts, stops or removes the service.

Lifecycle commands must run as root. Generated files under ~/.valet stay owned
by the user who invoked sudo.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the caddyctl version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "caddyctl %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOpts.configPath, "config", "",
		"Path to configuration file (auto-detected if empty)")
	rootCmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&rootOpts.backend, "backend", "",
		"Service backend: systemctl or dbus")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
