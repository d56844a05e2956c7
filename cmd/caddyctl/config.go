package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/valet-linux/caddyd/internal/config"
)

var configOpts struct {
	output string
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, the embedded config, the
config file, environment variables and flags.

With --output the result is written to a file instead, ready to be edited and
passed back with --config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, user, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Paths.Home == "" {
			cfg.Paths.Home = cfg.ConfigRoot(user)
		}

		if configOpts.output != "" {
			if err := config.WriteConfig(cfg, configOpts.output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", configOpts.output)
			return nil
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVarP(&configOpts.output, "output", "o", "",
		"Write the configuration to this file")
}
