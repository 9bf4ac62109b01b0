/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/shapebin/pkg/config"
)

func newInitCmd(a *app) *cobra.Command {
	var force, printKey bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file and data directory",
		Long: `Create a configuration file with a generated API key and the data directory.

Examples:
  shapebin init
  shapebin init --config ./shapebin.yaml --data-dir ./data --print-key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ConfigExists(a.configPath) && !force {
				cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", a.configPath)
				return nil
			}

			cfg, err := config.BootstrapConfig(a.configPath, a.cfg.DataDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			cmd.Printf("Configuration created at %s\n", a.configPath)
			cmd.Printf("Data directory: %s\n", cfg.DataDir)
			if printKey {
				cmd.Printf("API key: %s\n", cfg.Security.APIKey)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	cmd.Flags().BoolVar(&printKey, "print-key", false, "Print the generated API key")
	return cmd
}
