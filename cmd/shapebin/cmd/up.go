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

func newUpCmd(a *app) *cobra.Command {
	var (
		port     int
		bind     string
		printKey bool
	)

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Bootstrap and start the shapebin server",
		Long: `Create the configuration and API key if they don't exist, then start the
REST API server. This is the recommended way to get shapebin running and is
what the systemd unit installed by 'shapebin service install' executes.

Examples:
  shapebin up
  shapebin up --data-dir ./mydata --port 9000
  shapebin up --config ./shapebin.yaml --print-key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ConfigExists(a.configPath) {
				cmd.Printf("Loaded existing configuration from %s\n", a.configPath)
			} else {
				cmd.Printf("First run detected, bootstrapping shapebin...\n")
				cfg, err := config.BootstrapConfig(a.configPath, a.cfg.DataDir)
				if err != nil {
					return err
				}
				a.cfg.Security.APIKey = cfg.Security.APIKey
				cmd.Printf("Configuration created at %s\n", a.configPath)
				if printKey {
					cmd.Printf("API key: %s\n", cfg.Security.APIKey)
				}
			}

			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			if cmd.Flags().Changed("bind") {
				a.cfg.Bind = bind
			}
			if err := os.MkdirAll(a.cfg.DataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			cmd.Printf("Starting shapebin server on %s:%d\n", a.cfg.Bind, a.cfg.Port)
			cmd.Printf("Data directory: %s\n", a.cfg.DataDir)
			return a.serve(cmd)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVar(&bind, "bind", "127.0.0.1", "Address to bind")
	cmd.Flags().BoolVar(&printKey, "print-key", false, "Print the generated API key")
	return cmd
}
