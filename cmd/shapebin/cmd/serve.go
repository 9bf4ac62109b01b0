/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/shapebin/pkg/api"
	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/storage"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port   int
		bind   string
		apiKey string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start the REST API server over the local blob store.

Examples:
  shapebin serve
  shapebin serve --port 9000 --api-key mysecretkey`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			if cmd.Flags().Changed("bind") {
				a.cfg.Bind = bind
			}
			if cmd.Flags().Changed("api-key") {
				a.cfg.Security.APIKey = apiKey
			}
			return a.serve(cmd)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVar(&bind, "bind", "127.0.0.1", "Address to bind")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key required by /api/v1 routes (empty disables auth)")
	return cmd
}

// serve runs the REST API over the blob store until interrupted
func (a *app) serve(cmd *cobra.Command) error {
	if container == nil {
		return errors.New("dependency container not initialized")
	}

	cfg := a.cfg
	if cfg.Security.APIKey == "auto" {
		return fmt.Errorf("no API key configured: run 'shapebin init' or pass --api-key")
	}

	a.codecOpts = append(a.codecOpts, codec.WithObserver(container.Metrics()))

	return a.withStore(func(s *storage.BlobStore) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		container.UseLogger(a.log)
		return container.GetServerStarter().StartServer(ctx, s, api.ServerConfig{
			Bind:         cfg.Bind,
			Port:         cfg.Port,
			APIKey:       cfg.Security.APIKey,
			MaxBlobSize:  cfg.Storage.MaxBlobSize,
			CodecOptions: a.codecOpts,
		})
	})
}
