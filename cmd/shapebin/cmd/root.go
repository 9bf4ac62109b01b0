/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/config"
	"github.com/ssargent/shapebin/pkg/di"
	"github.com/ssargent/shapebin/pkg/storage"
)

var container *di.Container

// SetContainer injects the dependency container used by the commands
func SetContainer(c *di.Container) {
	container = c
}

// app carries the state shared by all subcommands of one invocation
type app struct {
	configPath string
	dataDir    string
	logLevel   string

	cfg       *config.Config
	log       *zap.Logger
	codecOpts []codec.Option
}

// load resolves the configuration file and applies flag overrides
func (a *app) load(cmd *cobra.Command) error {
	if a.configPath == "" {
		a.configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(a.configPath) {
		loaded, err := config.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}

	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	opts, err := cfg.CodecOptions()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.codecOpts = append(opts, codec.WithLogger(log))
	return nil
}

func (a *app) openStore() (*storage.BlobStore, error) {
	if container == nil {
		return nil, errors.New("dependency container not initialized")
	}
	s, err := container.OpenStore(a.cfg.StoragePath(), storage.Options{
		Sync:         a.cfg.Storage.Sync,
		CodecOptions: a.codecOpts,
		Logger:       a.log,
		Recorder:     container.Metrics(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	return s, nil
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "shapebin",
		Short: "shapebin - self-describing binary blobs",
		Long: `shapebin encodes Go values into blobs that carry their own schema.

The CLI inspects and verifies blob files, keeps blobs in a local store or an
append-only journal, and serves the store over a REST API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default ~/.config/shapebin/config.yaml)")
	root.PersistentFlags().StringVarP(&a.dataDir, "data-dir", "d", "./data", "Data directory for the store and journal")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(a),
		newInspectCmd(a),
		newVerifyCmd(a),
		newSampleCmd(a),
		newBlobCmd(a),
		newJournalCmd(a),
		newServeCmd(a),
		newUpCmd(a),
		newServiceCmd(a),
	)
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
