/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/shapebin/pkg/config"
)

const serviceName = "shapebin.service"

// systemd runs systemctl and journalctl and owns the unit directory
type systemd struct {
	unitDir string
	euid    func() int
	run     func(stdout, stderr io.Writer, name string, args ...string) error
	output  func(name string, args ...string) ([]byte, error)
}

var host = &systemd{
	unitDir: "/etc/systemd/system",
	euid:    os.Geteuid,
	run:     runCommand,
	output: func(name string, args ...string) ([]byte, error) {
		return exec.Command(name, args...).Output()
	},
}

func (s *systemd) unitPath() string {
	return filepath.Join(s.unitDir, serviceName)
}

func (s *systemd) systemctl(cmd *cobra.Command, args ...string) error {
	return s.run(cmd.OutOrStdout(), cmd.ErrOrStderr(), "systemctl", args...)
}

// active reports whether the service is currently running
func (s *systemd) active() bool {
	out, err := s.output("systemctl", "is-active", serviceName)
	return err == nil && strings.TrimSpace(string(out)) == "active"
}

func (s *systemd) requireRoot(action string) error {
	if s.euid() != 0 {
		return fmt.Errorf("service %s requires root privileges, run with: sudo shapebin service %s", action, action)
	}
	return nil
}

// runCommand runs a system command with its output attached to the given writers
func runCommand(stdout, stderr io.Writer, name string, args ...string) error {
	c := exec.Command(name, args...)
	c.Stdout = stdout
	c.Stderr = stderr
	return c.Run()
}

// systemdUnit renders the unit file that runs 'shapebin up' with the given config
func systemdUnit(cfg *config.Config, configPath, user, binary string) string {
	return fmt.Sprintf(`[Unit]
Description=shapebin blob server
After=network-online.target
Wants=network-online.target

[Service]
User=%s
Group=%s
ExecStart=%s up --config %s
Restart=on-failure
NoNewPrivileges=true
UMask=0077
ReadWritePaths=%s
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`, user, user, binary, configPath, cfg.DataDir, filepath.Dir(configPath))
}

func newServiceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage shapebin as a systemd service",
		Long: `Manage shapebin as a systemd service. The installed unit runs 'shapebin up'
with the YAML configuration and restarts on failure.`,
	}

	cmd.AddCommand(
		newServiceInstallCmd(a),
		newServiceCtlCmd("start", "Start the shapebin service"),
		newServiceCtlCmd("stop", "Stop the shapebin service"),
		newServiceCtlCmd("restart", "Restart the shapebin service"),
		newServiceCtlCmd("status", "Show shapebin service status"),
		newServiceLogsCmd(),
		newServiceUninstallCmd(),
	)
	return cmd
}

func newServiceInstallCmd(a *app) *cobra.Command {
	var (
		user     string
		binary   string
		port     int
		startNow bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install shapebin as a systemd service",
		Long: `Install shapebin as a systemd service.

This will:
- Create or reuse the configuration file
- Generate the systemd unit file
- Enable and optionally start the service

Examples:
  sudo shapebin service install
  sudo shapebin service install --data-dir /var/lib/shapebin --user shapebin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := host.requireRoot("install"); err != nil {
				return err
			}

			cfg := a.cfg
			if config.ConfigExists(a.configPath) {
				cmd.Printf("Loaded existing configuration\n")
			} else {
				boot, err := config.BootstrapConfig(a.configPath, cfg.DataDir)
				if err != nil {
					return err
				}
				cfg.Security.APIKey = boot.Security.APIKey
				cmd.Printf("Created new configuration at %s\n", a.configPath)
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if err := config.SaveConfig(cfg, a.configPath); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			if host.active() {
				cmd.Printf("Stopping running %s\n", serviceName)
				if err := host.systemctl(cmd, "stop", serviceName); err != nil {
					return fmt.Errorf("failed to stop service: %w", err)
				}
			}

			unit := systemdUnit(cfg, a.configPath, user, binary)
			if err := os.WriteFile(host.unitPath(), []byte(unit), 0644); err != nil {
				return fmt.Errorf("failed to write unit file: %w", err)
			}
			if err := host.systemctl(cmd, "daemon-reload"); err != nil {
				return fmt.Errorf("failed to reload systemd: %w", err)
			}
			if err := host.systemctl(cmd, "enable", serviceName); err != nil {
				return fmt.Errorf("failed to enable service: %w", err)
			}
			cmd.Printf("Service enabled\n")

			if startNow {
				if err := host.systemctl(cmd, "start", serviceName); err != nil {
					return fmt.Errorf("failed to start service: %w", err)
				}
				cmd.Printf("Service started\n")
			}

			cmd.Printf("\nService: %s\n", serviceName)
			cmd.Printf("Config: %s\n", a.configPath)
			cmd.Printf("Data: %s\n", cfg.DataDir)
			cmd.Printf("Port: %d\n", cfg.Port)
			if !startNow {
				cmd.Printf("\nTo start the service: sudo systemctl start %s\n", serviceName)
			}
			cmd.Printf("To view logs: sudo journalctl -u %s -f\n", serviceName)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "shapebin", "User to run the service as")
	cmd.Flags().StringVar(&binary, "binary", "/usr/local/bin/shapebin", "Path of the installed shapebin binary")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port for the service")
	cmd.Flags().BoolVar(&startNow, "start", true, "Start the service after installation")
	return cmd
}

func newServiceCtlCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := host.systemctl(cmd, action, serviceName); err != nil {
				return fmt.Errorf("systemctl %s failed: %w", action, err)
			}
			return nil
		},
	}
}

func newServiceLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show shapebin service logs",
		Long: `Show shapebin service logs using journalctl.

Examples:
  shapebin service logs
  shapebin service logs -f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journalArgs := []string{"-u", serviceName}
			if follow {
				journalArgs = append(journalArgs, "-f")
			}
			if lines > 0 {
				journalArgs = append(journalArgs, fmt.Sprintf("-n%d", lines))
			}
			return host.run(cmd.OutOrStdout(), cmd.ErrOrStderr(), "journalctl", journalArgs...)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines to show")
	return cmd
}

func newServiceUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the shapebin service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := host.requireRoot("uninstall"); err != nil {
				return err
			}

			_ = host.systemctl(cmd, "stop", serviceName) // already stopped is fine
			if err := host.systemctl(cmd, "disable", serviceName); err != nil {
				cmd.Printf("warning: could not disable service: %v\n", err)
			}
			if err := os.Remove(host.unitPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove unit file: %w", err)
			}
			if err := host.systemctl(cmd, "daemon-reload"); err != nil {
				return fmt.Errorf("failed to reload systemd: %w", err)
			}

			cmd.Printf("shapebin service uninstalled\n")
			cmd.Printf("Note: configuration and data files were not removed\n")
			return nil
		},
	}
}
