package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/shapebin/pkg/config"
)

type fakeHost struct {
	euid   int
	active bool
	calls  []string
	fail   map[string]error
}

// useFakeHost swaps the systemd host for one that records commands
func useFakeHost(t *testing.T, f *fakeHost) *systemd {
	t.Helper()
	prev := host
	host = &systemd{
		unitDir: t.TempDir(),
		euid:    func() int { return f.euid },
		run: func(stdout, stderr io.Writer, name string, args ...string) error {
			call := strings.Join(append([]string{name}, args...), " ")
			f.calls = append(f.calls, call)
			return f.fail[call]
		},
		output: func(name string, args ...string) ([]byte, error) {
			if f.active {
				return []byte("active\n"), nil
			}
			return []byte("inactive\n"), fmt.Errorf("exit status 3")
		},
	}
	t.Cleanup(func() { host = prev })
	return host
}

func TestSystemdUnit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = "/var/lib/shapebin"

	unit := systemdUnit(cfg, "/etc/shapebin/config.yaml", "blobs", "/usr/local/bin/shapebin")

	assert.Contains(t, unit, "[Unit]")
	assert.Contains(t, unit, "[Service]")
	assert.Contains(t, unit, "[Install]")
	assert.Contains(t, unit, "User=blobs")
	assert.Contains(t, unit, "Group=blobs")
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/shapebin up --config /etc/shapebin/config.yaml")
	assert.Contains(t, unit, "ReadWritePaths=/var/lib/shapebin")
	assert.Contains(t, unit, "ReadWritePaths=/etc/shapebin")
	assert.Contains(t, unit, "Restart=on-failure")
	assert.Contains(t, unit, "WantedBy=multi-user.target")
}

func TestServiceInstall(t *testing.T) {
	e := newEnv(t)
	f := &fakeHost{}
	sd := useFakeHost(t, f)

	out, err := e.run(t, "service", "install", "--port", "9100", "--user", "blobs")
	require.NoError(t, err)
	assert.Contains(t, out, "Created new configuration")
	assert.Contains(t, out, "Service started")

	cfg, err := config.LoadConfig(e.configPath)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, e.dataDir, cfg.DataDir)
	assert.Len(t, cfg.Security.APIKey, 64)
	assert.DirExists(t, e.dataDir)

	unit, err := os.ReadFile(filepath.Join(sd.unitDir, serviceName))
	require.NoError(t, err)
	assert.Contains(t, string(unit), "User=blobs")
	assert.Contains(t, string(unit), "up --config "+e.configPath)

	assert.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable shapebin.service",
		"systemctl start shapebin.service",
	}, f.calls)
}

func TestServiceInstallExisting(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "init")
	require.NoError(t, err)
	before, err := config.LoadConfig(e.configPath)
	require.NoError(t, err)

	f := &fakeHost{active: true}
	useFakeHost(t, f)

	out, err := e.run(t, "service", "install", "--start=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded existing configuration")
	assert.Contains(t, out, "To start the service")

	after, err := config.LoadConfig(e.configPath)
	require.NoError(t, err)
	assert.Equal(t, before.Security.APIKey, after.Security.APIKey)

	assert.Equal(t, []string{
		"systemctl stop shapebin.service",
		"systemctl daemon-reload",
		"systemctl enable shapebin.service",
	}, f.calls)
}

func TestServiceRequiresRoot(t *testing.T) {
	e := newEnv(t)
	f := &fakeHost{euid: 1000}
	useFakeHost(t, f)

	_, err := e.run(t, "service", "install")
	assert.ErrorContains(t, err, "requires root privileges")
	_, err = e.run(t, "service", "uninstall")
	assert.ErrorContains(t, err, "requires root privileges")

	assert.Empty(t, f.calls)
	assert.False(t, config.ConfigExists(e.configPath))
}

func TestServiceInstallFailures(t *testing.T) {
	e := newEnv(t)
	f := &fakeHost{fail: map[string]error{"systemctl enable shapebin.service": fmt.Errorf("exit status 1")}}
	useFakeHost(t, f)

	_, err := e.run(t, "service", "install")
	assert.ErrorContains(t, err, "failed to enable service")
	assert.NotContains(t, f.calls, "systemctl start shapebin.service")
}

func TestServiceControlCommands(t *testing.T) {
	e := newEnv(t)
	f := &fakeHost{}
	useFakeHost(t, f)

	for _, action := range []string{"start", "stop", "restart", "status"} {
		_, err := e.run(t, "service", action)
		require.NoError(t, err)
	}
	_, err := e.run(t, "service", "logs", "-f", "-n", "50")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"systemctl start shapebin.service",
		"systemctl stop shapebin.service",
		"systemctl restart shapebin.service",
		"systemctl status shapebin.service",
		"journalctl -u shapebin.service -f -n50",
	}, f.calls)

	f.fail = map[string]error{"systemctl restart shapebin.service": fmt.Errorf("exit status 1")}
	_, err = e.run(t, "service", "restart")
	assert.ErrorContains(t, err, "systemctl restart failed")
}

func TestServiceUninstall(t *testing.T) {
	e := newEnv(t)
	f := &fakeHost{fail: map[string]error{"systemctl stop shapebin.service": fmt.Errorf("not loaded")}}
	sd := useFakeHost(t, f)

	unitPath := filepath.Join(sd.unitDir, serviceName)
	require.NoError(t, os.WriteFile(unitPath, []byte("[Unit]\n"), 0644))

	out, err := e.run(t, "service", "uninstall")
	require.NoError(t, err)
	assert.Contains(t, out, "uninstalled")
	assert.NoFileExists(t, unitPath)

	assert.Equal(t, []string{
		"systemctl stop shapebin.service",
		"systemctl disable shapebin.service",
		"systemctl daemon-reload",
	}, f.calls)

	// a second uninstall finds no unit file and still succeeds
	_, err = e.run(t, "service", "uninstall")
	require.NoError(t, err)
}
