package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/shapebin/pkg/api"
	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/config"
	"github.com/ssargent/shapebin/pkg/di"
	"github.com/ssargent/shapebin/pkg/errors"
)

type env struct {
	dir        string
	configPath string
	dataDir    string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	SetContainer(di.NewContainer())
	return env{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		dataDir:    filepath.Join(dir, "data"),
	}
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--config", e.configPath, "--data-dir", e.dataDir, "--log-level", "error"}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestInitCommand(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "init", "--print-key")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration created")
	assert.Contains(t, out, "API key: ")
	assert.DirExists(t, e.dataDir)

	cfg, err := config.LoadConfig(e.configPath)
	require.NoError(t, err)
	assert.Equal(t, e.dataDir, cfg.DataDir)
	assert.Len(t, cfg.Security.APIKey, 64)

	out, err = e.run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	_, err = e.run(t, "init", "--force")
	require.NoError(t, err)
	reloaded, err := config.LoadConfig(e.configPath)
	require.NoError(t, err)
	assert.NotEqual(t, cfg.Security.APIKey, reloaded.Security.APIKey)
}

func TestSampleInspectVerify(t *testing.T) {
	e := newEnv(t)
	blob := filepath.Join(e.dir, "readings.bin")

	_, err := e.run(t, "sample", "--out", blob, "--count", "10")
	require.NoError(t, err)

	readings, err := codec.FromFileArray[Reading](blob)
	require.NoError(t, err)
	want := sampleReadings(10, 1)
	require.Len(t, readings, len(want))
	for i := range want {
		assert.Equal(t, want[i].Sensor, readings[i].Sensor)
		assert.True(t, want[i].Taken.Equal(readings[i].Taken))
		assert.Equal(t, want[i].Celsius, readings[i].Celsius)
		assert.Equal(t, want[i].Labels, readings[i].Labels)
		assert.Equal(t, want[i].Previous, readings[i].Previous)
	}

	out, err := e.run(t, "inspect", blob)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Array"))
	assert.Contains(t, out, "sensor: Value")

	out, err = e.run(t, "inspect", blob, "-o", "json")
	require.NoError(t, err)
	var summary codec.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "Array", summary.Root)

	out, err = e.run(t, "inspect", blob, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "root: Array")

	_, err = e.run(t, "inspect", blob, "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")

	out, err = e.run(t, "verify", blob, "--as-reading")
	require.NoError(t, err)
	assert.Contains(t, out, "decoded 10 readings")
	assert.Contains(t, out, "OK: Array blob")
}

func TestSampleSingleObject(t *testing.T) {
	e := newEnv(t)
	blob := filepath.Join(e.dir, "one.bin")

	_, err := e.run(t, "sample", "--out", blob, "--count", "0")
	require.NoError(t, err)

	out, err := e.run(t, "verify", blob, "--as-reading")
	require.NoError(t, err)
	assert.Contains(t, out, "decoded 1 reading")
	assert.Contains(t, out, "OK: Object blob")
}

func TestVerifyFailures(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "inspect", filepath.Join(e.dir, "missing.bin"))
	assert.ErrorIs(t, err, errors.ErrFileNotFound)

	_, err = e.run(t, "verify", e.dir)
	assert.ErrorIs(t, err, errors.ErrNotAFile)

	blob := filepath.Join(e.dir, "readings.bin")
	_, err = e.run(t, "sample", "--out", blob, "--count", "3")
	require.NoError(t, err)

	f, err := os.OpenFile(blob, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := e.run(t, "verify", blob)
	require.NoError(t, err)
	assert.Contains(t, out, "3 trailing bytes")

	_, err = e.run(t, "verify", blob, "--strict")
	assert.ErrorContains(t, err, "trailing bytes")

	truncated := filepath.Join(e.dir, "truncated.bin")
	data, err := os.ReadFile(blob)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(truncated, data[:len(data)-20], 0644))
	_, err = e.run(t, "verify", truncated)
	assert.ErrorIs(t, err, errors.ErrTruncated)
}

func TestBlobCommands(t *testing.T) {
	e := newEnv(t)
	blob := filepath.Join(e.dir, "readings.bin")
	_, err := e.run(t, "sample", "--out", blob, "--count", "5")
	require.NoError(t, err)

	out, err := e.run(t, "blob", "put", blob)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = e.run(t, "blob", "list")
	require.NoError(t, err)
	assert.Equal(t, id, strings.TrimSpace(out))

	fetched := filepath.Join(e.dir, "fetched.bin")
	_, err = e.run(t, "blob", "get", id, "--out", fetched)
	require.NoError(t, err)
	want, err := os.ReadFile(blob)
	require.NoError(t, err)
	got, err := os.ReadFile(fetched)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	out, err = e.run(t, "blob", "header", id, "-o", "json")
	require.NoError(t, err)
	var summary codec.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "Array", summary.Root)

	out, err = e.run(t, "blob", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+id)

	_, err = e.run(t, "blob", "get", id)
	assert.Error(t, err)

	_, err = e.run(t, "blob", "get", "bogus")
	assert.Error(t, err)

	garbage := filepath.Join(e.dir, "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte{0xFF}, 0644))
	_, err = e.run(t, "blob", "put", garbage)
	assert.ErrorIs(t, err, errors.ErrMalformedHeader)
}

func TestJournalCommands(t *testing.T) {
	e := newEnv(t)
	seq := filepath.Join(e.dir, "seq.bin")
	one := filepath.Join(e.dir, "one.bin")
	_, err := e.run(t, "sample", "--out", seq, "--count", "4")
	require.NoError(t, err)
	_, err = e.run(t, "sample", "--out", one, "--count", "0")
	require.NoError(t, err)

	out, err := e.run(t, "journal", "append", seq, one)
	require.NoError(t, err)
	assert.Contains(t, out, "appended at offset 0")

	out, err = e.run(t, "journal", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Array")
	assert.Contains(t, lines[2], "Object")

	garbage := filepath.Join(e.dir, "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte{0xFF}, 0644))
	_, err = e.run(t, "journal", "append", garbage)
	assert.ErrorIs(t, err, errors.ErrMalformedHeader)
}

type fakeStarter struct {
	called bool
	config api.ServerConfig
}

func (f *fakeStarter) StartServer(ctx context.Context, store api.IBlobStore, config api.ServerConfig) error {
	f.called = true
	f.config = config
	_, err := store.Stats()
	return err
}

func TestServeCommand(t *testing.T) {
	e := newEnv(t)
	starter := &fakeStarter{}
	container.SetServerStarter(starter)

	_, err := e.run(t, "serve")
	assert.ErrorContains(t, err, "no API key configured")
	assert.False(t, starter.called)

	_, err = e.run(t, "serve", "--api-key", "secret", "--port", "9123", "--bind", "0.0.0.0")
	require.NoError(t, err)
	require.True(t, starter.called)
	assert.Equal(t, "secret", starter.config.APIKey)
	assert.Equal(t, 9123, starter.config.Port)
	assert.Equal(t, "0.0.0.0", starter.config.Bind)
	assert.NotEmpty(t, starter.config.CodecOptions)
}

func TestServeWithoutContainer(t *testing.T) {
	e := newEnv(t)
	SetContainer(nil)
	defer SetContainer(di.NewContainer())

	_, err := e.run(t, "serve", "--api-key", "secret")
	assert.ErrorContains(t, err, "dependency container not initialized")
}

func TestUpBootstrapsAndServes(t *testing.T) {
	e := newEnv(t)
	starter := &fakeStarter{}
	container.SetServerStarter(starter)

	out, err := e.run(t, "up", "--port", "9200", "--print-key")
	require.NoError(t, err)
	assert.Contains(t, out, "First run detected")
	assert.Contains(t, out, "Starting shapebin server on 127.0.0.1:9200")

	cfg, err := config.LoadConfig(e.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "API key: "+cfg.Security.APIKey)

	require.True(t, starter.called)
	assert.Equal(t, cfg.Security.APIKey, starter.config.APIKey)
	assert.Equal(t, 9200, starter.config.Port)
	assert.DirExists(t, e.dataDir)
}

func TestUpReusesConfig(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "init")
	require.NoError(t, err)
	cfg, err := config.LoadConfig(e.configPath)
	require.NoError(t, err)

	starter := &fakeStarter{}
	container.SetServerStarter(starter)

	out, err := e.run(t, "up", "--bind", "0.0.0.0")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded existing configuration")
	assert.NotContains(t, out, "API key:")

	require.True(t, starter.called)
	assert.Equal(t, cfg.Security.APIKey, starter.config.APIKey)
	assert.Equal(t, "0.0.0.0", starter.config.Bind)
	assert.Equal(t, cfg.Port, starter.config.Port)
}
