package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwm2m-go/lwm2m-client/pkg/config"
	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/persistence"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseFlags(t *testing.T, args ...string) (*pflag.FlagSet, *options) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts := registerFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs, opts
}

func TestLoadConfigFromFlags(t *testing.T) {
	fs, opts := parseFlags(t,
		"--endpoint", "urn:dev:os:0001",
		"--bootstrap-server", "192.0.2.10:5683",
		"--timeout", "5s",
		"--log-level", "debug")

	cfg, err := loadConfig(fs, opts)
	require.NoError(t, err)
	assert.Equal(t, "urn:dev:os:0001", cfg.Endpoint)
	assert.Equal(t, "192.0.2.10:5683", cfg.Bootstrap.Server)
	assert.Equal(t, 5*time.Second, cfg.Bootstrap.Timeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, config.DefaultMaxAttempts, cfg.Bootstrap.MaxAttempts)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint: urn:dev:os:from-file
bootstrap:
  server: 192.0.2.10:5683
  timeout: 20s
log_level: warn
`), 0600))

	fs, opts := parseFlags(t, "--config", path, "--endpoint", "urn:dev:os:from-flag")

	cfg, err := loadConfig(fs, opts)
	require.NoError(t, err)
	assert.Equal(t, "urn:dev:os:from-flag", cfg.Endpoint)
	assert.Equal(t, 20*time.Second, cfg.Bootstrap.Timeout, "unset flags keep file values")
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigInvalid(t *testing.T) {
	fs, opts := parseFlags(t, "--endpoint", "urn:dev:os:0001")
	_, err := loadConfig(fs, opts)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	fs, opts = parseFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = loadConfig(fs, opts)
	var le *config.LoadError
	assert.ErrorAs(t, err, &le)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Endpoint = "urn:dev:os:0001"
	cfg.Bootstrap.Server = "192.0.2.10:5683"
	cfg.Servers = []config.ServerEntry{{InstanceID: 0, ShortServerID: 101}}
	cfg.Security = []config.SecurityEntry{
		{InstanceID: 0, ServerURI: "coap://192.0.2.10:5683", BootstrapServer: true},
		{InstanceID: 1, ServerURI: "coaps://dm.example:5684", Mode: "psk", Identity: "dev", SecretKey: "0102", ShortServerID: 101},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProtocolLog = filepath.Join(t.TempDir(), "client.llog")

	c, err := newClient(cfg, discardLogger(), false)
	require.NoError(t, err)

	assert.False(t, c.bootstrapped)
	assert.Equal(t, []uint16{0, 1}, c.Store.InstanceIDs(wire.ObjectSecurity))
	assert.Equal(t, []uint16{0}, c.Store.InstanceIDs(wire.ObjectServer))
	assert.Equal(t, "192.0.2.10:5683", c.BootstrapServer.PeerAddress.String())

	require.True(t, c.Session.Open(c.BootstrapServer))
	c.Session.Cancel()
	c.Close()

	events, err := readLog(cfg.ProtocolLog)
	require.NoError(t, err)
	assert.Len(t, events, 2, "open and cancel are logged")
}

func TestNewClientRestoresState(t *testing.T) {
	cfg := testConfig(t)
	cfg.StatePath = filepath.Join(t.TempDir(), "state.json")

	saved := &persistence.ClientState{
		BootstrappedAt: time.Now(),
		Security: []persistence.SecurityRecord{
			{InstanceID: 0, ServerURI: "coap://192.0.2.10:5683", BootstrapServer: true},
			{InstanceID: 7, ServerURI: "coap://dm2.example:5683", ShortServerID: 202},
		},
		Servers: []persistence.ServerRecord{{InstanceID: 4, ShortServerID: 202, Lifetime: 60, Binding: "U"}},
	}
	require.NoError(t, persistence.NewClientStateStore(cfg.StatePath).Save(saved))

	c, err := newClient(cfg, discardLogger(), false)
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.bootstrapped)
	assert.Equal(t, []uint16{0, 7}, c.Store.InstanceIDs(wire.ObjectSecurity))
	assert.Equal(t, []uint16{4}, c.Store.InstanceIDs(wire.ObjectServer))
}

func TestNewClientReset(t *testing.T) {
	cfg := testConfig(t)
	cfg.StatePath = filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, persistence.NewClientStateStore(cfg.StatePath).Save(&persistence.ClientState{}))

	c, err := newClient(cfg, discardLogger(), true)
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.bootstrapped)
	assert.Equal(t, []uint16{0}, c.Store.InstanceIDs(wire.ObjectServer), "configured instances are used")
	assert.NoFileExists(t, cfg.StatePath)
}

func readLog(path string) ([]log.Event, error) {
	r, err := log.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}
