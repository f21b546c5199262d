package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lwm2m-go/lwm2m-client/pkg/connection"
	"github.com/lwm2m-go/lwm2m-client/pkg/identity"
	"github.com/lwm2m-go/lwm2m-client/pkg/objects"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// Default values.
const (
	DefaultBootstrapTimeout = 30 * time.Second
	DefaultMaxAttempts      = 5
	DefaultLogLevel         = "info"
	DefaultLifetime         = 86400
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the client configuration.
type Config struct {
	// Endpoint is the client endpoint name.
	Endpoint string `yaml:"endpoint"`

	Bootstrap BootstrapConfig          `yaml:"bootstrap"`
	Backoff   connection.BackoffConfig `yaml:"backoff"`

	// StatePath is where the object store is persisted after bootstrap.
	// Empty disables persistence.
	StatePath string `yaml:"state_path"`

	// ProtocolLog is the CBOR protocol log file. Empty disables it.
	ProtocolLog string `yaml:"protocol_log"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Security []SecurityEntry `yaml:"security"`
	Servers  []ServerEntry   `yaml:"servers"`
}

// BootstrapConfig describes the bootstrap server.
type BootstrapConfig struct {
	// Server is the bootstrap server address (host:port).
	Server string `yaml:"server"`

	// PSKIdentity is the identity the server authenticates with, if any.
	PSKIdentity string `yaml:"psk_identity"`

	// Timeout bounds the wait for Bootstrap-Finish on each attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts is the number of sessions tried before giving up.
	MaxAttempts int `yaml:"max_attempts"`
}

// SecurityEntry seeds one Security object instance.
type SecurityEntry struct {
	InstanceID      uint16 `yaml:"instance"`
	ServerURI       string `yaml:"uri"`
	BootstrapServer bool   `yaml:"bootstrap_server"`
	Mode            string `yaml:"mode"`
	Identity        string `yaml:"identity"`
	SecretKey       string `yaml:"secret_key"` // hex
	ShortServerID   uint16 `yaml:"short_server_id"`
}

// ServerEntry seeds one Server object instance.
type ServerEntry struct {
	InstanceID        uint16 `yaml:"instance"`
	ShortServerID     uint16 `yaml:"short_server_id"`
	Lifetime          int64  `yaml:"lifetime"`
	Binding           string `yaml:"binding"`
	NotifyWhenDisable bool   `yaml:"notify_when_disable"`
}

// LoadError describes a failure to load a configuration file.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// DefaultConfig returns a configuration with defaults filled in.
func DefaultConfig() *Config {
	return &Config{
		Bootstrap: BootstrapConfig{
			Timeout:     DefaultBootstrapTimeout,
			MaxAttempts: DefaultMaxAttempts,
		},
		Backoff:  connection.DefaultBackoffConfig(),
		LogLevel: DefaultLogLevel,
	}
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	return cfg, nil
}

// Load reads and decodes a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if _, err := c.BootstrapIdentity(); err != nil {
		return fmt.Errorf("%w: bootstrap server: %w", ErrInvalidConfig, err)
	}
	if c.Bootstrap.Timeout <= 0 {
		return fmt.Errorf("%w: bootstrap timeout must be positive", ErrInvalidConfig)
	}
	if c.Bootstrap.MaxAttempts < 1 {
		return fmt.Errorf("%w: bootstrap max_attempts must be at least 1", ErrInvalidConfig)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	seen := make(map[uint16]bool)
	for _, s := range c.Security {
		if seen[s.InstanceID] {
			return fmt.Errorf("%w: duplicate security instance %d", ErrInvalidConfig, s.InstanceID)
		}
		seen[s.InstanceID] = true
		if _, err := parseMode(s.Mode); err != nil {
			return fmt.Errorf("%w: security instance %d: %w", ErrInvalidConfig, s.InstanceID, err)
		}
		if _, err := hex.DecodeString(s.SecretKey); err != nil {
			return fmt.Errorf("%w: security instance %d: secret_key: %w", ErrInvalidConfig, s.InstanceID, err)
		}
	}

	clear(seen)
	for _, s := range c.Servers {
		if seen[s.InstanceID] {
			return fmt.Errorf("%w: duplicate server instance %d", ErrInvalidConfig, s.InstanceID)
		}
		seen[s.InstanceID] = true
		if s.ShortServerID == 0 || s.ShortServerID == 65535 {
			return fmt.Errorf("%w: server instance %d: short_server_id out of range", ErrInvalidConfig, s.InstanceID)
		}
		if s.Binding != "" && !objects.BindingMode(s.Binding).IsValid() {
			return fmt.Errorf("%w: server instance %d: invalid binding %q", ErrInvalidConfig, s.InstanceID, s.Binding)
		}
		if s.Lifetime < 0 {
			return fmt.Errorf("%w: server instance %d: negative lifetime", ErrInvalidConfig, s.InstanceID)
		}
	}
	return nil
}

// BootstrapIdentity returns the identity bootstrap requests must come from.
func (c *Config) BootstrapIdentity() (identity.Identity, error) {
	id, err := identity.ParseIdentity(c.Bootstrap.Server)
	if err != nil {
		return identity.Identity{}, err
	}
	id.PSKIdentity = c.Bootstrap.PSKIdentity
	return id, nil
}

// SlogLevel returns the configured log level, or info if it is invalid.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Populate adds the configured instances to store. If no Security instance
// is configured, one describing the bootstrap server is added as instance 0.
func (c *Config) Populate(store *objects.Store) error {
	security := c.Security
	if len(security) == 0 {
		security = []SecurityEntry{{
			ServerURI:       "coap://" + c.Bootstrap.Server,
			BootstrapServer: true,
			Mode:            "nosec",
		}}
	}

	for _, s := range security {
		mode, err := parseMode(s.Mode)
		if err != nil {
			return fmt.Errorf("%w: security instance %d: %w", ErrInvalidConfig, s.InstanceID, err)
		}
		key, err := hex.DecodeString(s.SecretKey)
		if err != nil {
			return fmt.Errorf("%w: security instance %d: secret_key: %w", ErrInvalidConfig, s.InstanceID, err)
		}
		inst := objects.NewSecurityInstance(objects.SecurityConfig{
			ServerURI:           s.ServerURI,
			BootstrapServer:     s.BootstrapServer,
			Mode:                mode,
			PublicKeyOrIdentity: []byte(s.Identity),
			SecretKey:           key,
			ShortServerID:       s.ShortServerID,
		})
		if err := store.AddInstance(wire.ObjectSecurity, s.InstanceID, inst); err != nil {
			return err
		}
	}

	for _, s := range c.Servers {
		binding := objects.BindingMode(s.Binding)
		if binding == "" {
			binding = objects.BindingU
		}
		lifetime := s.Lifetime
		if lifetime == 0 {
			lifetime = DefaultLifetime
		}
		inst := objects.NewServerInstance(s.ShortServerID, lifetime, binding, s.NotifyWhenDisable)
		if err := store.AddInstance(wire.ObjectServer, s.InstanceID, inst); err != nil {
			return err
		}
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

func parseMode(s string) (objects.SecurityMode, error) {
	switch strings.ToLower(s) {
	case "psk":
		return objects.SecurityModePSK, nil
	case "rpk":
		return objects.SecurityModeRPK, nil
	case "x509":
		return objects.SecurityModeX509, nil
	case "", "nosec", "no_sec":
		return objects.SecurityModeNoSec, nil
	default:
		return 0, fmt.Errorf("unknown security mode %q", s)
	}
}
