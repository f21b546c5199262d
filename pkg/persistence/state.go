package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrUnsupportedVersion is returned when a state file was written by a newer
// format version.
var ErrUnsupportedVersion = errors.New("unsupported state file version")

// ClientState contains the provisioned configuration of a client.
type ClientState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// BootstrappedAt is when the last bootstrap session finished.
	BootstrappedAt time.Time `json:"bootstrapped_at,omitempty"`

	// Security contains the Security object instances.
	Security []SecurityRecord `json:"security,omitempty"`

	// Servers contains the Server object instances.
	Servers []ServerRecord `json:"servers,omitempty"`
}

// SecurityRecord is a persisted Security object instance.
type SecurityRecord struct {
	InstanceID          uint16 `json:"instance_id"`
	ServerURI           string `json:"server_uri"`
	BootstrapServer     bool   `json:"bootstrap_server,omitempty"`
	SecurityMode        int64  `json:"security_mode"`
	PublicKeyOrIdentity []byte `json:"public_key_or_identity,omitempty"`
	SecretKey           []byte `json:"secret_key,omitempty"`
	ShortServerID       uint16 `json:"short_server_id,omitempty"`
}

// ServerRecord is a persisted Server object instance.
type ServerRecord struct {
	InstanceID        uint16 `json:"instance_id"`
	ShortServerID     uint16 `json:"short_server_id"`
	Lifetime          int64  `json:"lifetime"`
	Binding           string `json:"binding"`
	NotifyWhenDisable bool   `json:"notify_when_disable,omitempty"`
}

// ClientStateStore manages persistence of client state to a JSON file.
type ClientStateStore struct {
	mu   sync.Mutex
	path string
}

// NewClientStateStore creates a new client state store.
func NewClientStateStore(path string) *ClientStateStore {
	return &ClientStateStore{path: path}
}

// Path returns the state file path.
func (s *ClientStateStore) Path() string {
	return s.path
}

// Save persists the client state to disk. The file is replaced atomically.
func (s *ClientStateStore) Save(state *ClientState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Secret keys live in this file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the client state from disk.
// Returns nil, nil if the file doesn't exist (never bootstrapped).
func (s *ClientStateStore) Load() (*ClientState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &ClientState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, state.Version)
	}

	return state, nil
}

// Clear removes the state file.
func (s *ClientStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
