package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestClientStateStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewClientStateStore(filepath.Join(t.TempDir(), "state.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		dir := t.TempDir()
		store := NewClientStateStore(filepath.Join(dir, "sub", "state.json"))

		finished := time.Now().Add(-time.Minute).Truncate(time.Second)
		state := &ClientState{
			BootstrappedAt: finished,
			Security: []SecurityRecord{
				{InstanceID: 0, ServerURI: "coap://bs.example:5683", BootstrapServer: true, SecurityMode: 3},
				{InstanceID: 1, ServerURI: "coaps://dm.example:5684", SecurityMode: 0,
					PublicKeyOrIdentity: []byte("dev-1"), SecretKey: []byte{0xde, 0xad}, ShortServerID: 101},
			},
			Servers: []ServerRecord{
				{InstanceID: 0, ShortServerID: 101, Lifetime: 300, Binding: "U"},
			},
		}

		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt not set")
		}
		if !got.BootstrappedAt.Equal(finished) {
			t.Errorf("BootstrappedAt = %v, want %v", got.BootstrappedAt, finished)
		}
		if len(got.Security) != 2 || len(got.Servers) != 1 {
			t.Fatalf("got %d security / %d servers", len(got.Security), len(got.Servers))
		}
		if string(got.Security[1].SecretKey) != "\xde\xad" {
			t.Errorf("SecretKey = %x", got.Security[1].SecretKey)
		}
		if got.Servers[0].Binding != "U" || got.Servers[0].Lifetime != 300 {
			t.Errorf("Server = %+v", got.Servers[0])
		}
	})

	t.Run("FilePermissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		store := NewClientStateStore(path)
		if err := store.Save(&ClientState{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("perm = %o, want 600", perm)
		}
	})

	t.Run("NewerVersionRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(`{"version": 99}`), 0600); err != nil {
			t.Fatal(err)
		}
		_, err := NewClientStateStore(path).Load()
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("Load() error = %v, want ErrUnsupportedVersion", err)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(`{not json`), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewClientStateStore(path).Load(); err == nil {
			t.Error("Load() should fail on corrupt file")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		store := NewClientStateStore(path)
		if err := store.Clear(); err != nil {
			t.Errorf("Clear() on missing file error = %v", err)
		}
		if err := store.Save(&ClientState{}); err != nil {
			t.Fatal(err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("state file still exists after Clear()")
		}
	})
}
