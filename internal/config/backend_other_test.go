//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgdash", "config.json")

	b := newFileBackend(path)
	if _, ok, _ := b.GetString("api.base_url"); ok {
		t.Fatal("expected empty backend")
	}
	if err := b.SetString("api.base_url", "https://api.example.com"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file perm = %o, want 600", perm)
	}

	reloaded := newFileBackend(path)
	v, ok, err := reloaded.GetString("api.base_url")
	if err != nil || !ok {
		t.Fatalf("GetString: ok=%v err=%v", ok, err)
	}
	if v != "https://api.example.com" {
		t.Errorf("value = %q", v)
	}

	if err := reloaded.Delete("api.base_url"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetString("api.base_url"); ok {
		t.Error("key still present after Delete")
	}
}

func TestFileBackendCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newFileBackend(path)
	if _, ok, err := b.GetString("log.level"); ok || err != nil {
		t.Errorf("corrupt file should read as empty, got ok=%v err=%v", ok, err)
	}
}
