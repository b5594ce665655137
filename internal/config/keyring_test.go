package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyringStoreKeepsPasswordOutOfFile(t *testing.T) {
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "settings.ini")

	s := NewSettings()
	s.Username = "Uploader"
	s.Password = "hunter2"
	s.PasswordStore = PasswordStoreKeyring

	if err := Save(s, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "hunter2") {
		t.Error("password should not be written to the settings file")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Password != "hunter2" {
		t.Errorf("expected password from keyring, got %q", loaded.Password)
	}
}

func TestKeyringEntriesArePerSite(t *testing.T) {
	keyring.MockInit()

	a := NewSettings()
	a.Username = "Uploader"
	a.Password = "first"
	b := NewSettings()
	b.Site = "other.example.org"
	b.Username = "Uploader"

	if err := StoreKeyringPassword(a); err != nil {
		t.Fatal(err)
	}

	pw, err := KeyringPassword(b)
	if err != nil {
		t.Fatalf("missing entry should not be an error, got %v", err)
	}
	if pw != "" {
		t.Errorf("expected no password for another site, got %q", pw)
	}

	if err := DeleteKeyringPassword(a); err != nil {
		t.Fatal(err)
	}
	if pw, _ := KeyringPassword(a); pw != "" {
		t.Errorf("expected entry to be deleted, got %q", pw)
	}
	if err := DeleteKeyringPassword(a); err != nil {
		t.Errorf("deleting a missing entry should succeed, got %v", err)
	}
}

func TestStoreKeyringPasswordSkipsEmpty(t *testing.T) {
	keyring.MockInit()

	s := NewSettings()
	s.Username = "Uploader"
	s.Password = "kept"
	if err := StoreKeyringPassword(s); err != nil {
		t.Fatal(err)
	}

	s.Password = ""
	if err := StoreKeyringPassword(s); err != nil {
		t.Fatal(err)
	}
	if pw, _ := KeyringPassword(s); pw != "kept" {
		t.Errorf("empty password should not overwrite the entry, got %q", pw)
	}
}
