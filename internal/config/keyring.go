package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/hamichlol/wikiup/internal/constants"
)

// Password stores.
const (
	PasswordStoreFile    = "file"
	PasswordStoreKeyring = "keyring"
)

// UsesKeyring reports whether the wiki password lives in the OS keyring.
func (s *Settings) UsesKeyring() bool {
	return strings.EqualFold(s.PasswordStore, PasswordStoreKeyring)
}

// keyringUser keys the entry by account and site so two wikis with the same
// user name don't share a password.
func keyringUser(s *Settings) string {
	return s.Username + "@" + s.Site
}

// KeyringPassword returns the stored password for the settings' account.
// A missing entry returns "" and no error.
func KeyringPassword(s *Settings) (string, error) {
	if s.Username == "" {
		return "", nil
	}
	pw, err := keyring.Get(constants.AppName, keyringUser(s))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read password from keyring: %w", err)
	}
	return pw, nil
}

// StoreKeyringPassword saves the password for the settings' account.
// An empty password leaves the existing entry alone.
func StoreKeyringPassword(s *Settings) error {
	if s.Username == "" || s.Password == "" {
		return nil
	}
	if err := keyring.Set(constants.AppName, keyringUser(s), s.Password); err != nil {
		return fmt.Errorf("failed to store password in keyring: %w", err)
	}
	return nil
}

// DeleteKeyringPassword removes the account's entry. A missing entry is not an error.
func DeleteKeyringPassword(s *Settings) error {
	if s.Username == "" {
		return nil
	}
	err := keyring.Delete(constants.AppName, keyringUser(s))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete password from keyring: %w", err)
	}
	return nil
}

func validatePasswordStore(store string) error {
	switch strings.ToLower(store) {
	case "", PasswordStoreFile, PasswordStoreKeyring:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStore, store)
	}
}
