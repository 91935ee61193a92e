package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Keyring is the production Store backed by the OS keyring
// (Secret Service on Linux, Keychain on macOS, Credential Manager on
// Windows).
type Keyring struct{}

// NewKeyring returns a Store backed by the OS keyring.
func NewKeyring() *Keyring { return &Keyring{} }

// Set stores value in the OS keyring.
func (k *Keyring) Set(service, key, value string) error {
	if err := keyring.Set(service, key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get reads value from the OS keyring.
func (k *Keyring) Get(service, key string) (string, error) {
	v, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

// Delete removes key from the OS keyring.
func (k *Keyring) Delete(service, key string) error {
	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Probe checks that a keyring backend is actually usable by writing and
// removing a throwaway entry. Called once at startup: a vault without a
// backend cannot function at all.
func (k *Keyring) Probe(service string) error {
	const probeKey = "__probe__"
	if err := k.Set(service, probeKey, "ok"); err != nil {
		return err
	}
	return k.Delete(service, probeKey)
}
