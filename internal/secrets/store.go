// Package secrets abstracts the OS secret service used as the sole
// persistence backend. Values are addressed by (service, key) pairs;
// two logical service namespaces exist, one for the PIN credential and
// one for vault data.
package secrets

import "errors"

var (
	// ErrNotFound means the requested key has no stored value.
	ErrNotFound = errors.New("secrets: not found")
	// ErrUnavailable means no usable secret-service backend exists at
	// all. Callers must treat this differently from ErrNotFound: the
	// store could not be consulted, not "no such entry".
	ErrUnavailable = errors.New("secrets: backend unavailable")
)

// Store defines the persistence operations required by the vault and
// the PIN gate.
type Store interface {
	// Set stores value under (service, key), replacing any previous value.
	Set(service, key, value string) error
	// Get returns the value stored under (service, key).
	// Returns ErrNotFound (possibly wrapped) if nothing is stored there.
	Get(service, key string) (string, error)
	// Delete removes the value stored under (service, key).
	// Deleting an absent key returns ErrNotFound.
	Delete(service, key string) error
}
