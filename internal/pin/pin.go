// Package pin implements the application PIN gate: a salted PBKDF2
// credential stored in its own secret-service namespace.
package pin

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/okulov/OTPKeeper/internal/secrets"
)

const (
	saltKey = "app_pin_salt"
	hashKey = "app_pin_hash"

	saltLen    = 16
	iterations = 100000
	keyLen     = sha256.Size

	// MinLength is the minimum accepted PIN length.
	MinLength = 4
)

// ErrTooShort is returned by Set when the PIN fails the length precondition.
var ErrTooShort = fmt.Errorf("pin: must be at least %d characters", MinLength)

// ErrMismatch is returned by Change when the old PIN does not verify.
var ErrMismatch = errors.New("pin: current PIN does not match")

// Gate owns the PIN credential lifecycle. The salt/hash pair is either
// fully present or fully absent; Set replaces it wholesale.
type Gate struct {
	store   secrets.Store
	service string
}

// NewGate constructs a Gate persisting into the given service namespace.
func NewGate(store secrets.Store, service string) *Gate {
	return &Gate{store: store, service: service}
}

func derive(pin string, salt []byte) []byte {
	return pbkdf2.Key([]byte(pin), salt, iterations, keyLen, sha256.New)
}

// IsSet reports whether a PIN credential exists. Storage unavailability
// is surfaced so the caller can tell "no PIN yet" from "cannot check".
func (g *Gate) IsSet() (bool, error) {
	if _, err := g.store.Get(g.service, saltKey); err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := g.store.Get(g.service, hashKey); err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Set hashes and stores the PIN with a fresh random salt, replacing any
// existing credential. Iteration count changes only affect PINs set
// afterwards; old credentials keep verifying with their stored salt.
func (g *Gate) Set(pin string) error {
	if len(pin) < MinLength {
		return ErrTooShort
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	hash := derive(pin, salt)

	if err := g.store.Set(g.service, saltKey, hex.EncodeToString(salt)); err != nil {
		return fmt.Errorf("store salt: %w", err)
	}
	if err := g.store.Set(g.service, hashKey, hex.EncodeToString(hash)); err != nil {
		return fmt.Errorf("store hash: %w", err)
	}
	return nil
}

// Verify checks the PIN against the stored credential. An absent
// credential verifies as false. The comparison covers the full digest.
func (g *Gate) Verify(pin string) (bool, error) {
	saltHex, err := g.store.Get(g.service, saltKey)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	hashHex, err := g.store.Get(g.service, hashKey)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, fmt.Errorf("decode stored salt: %w", err)
	}
	stored, err := hex.DecodeString(hashHex)
	if err != nil {
		return false, fmt.Errorf("decode stored hash: %w", err)
	}

	attempt := derive(pin, salt)
	return subtle.ConstantTimeCompare(attempt, stored) == 1, nil
}

// Change verifies the old PIN and replaces the credential with a new
// one. Returns ErrMismatch when the old PIN does not verify.
func (g *Gate) Change(oldPin, newPin string) error {
	ok, err := g.Verify(oldPin)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMismatch
	}
	return g.Set(newPin)
}
