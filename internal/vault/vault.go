// Package vault implements identifier-indexed token storage on top of
// the secret service, keeping an insertion-ordered accounts index
// consistent with the set of stored records.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/okulov/OTPKeeper/internal/models"
	"github.com/okulov/OTPKeeper/internal/secrets"
)

const (
	// accountsListKey is the reserved index key inside the vault namespace.
	accountsListKey = "__accounts_list__"
	// autoLockKey holds the auto-lock timeout in seconds.
	autoLockKey = "__auto_lock_timeout_seconds__"
)

// ErrInvalidInput is returned when caller-supplied record data fails a
// precondition (empty required field, unsupported token type).
var ErrInvalidInput = errors.New("vault: invalid input")

// Vault owns the authoritative token records and the accounts index.
type Vault struct {
	store   secrets.Store
	service string
	// defaultAutoLock is used when no setting is stored. Seconds; 0 disables.
	defaultAutoLock int
	log             *zap.Logger
}

// New constructs a Vault over the given store and service namespace.
func New(store secrets.Store, service string, defaultAutoLock int, log *zap.Logger) *Vault {
	if log == nil {
		log = zap.NewNop()
	}
	return &Vault{store: store, service: service, defaultAutoLock: defaultAutoLock, log: log}
}

// Save stores a token record. With a non-empty identifier it overwrites
// that record in place (edit); otherwise it derives a new identifier
// from issuer and account, disambiguating collisions with a numeric
// suffix. Returns the identifier the record was stored under.
func (v *Vault) Save(rec models.TokenRecord) (string, error) {
	if rec.AccountName == "" || rec.IssuerName == "" || rec.SecretKey == "" {
		return "", fmt.Errorf("%w: account, issuer and secret are required", ErrInvalidInput)
	}
	rec.Normalize()
	if !rec.Type.Valid() {
		return "", fmt.Errorf("%w: unsupported token type %q", ErrInvalidInput, rec.Type)
	}

	id := rec.Identifier
	if id == "" {
		var err error
		id, err = v.newIdentifier(rec.IssuerName, rec.AccountName)
		if err != nil {
			return "", err
		}
	}

	blob, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	if err := v.store.Set(v.service, id, string(blob)); err != nil {
		return "", fmt.Errorf("store record: %w", err)
	}
	if err := v.addToIndex(id); err != nil {
		return "", err
	}
	return id, nil
}

// Get loads one token record. Returns secrets.ErrNotFound (wrapped) if
// no record exists under the identifier. Missing optional fields are
// defaulted here so callers never see a partial record.
func (v *Vault) Get(identifier string) (models.TokenRecord, error) {
	var rec models.TokenRecord
	blob, err := v.store.Get(v.service, identifier)
	if err != nil {
		return rec, fmt.Errorf("load record %q: %w", identifier, err)
	}
	if err := json.Unmarshal([]byte(blob), &rec); err != nil {
		return rec, fmt.Errorf("decode record %q: %w", identifier, err)
	}
	rec.Identifier = identifier
	rec.Normalize()
	return rec, nil
}

// Delete removes a record and its index entry. The index entry is
// removed unconditionally, even when the record delete itself fails for
// a reason other than not-found, so the index never retains stale
// identifiers.
func (v *Vault) Delete(identifier string) error {
	if err := v.store.Delete(v.service, identifier); err != nil && !errors.Is(err, secrets.ErrNotFound) {
		v.log.Warn("record delete failed, removing index entry anyway",
			zap.String("identifier", identifier), zap.Error(err))
	}
	return v.removeFromIndex(identifier)
}

// ListIdentifiers returns the accounts index in insertion order.
func (v *Vault) ListIdentifiers() ([]string, error) {
	blob, err := v.store.Get(v.service, accountsListKey)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load accounts index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(blob), &ids); err != nil {
		return nil, fmt.Errorf("decode accounts index: %w", err)
	}
	return ids, nil
}

// ListAll loads every indexed record. Records that fail to load or are
// missing a required field are skipped with a diagnostic instead of
// aborting the listing.
func (v *Vault) ListAll() ([]models.TokenRecord, error) {
	ids, err := v.ListIdentifiers()
	if err != nil {
		return nil, err
	}
	out := make([]models.TokenRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := v.Get(id)
		if err != nil {
			if errors.Is(err, secrets.ErrUnavailable) {
				return nil, err
			}
			v.log.Warn("skipping unreadable record", zap.String("identifier", id), zap.Error(err))
			continue
		}
		if !rec.Complete() {
			v.log.Warn("skipping record with missing required fields",
				zap.String("identifier", id),
				zap.String("account", rec.AccountName),
				zap.String("issuer", rec.IssuerName))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Search returns the records whose issuer or account contains the query,
// case-insensitively. An empty query matches everything.
func (v *Vault) Search(query string) ([]models.TokenRecord, error) {
	recs, err := v.ListAll()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return recs, nil
	}
	q := strings.ToLower(query)
	out := recs[:0]
	for _, r := range recs {
		if strings.Contains(strings.ToLower(r.IssuerName), q) ||
			strings.Contains(strings.ToLower(r.AccountName), q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// SetAutoLock persists the auto-lock timeout in seconds. 0 disables.
func (v *Vault) SetAutoLock(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: auto-lock timeout must be non-negative", ErrInvalidInput)
	}
	if err := v.store.Set(v.service, autoLockKey, strconv.Itoa(seconds)); err != nil {
		return fmt.Errorf("store auto-lock setting: %w", err)
	}
	return nil
}

// AutoLock returns the stored auto-lock timeout, falling back to the
// configured default when absent or unreadable.
func (v *Vault) AutoLock() int {
	raw, err := v.store.Get(v.service, autoLockKey)
	if err != nil {
		return v.defaultAutoLock
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		v.log.Warn("ignoring malformed auto-lock setting", zap.String("value", raw))
		return v.defaultAutoLock
	}
	return seconds
}

func (v *Vault) addToIndex(identifier string) error {
	ids, err := v.ListIdentifiers()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == identifier {
			return nil
		}
	}
	return v.writeIndex(append(ids, identifier))
}

func (v *Vault) removeFromIndex(identifier string) error {
	ids, err := v.ListIdentifiers()
	if err != nil {
		return err
	}
	kept := ids[:0]
	found := false
	for _, id := range ids {
		if id == identifier {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		return nil
	}
	return v.writeIndex(kept)
}

func (v *Vault) writeIndex(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	blob, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode accounts index: %w", err)
	}
	if err := v.store.Set(v.service, accountsListKey, string(blob)); err != nil {
		return fmt.Errorf("store accounts index: %w", err)
	}
	return nil
}
