package vault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okulov/OTPKeeper/internal/secrets"
)

// newIdentifier derives a stable identifier from the display fields:
// "<issuer>_<account>", lower-cased, spaces replaced with underscores.
// Collisions get an incrementing numeric suffix until a free slot is
// found. Identifiers never change after creation, so later renames of
// issuer or account are not reflected in them.
func (v *Vault) newIdentifier(issuer, account string) (string, error) {
	base := slug(issuer) + "_" + slug(account)
	candidate := base
	for n := 1; ; n++ {
		taken, err := v.exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}

func (v *Vault) exists(identifier string) (bool, error) {
	_, err := v.store.Get(v.service, identifier)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, secrets.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("probe identifier %q: %w", identifier, err)
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}
