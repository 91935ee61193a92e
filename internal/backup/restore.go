package backup

import (
	"fmt"

	"github.com/okulov/OTPKeeper/internal/models"
	"github.com/okulov/OTPKeeper/internal/vault"
)

// Restore re-inserts imported records into the vault as new tokens:
// identifiers from the backup are discarded, so the vault's collision
// suffixing produces disambiguated copies instead of overwriting
// anything. Restore only ever adds entries.
func Restore(v *vault.Vault, records []models.TokenRecord) (added int, err error) {
	for _, rec := range records {
		rec.Identifier = ""
		if _, err := v.Save(rec); err != nil {
			return added, fmt.Errorf("restore %s (%s): %w", rec.IssuerName, rec.AccountName, err)
		}
		added++
	}
	return added, nil
}
