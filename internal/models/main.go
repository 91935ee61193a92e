// Package models defines the core data structures for stored tokens
// and encrypted backups.
package models

// TokenType defines the set of supported one-time-password algorithms.
type TokenType string

const (
	// TOTP is a time-based token (RFC 6238), 30-second step, 6 digits.
	TOTP TokenType = "TOTP"
	// HOTP is a counter-based token (RFC 4226).
	HOTP TokenType = "HOTP"
)

// Valid reports whether t is one of the supported token types.
func (t TokenType) Valid() bool {
	return t == TOTP || t == HOTP
}

// TokenRecord is one stored OTP token. Identifier is the stable primary
// key into the secret service; the display fields may drift from it after
// edits and that is fine.
type TokenRecord struct {
	// Identifier uniquely names the record for its whole lifetime.
	Identifier string `json:"-"`
	// AccountName is the account the token belongs to (e.g. an email).
	AccountName string `json:"account_name"`
	// IssuerName is the service that issued the token (e.g. "GitHub").
	IssuerName string `json:"issuer_name"`
	// SecretKey is the Base32-encoded OTP seed.
	SecretKey string `json:"secret_key"`
	// Type is the token algorithm; defaults to TOTP when absent.
	Type TokenType `json:"type,omitempty"`
	// RecoveryCodes is an optional free-text blob of backup codes.
	RecoveryCodes string `json:"recovery_codes,omitempty"`
	// Counter is the moving factor for HOTP tokens; unused for TOTP.
	Counter uint64 `json:"counter,omitempty"`
}

// Normalize applies the read-side defaulting rules: a missing type
// becomes TOTP. Called once at the storage boundary so the rest of the
// code can rely on the fields being set.
func (r *TokenRecord) Normalize() {
	if r.Type == "" {
		r.Type = TOTP
	}
}

// Complete reports whether the record carries every required field.
// Records failing this check are excluded from listings.
func (r *TokenRecord) Complete() bool {
	return r.AccountName != "" && r.IssuerName != "" && r.SecretKey != ""
}

// BackupVersion tags the current encrypted backup envelope format.
const BackupVersion = "1.0_encrypted"

// BackupEnvelope is the on-disk shape of an encrypted vault export.
// Binary fields are base64-encoded for file portability.
type BackupEnvelope struct {
	Version    string `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}
