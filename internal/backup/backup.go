// Package backup serializes the whole vault into a password-encrypted
// envelope and restores it. The key derivation is deliberately much
// slower than the PIN's: backup files leave the host and must survive
// offline brute force.
package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/okulov/OTPKeeper/internal/models"
)

const (
	iterations = 390000
	saltLen    = 16
	nonceLen   = 12
	keyLen     = 32 // AES-256
)

var (
	// ErrDecryptionFailed covers wrong password, truncation and
	// tampering alike; AEAD cannot tell them apart and neither do we.
	ErrDecryptionFailed = errors.New("backup: decryption failed")
	// ErrFormatInvalid means the envelope or its decrypted payload is
	// not shaped like a backup.
	ErrFormatInvalid = errors.New("backup: invalid format")
)

// Codec encrypts and decrypts vault exports.
type Codec struct{}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// Export serializes records and encrypts them under a key derived from
// password. Salt and nonce are fresh per export, never reused.
func (c *Codec) Export(records []models.TokenRecord, password string) (*models.BackupEnvelope, error) {
	plaintext, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return &models.BackupEnvelope{
		Version:    models.BackupVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Import decrypts an envelope and parses the record list. Envelope shape
// problems are ErrFormatInvalid; any decryption failure is the single
// opaque ErrDecryptionFailed. Existing vault state is never touched here.
func (c *Codec) Import(env *models.BackupEnvelope, password string) ([]models.TokenRecord, error) {
	if env == nil || env.Version == "" || env.Salt == "" || env.Nonce == "" || env.Ciphertext == "" {
		return nil, fmt.Errorf("%w: missing required envelope fields", ErrFormatInvalid)
	}
	if env.Version != models.BackupVersion {
		return nil, fmt.Errorf("%w: unknown version %q", ErrFormatInvalid, env.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt encoding", ErrFormatInvalid)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonce) != nonceLen {
		return nil, fmt.Errorf("%w: bad nonce encoding", ErrFormatInvalid)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrFormatInvalid)
	}

	aead, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	var records []models.TokenRecord
	if err := json.Unmarshal(plaintext, &records); err != nil {
		return nil, fmt.Errorf("%w: payload is not a record list", ErrFormatInvalid)
	}
	for i := range records {
		if !records[i].Complete() {
			return nil, fmt.Errorf("%w: record %d is missing required fields", ErrFormatInvalid, i)
		}
		records[i].Normalize()
	}
	return records, nil
}
