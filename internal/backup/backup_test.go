package backup

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/okulov/OTPKeeper/internal/models"
	"github.com/okulov/OTPKeeper/internal/secrets"
	"github.com/okulov/OTPKeeper/internal/vault"
)

func sampleRecords() []models.TokenRecord {
	return []models.TokenRecord{
		{
			AccountName:   "jane@example.com",
			IssuerName:    "GitHub",
			SecretKey:     "JBSWY3DPEHPK3PXP",
			Type:          models.TOTP,
			RecoveryCodes: "aaaa-bbbb\ncccc-dddd",
		},
		{
			AccountName: "ops@example.com",
			IssuerName:  "AWS",
			SecretKey:   "GEZDGNBVGEZDGNBV",
			Type:        models.HOTP,
			Counter:     7,
		},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	c := &Codec{}
	env, err := c.Export(sampleRecords(), "hunter2")
	require.NoError(t, err)
	assert.Equal(t, models.BackupVersion, env.Version)

	got, err := c.Import(env, "hunter2")
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := sampleRecords()
	for i := range want {
		assert.Equal(t, want[i].AccountName, got[i].AccountName)
		assert.Equal(t, want[i].IssuerName, got[i].IssuerName)
		assert.Equal(t, want[i].SecretKey, got[i].SecretKey)
		assert.Equal(t, want[i].Type, got[i].Type)
		assert.Equal(t, want[i].RecoveryCodes, got[i].RecoveryCodes)
		assert.Equal(t, want[i].Counter, got[i].Counter)
	}
}

func TestFreshSaltAndNoncePerExport(t *testing.T) {
	c := &Codec{}
	a, err := c.Export(sampleRecords(), "pw")
	require.NoError(t, err)
	b, err := c.Export(sampleRecords(), "pw")
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestImportWrongPassword(t *testing.T) {
	c := &Codec{}
	env, err := c.Export(sampleRecords(), "right")
	require.NoError(t, err)

	_, err = c.Import(env, "wrong")
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestImportTamperedCiphertext(t *testing.T) {
	c := &Codec{}
	env, err := c.Export(sampleRecords(), "pw")
	require.NoError(t, err)

	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)
	ct[len(ct)/2] ^= 0x01
	env.Ciphertext = base64.StdEncoding.EncodeToString(ct)

	_, err = c.Import(env, "pw")
	require.ErrorIs(t, err, ErrDecryptionFailed,
		"any single flipped byte must fail closed")
}

func TestImportRejectsMalformedEnvelopes(t *testing.T) {
	c := &Codec{}
	good, err := c.Export(sampleRecords(), "pw")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(e *models.BackupEnvelope)
	}{
		{"nil envelope", nil},
		{"missing salt", func(e *models.BackupEnvelope) { e.Salt = "" }},
		{"missing nonce", func(e *models.BackupEnvelope) { e.Nonce = "" }},
		{"missing ciphertext", func(e *models.BackupEnvelope) { e.Ciphertext = "" }},
		{"unknown version", func(e *models.BackupEnvelope) { e.Version = "2.0_future" }},
		{"salt not base64", func(e *models.BackupEnvelope) { e.Salt = "%%%" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.mutate == nil {
				_, err := c.Import(nil, "pw")
				require.ErrorIs(t, err, ErrFormatInvalid)
				return
			}
			env := *good
			tc.mutate(&env)
			_, err := c.Import(&env, "pw")
			require.ErrorIs(t, err, ErrFormatInvalid)
		})
	}
}

// Property: restore is additive. Importing a backup whose tokens match
// existing issuer+account pairs grows the vault instead of overwriting.
func TestRestoreIsAdditive(t *testing.T) {
	store := secrets.NewMemory()
	v := vault.New(store, "OTPKeeper_Test", 300, zap.NewNop())

	existing := models.TokenRecord{
		AccountName: "jane@example.com",
		IssuerName:  "GitHub",
		SecretKey:   "OLDSECRETOLDSECR",
	}
	existingID, err := v.Save(existing)
	require.NoError(t, err)

	added, err := Restore(v, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	ids, err := v.ListIdentifiers()
	require.NoError(t, err)
	assert.Len(t, ids, 3, "entry count grows by the imported count")

	kept, err := v.Get(existingID)
	require.NoError(t, err)
	assert.Equal(t, "OLDSECRETOLDSECR", kept.SecretKey, "existing record untouched")

	dup, err := v.Get(existingID + "_1")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", dup.SecretKey, "imported twin lands under a suffixed identifier")
}

func TestFileRoundTrip(t *testing.T) {
	c := &Codec{}
	env, err := c.Export(sampleRecords(), "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, WriteFile(path, env))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, env, loaded)

	recs, err := c.Import(loaded, "pw")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestReadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0600))

	_, err := ReadFile(path)
	require.ErrorIs(t, err, ErrFormatInvalid)
}
