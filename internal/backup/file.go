package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okulov/OTPKeeper/internal/models"
)

// WriteFile writes an envelope to path as UTF-8 JSON, atomically via a
// temp file and rename so a crash mid-write never leaves a truncated
// backup behind.
func WriteFile(path string, env *models.BackupEnvelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "otpkeeper-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename backup into place: %w", err)
	}
	_ = os.Chmod(path, 0600)
	return nil
}

// ReadFile loads an envelope from path. Shape problems surface as
// ErrFormatInvalid so callers need not distinguish file-level from
// envelope-level malformation.
func ReadFile(path string) (*models.BackupEnvelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	var env models.BackupEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: not a JSON envelope", ErrFormatInvalid)
	}
	return &env, nil
}
