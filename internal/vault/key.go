package vault

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// LoadOrCreateKey reads the master key at path or, when the file does not exist, generates one and
// writes it atomically with mode 0600.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: %s holds %d bytes", ErrInvalidKey, path, len(key))
		}
		return key, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	key = make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0600))
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	defer pending.Cleanup()

	if _, err := pending.Write(key); err != nil {
		return nil, fmt.Errorf("failed to write master key: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return nil, fmt.Errorf("failed to commit master key: %w", err)
	}
	return key, nil
}
