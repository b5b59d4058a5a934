package crypto

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/caskstore/cask/pkg/storage"
)

// ErrNoMatchingKey is returned when none of the candidate keys opens the
// object being reencrypted.
var ErrNoMatchingKey = errors.New("no candidate key decrypts this object")

// Reencrypt downloads the object at path, opens it with the first
// candidate key that authenticates, seals it with newKey and writes it
// back in place.
//
// Candidate keys are tried in order. A key that fails authentication is
// skipped; any other failure aborts immediately without touching the
// stored object. The object is only overwritten after the new ciphertext
// has been produced in full.
func Reencrypt(ctx context.Context, backend storage.Backend, path string, oldKeys [][]byte, newKey []byte) error {
	if len(oldKeys) == 0 {
		return fmt.Errorf("at least one candidate key is required")
	}

	ciphertext, err := storage.ReadAll(ctx, backend, path)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", path, err)
	}

	var plaintext []byte
	found := false
	for _, key := range oldKeys {
		plaintext, err = Decrypt(key, ciphertext)
		if err == nil {
			found = true
			break
		}
		if !errors.Is(err, ErrWrongKey) {
			return fmt.Errorf("decrypting %s: %w", path, err)
		}
	}
	if !found {
		return fmt.Errorf("reencrypting %s: %w", path, ErrNoMatchingKey)
	}

	sealed, err := Encrypt(newKey, plaintext)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", path, err)
	}

	if _, err := storage.Upload(ctx, backend, bytes.NewReader(sealed), path, nil); err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	return nil
}
