// Package encryption wraps age's scrypt-based passphrase encryption for
// key material that leaves the repository.
package encryption

import (
	"fmt"
	"io"

	"filippo.io/age"
)

// Encrypt returns a writer that encrypts everything written to it under
// passphrase. The caller must Close it to seal the stream.
func Encrypt(w io.Writer, passphrase string) (io.WriteCloser, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("preparing passphrase recipient: %w", err)
	}

	enc, err := age.Encrypt(w, recipient)
	if err != nil {
		return nil, fmt.Errorf("opening encrypted stream: %w", err)
	}
	return enc, nil
}

// Decrypt returns a reader over the plaintext of a stream produced by
// Encrypt. A wrong passphrase fails here, before any data is read.
func Decrypt(r io.Reader, passphrase string) (io.Reader, error) {
	id, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("preparing passphrase identity: %w", err)
	}

	dec, err := age.Decrypt(r, id)
	if err != nil {
		return nil, fmt.Errorf("decrypting stream: %w", err)
	}
	return dec, nil
}
