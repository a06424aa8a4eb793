package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hackia/lys-sub000/internal/encryption"
)

// Export writes the keypair to w as a passphrase-encrypted bundle. The
// bundle carries the seed followed by the public key.
func (id *Identity) Export(w io.Writer, passphrase string) error {
	if id.priv == nil {
		return ErrNoKey
	}

	enc, err := encryption.Encrypt(w, passphrase)
	if err != nil {
		return fmt.Errorf("opening bundle: %w", err)
	}
	if _, err := enc.Write(id.priv.Seed()); err != nil {
		return fmt.Errorf("writing secret key to bundle: %w", err)
	}
	if _, err := enc.Write(id.pub); err != nil {
		return fmt.Errorf("writing public key to bundle: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("sealing bundle: %w", err)
	}
	return nil
}

// Import decrypts an exported bundle from r with passphrase and installs
// the keypair under dir. An existing secret key is not overwritten.
func Import(r io.Reader, passphrase, dir string) (*Identity, error) {
	secretPath := filepath.Join(dir, secretKeyFile)
	if _, err := os.Stat(secretPath); err == nil {
		return nil, fmt.Errorf("secret key already exists at %s: %w", secretPath, os.ErrExist)
	}

	dec, err := encryption.Decrypt(r, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypting bundle: %w", err)
	}
	payload, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	if len(payload) != ed25519.SeedSize+ed25519.PublicKeySize {
		return nil, errors.New("bundle does not contain a keypair")
	}

	seed := payload[:ed25519.SeedSize]
	pub := payload[ed25519.SeedSize:]
	priv := ed25519.NewKeyFromSeed(seed)
	if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(pub)) {
		return nil, errors.New("bundle public key does not match its secret key")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}
	if err := os.WriteFile(secretPath, seed, 0o600); err != nil {
		return nil, fmt.Errorf("writing secret key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), pub, 0o644); err != nil {
		return nil, fmt.Errorf("writing public key: %w", err)
	}

	return &Identity{dir: dir, priv: priv, pub: ed25519.PublicKey(pub)}, nil
}
