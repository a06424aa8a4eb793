// Package identity manages the Ed25519 signing identity stored under the
// engine directory. The secret key file holds the raw 32-byte seed; the
// public key file holds the raw 32-byte public key.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	secretKeyFile = "secret.key"
	publicKeyFile = "public.key"
)

// ErrNoKey is returned when an operation needs key material that has not
// been generated or imported yet.
var ErrNoKey = errors.New("no signing identity")

// Identity holds the key material loaded from an identity directory. The
// private key is nil when only the public half is present.
type Identity struct {
	dir  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// Open loads whatever key material exists under dir. It succeeds with an
// empty identity when no keys have been generated yet.
func Open(dir string) (*Identity, error) {
	id := &Identity{dir: dir}

	seed, err := os.ReadFile(filepath.Join(dir, secretKeyFile))
	switch {
	case err == nil:
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("secret key is %d bytes, want %d", len(seed), ed25519.SeedSize)
		}
		id.priv = ed25519.NewKeyFromSeed(seed)
		id.pub = id.priv.Public().(ed25519.PublicKey)
	case errors.Is(err, os.ErrNotExist):
		// No secret key; fall through to look for a lone public key.
	default:
		return nil, fmt.Errorf("reading secret key: %w", err)
	}

	if id.pub == nil {
		pub, err := os.ReadFile(filepath.Join(dir, publicKeyFile))
		switch {
		case err == nil:
			if len(pub) != ed25519.PublicKeySize {
				return nil, fmt.Errorf("public key is %d bytes, want %d", len(pub), ed25519.PublicKeySize)
			}
			id.pub = ed25519.PublicKey(pub)
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading public key: %w", err)
		}
	}

	return id, nil
}

// Generate creates a fresh keypair under dir. It refuses to overwrite an
// existing secret key.
func Generate(dir string) (*Identity, error) {
	secretPath := filepath.Join(dir, secretKeyFile)
	if _, err := os.Stat(secretPath); err == nil {
		return nil, fmt.Errorf("secret key already exists at %s: %w", secretPath, os.ErrExist)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}

	if err := os.WriteFile(secretPath, priv.Seed(), 0o600); err != nil {
		return nil, fmt.Errorf("writing secret key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), pub, 0o644); err != nil {
		return nil, fmt.Errorf("writing public key: %w", err)
	}

	return &Identity{dir: dir, priv: priv, pub: pub}, nil
}

// Available reports whether a secret key is loaded and signing is possible.
func (id *Identity) Available() bool {
	return id.priv != nil
}

// Sign returns the hex-encoded Ed25519 signature over message.
func (id *Identity) Sign(message []byte) (string, error) {
	if id.priv == nil {
		return "", ErrNoKey
	}
	return hex.EncodeToString(ed25519.Sign(id.priv, message)), nil
}

// Verify reports whether signature is a valid hex-encoded signature over
// message for this identity's public key.
func (id *Identity) Verify(message []byte, signature string) bool {
	if id.pub == nil {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(id.pub, message, sig)
}

// PublicHex returns the hex-encoded public key, or "" when absent.
func (id *Identity) PublicHex() string {
	if id.pub == nil {
		return ""
	}
	return hex.EncodeToString(id.pub)
}

// Dir returns the identity directory this identity was loaded from.
func (id *Identity) Dir() string {
	return id.dir
}
