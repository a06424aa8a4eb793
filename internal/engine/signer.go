package engine

// Signer signs and checks commit hashes. The Ed25519 implementation lives
// in internal/identity.
type Signer interface {
	// Available reports whether signing key material is loaded.
	Available() bool

	// Sign returns the hex-encoded signature over message.
	Sign(message []byte) (string, error)

	// Verify reports whether signature is valid over message.
	Verify(message []byte, signature string) bool
}
