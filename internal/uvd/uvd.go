// Package uvd builds and verifies signed package archives. An archive
// is a zstd-compressed tar of the uvd/ staging directory followed by a
// JSON metadata footer and a little-endian u32 footer length:
//
//	[archive_data][metadata_json][u32_le len(metadata_json)]
//
// The metadata carries a Blake3 content hash of the compressed bytes
// and an Ed25519 signature over the hash of the unsigned metadata, so
// both tampering and re-signing are detectable. Verification failures
// delete the archive.
package uvd

// Extension is the required archive file extension.
const Extension = ".uvd"

const (
	stagingDirName = "uvd"
	treeDirName    = "tree"
	hooksDirName   = "hooks"
	manifestName   = "uvd.json"
	footerLenBytes = 4
)

// Signer produces hex signatures for archive metadata.
type Signer interface {
	Sign(message []byte) (string, error)
}

// Verifier checks hex signatures produced by a Signer.
type Verifier interface {
	Verify(message []byte, signature string) bool
}
