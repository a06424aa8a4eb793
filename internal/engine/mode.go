package engine

// File type bits mirror the POSIX st_mode layout used by the tree index.
const (
	modeTypeMask = 0o170000
	dirTypeBits  = 0o040000
	regTypeBits  = 0o100000

	// DirMode is the mode stored for directory tree nodes.
	DirMode int64 = dirTypeBits

	// DefaultFileMode is the permission recorded when the platform
	// provides none.
	DefaultFileMode int64 = 0o644
)

// IsDirMode reports whether mode describes a directory. Every caller goes
// through this predicate rather than comparing against raw constants.
func IsDirMode(mode int64) bool {
	return mode&modeTypeMask == dirTypeBits
}

// FileMode builds the st_mode-style value stored for a regular file with
// the given permission bits.
func FileMode(perm int64) int64 {
	return regTypeBits | (perm & 0o7777)
}

// PermBits extracts the permission bits from a stored mode.
func PermBits(mode int64) int64 {
	return mode & 0o7777
}
