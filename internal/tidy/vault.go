package tidy

import "io"

// Vault is an off-site mirror for backup archives and manifests.
// Objects are addressed by their file name; uploads stream from r so large
// archives never have to fit in memory.
type Vault interface {
	// Put stores an object. size is the number of bytes that will be read from r.
	Put(name string, r io.Reader, size int64) error

	// Get retrieves an object and writes it to w.
	Get(name string, w io.Writer) error

	// Exists reports whether an object with the given name is stored.
	Exists(name string) (bool, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
