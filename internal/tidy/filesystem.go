package tidy

import (
	"io"
	"io/fs"
	"time"
)

// FilesystemManager abstracts every filesystem side effect of the engine so
// the decision logic can be exercised against an in-memory implementation.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and rejects
	// symlinks, devices, pipes and sockets.
	Resolve(rawPath string) (*Path, error)

	// FindFiles returns the regular files that are direct children of dir,
	// ordered by name. Subdirectories are never descended into.
	FindFiles(dir *Path) ([]*Path, error)

	// IsHidden reports whether the platform considers the file hidden.
	IsHidden(p *Path) bool

	// IsIgnored reports whether a base name matches a bookkeeping or
	// user-configured ignore pattern.
	IsIgnored(name string) bool

	// Exists reports whether anything exists at path.
	Exists(path string) bool

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// Move renames src to dst. It never replaces an existing dst and returns
	// ErrDestinationExists instead.
	Move(src, dst string) error

	// MkdirAll creates dir and any missing parents. It reports whether dir
	// itself was newly created.
	MkdirAll(dir string) (bool, error)

	// RemoveEmptyDir removes dir only when it is empty.
	RemoveEmptyDir(dir string) error

	// CreateExclusive creates a new file for writing and fails if path exists.
	CreateExclusive(path string, perm fs.FileMode) (io.WriteCloser, error)

	// WriteAtomic writes the output of fn to path via a temp file in the same
	// directory followed by a rename, so readers never see a partial file.
	WriteAtomic(path string, fn func(w io.Writer) error) error

	// Chtimes sets the modification time of path.
	Chtimes(path string, mtime time.Time) error

	// Remove deletes a single file.
	Remove(path string) error
}
