package vault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"tidy-go/internal/tidy"
)

// FileSystemVault mirrors backups into a local or mounted directory.
// Objects are stored flat under the root, named as given:
//
//	<root>/
//	  tidy-backup-<stamp>-<id>.tar.gz
//	  tidy-backup-<stamp>-<id>.tar.gz.manifest.json
type FileSystemVault struct {
	name string
	root string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}
	return &FileSystemVault{name: name, root: root}, nil
}

func (v *FileSystemVault) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid object name: %q", name)
	}
	return filepath.Join(v.root, name), nil
}

// Put stores an object, replacing any previous object of the same name.
func (v *FileSystemVault) Put(name string, r io.Reader, size int64) error {
	destPath, err := v.path(name)
	if err != nil {
		return err
	}
	return v.writeFile(destPath, r, size)
}

// Get retrieves an object and writes it to w.
func (v *FileSystemVault) Get(name string, w io.Writer) error {
	srcPath, err := v.path(name)
	if err != nil {
		return err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("object not found: %s", name)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// Exists reports whether an object is stored.
func (v *FileSystemVault) Exists(name string) (bool, error) {
	p, err := v.path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ValidateSetup verifies that the vault directory is accessible.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}
	return nil
}

// writeFile writes data from r to destPath using temp file + rename.
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tidy-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements tidy.Vault interface
var _ tidy.Vault = (*FileSystemVault)(nil)
