package fs

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"tidy-go/internal/tidy"
)

// tempPattern names the temp files of atomic writes. It is matched by the
// default ignore patterns so a leftover temp file is never organized.
const tempPattern = ".tidy-tmp-*"

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a filesystem manager that ignores the
// default bookkeeping patterns plus ignorePatterns.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: NewIgnoreMatcher(ignorePatterns)}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*tidy.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return tidy.NewPath(absPath, info.IsDir(), info), nil
}

// FindFiles returns the regular files directly inside dir, sorted by name.
// Symlinks and special files are skipped.
func (m *OSFilesystemManager) FindFiles(dir *tidy.Path) ([]*tidy.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	entries, err := os.ReadDir(dir.String())
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var paths []*tidy.Path
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		fullPath := filepath.Join(dir.String(), entry.Name())
		info, err := entry.Info()
		if err != nil {
			// Vanished or unreadable between ReadDir and stat: keep it with
			// unknown metadata so the planner still accounts for it.
			paths = append(paths, tidy.NewPath(fullPath, false, nil))
			continue
		}
		paths = append(paths, tidy.NewPath(fullPath, false, info))
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths, nil
}

// IsHidden reports whether the platform considers the file hidden.
func (m *OSFilesystemManager) IsHidden(p *tidy.Path) bool {
	return isHidden(p.String())
}

// IsIgnored reports whether name matches an ignore pattern.
func (m *OSFilesystemManager) IsIgnored(name string) bool {
	return m.ignore.Match(name)
}

// Exists reports whether anything, including a dangling symlink, is at path.
func (m *OSFilesystemManager) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Move renames src to dst without ever replacing dst. A hard link claims dst
// atomically where the filesystem supports it; otherwise an existence check
// and rename are used, and moves across devices fall back to a verified copy.
func (m *OSFilesystemManager) Move(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil {
		if err := os.Remove(src); err != nil {
			_ = os.Remove(dst)
			return fmt.Errorf("removing source after link: %w", err)
		}
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s: %w", dst, tidy.ErrDestinationExists)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if m.Exists(dst) {
		return fmt.Errorf("%s: %w", dst, tidy.ErrDestinationExists)
	}
	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	return moveAcrossDevices(src, dst)
}

// moveAcrossDevices copies src to a new dst, verifies size and SHA-256, then
// removes src.
func moveAcrossDevices(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", dst, tidy.ErrDestinationExists)
		}
		return err
	}

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && written != info.Size() {
		err = fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if err == nil && !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		err = fmt.Errorf("copy hash mismatch: file changed during copy")
	}
	if err != nil {
		_ = os.Remove(dst)
		return err
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserving modification time: %w", err)
	}
	return os.Remove(src)
}

// MkdirAll creates dir and its parents, reporting whether dir was created.
func (m *OSFilesystemManager) MkdirAll(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", dir)
		}
		return false, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveEmptyDir removes dir only when it is empty.
func (m *OSFilesystemManager) RemoveEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("directory not empty: %s", dir)
	}
	return os.Remove(dir)
}

// CreateExclusive creates a new file and fails if path exists.
func (m *OSFilesystemManager) CreateExclusive(path string, perm fs.FileMode) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return nil, err
	}
	// The umask may have masked perm.
	if err := f.Chmod(perm); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteAtomic writes via temp file, fsync and rename. The result is
// readable by the owner only.
func (m *OSFilesystemManager) WriteAtomic(path string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := fn(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

// Chtimes sets the access and modification time of path to mtime.
func (m *OSFilesystemManager) Chtimes(path string, mtime time.Time) error {
	return os.Chtimes(path, mtime, mtime)
}

// Remove deletes a single file.
func (m *OSFilesystemManager) Remove(path string) error {
	return os.Remove(path)
}

// Compile-time check that OSFilesystemManager implements tidy.FilesystemManager
var _ tidy.FilesystemManager = (*OSFilesystemManager)(nil)
