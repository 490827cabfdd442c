package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	tidyfs "tidy-go/internal/fs"
	"tidy-go/internal/tidy"
)

// MockFile represents a file or directory in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
	Hidden      bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Paths are absolute and cleaned; parents are created implicitly by AddFile.
type MockFilesystemManager struct {
	mu        sync.Mutex
	files     map[string]*MockFile
	ignore    *tidyfs.IgnoreMatcher
	moveErrs  map[string]error
	writeErrs map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem with the default
// ignore patterns.
func NewMockFilesystemManager() *MockFilesystemManager {
	m := &MockFilesystemManager{
		files:     make(map[string]*MockFile),
		ignore:    tidyfs.NewIgnoreMatcher(nil),
		moveErrs:  make(map[string]error),
		writeErrs: make(map[string]error),
	}
	m.files["/"] = &MockFile{Permissions: 0755 | fs.ModeDir, IsDirectory: true}
	return m
}

// AddFile adds a file modified at a fixed time (see FixedClock).
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileAt(path, content, FixedClock().Now().Add(-time.Hour))
}

// AddFileAt adds a file with the given modification time.
func (m *MockFilesystemManager) AddFileAt(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.mkdirAllLocked(filepath.Dir(path))
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// AddHiddenFile adds a file the platform would report as hidden.
func (m *MockFilesystemManager) AddHiddenFile(path string, content []byte) {
	m.AddFile(path, content)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)].Hidden = true
}

// AddDirectory adds a directory and its parents.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(filepath.Clean(path))
}

// FailMove makes every move from src fail with err.
func (m *MockFilesystemManager) FailMove(src string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moveErrs[filepath.Clean(src)] = err
}

// FailWrite makes atomic and exclusive writes to path fail with err.
func (m *MockFilesystemManager) FailWrite(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErrs[filepath.Clean(path)] = err
}

// SetIgnorePatterns replaces the user ignore patterns.
func (m *MockFilesystemManager) SetIgnorePatterns(patterns []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignore = tidyfs.NewIgnoreMatcher(patterns)
}

// Content returns a copy of a file's content and whether it exists.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok || f.IsDirectory {
		return nil, false
	}
	return bytes.Clone(f.Content), true
}

// File returns the entry at path, or nil.
func (m *MockFilesystemManager) File(path string) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[filepath.Clean(path)]
}

// Files returns every regular file path under dir, recursively and sorted.
func (m *MockFilesystemManager) Files(dir string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(filepath.Clean(dir), "/") + "/"
	var out []string
	for p, f := range m.files {
		if !f.IsDirectory && strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

func (m *MockFilesystemManager) mkdirAllLocked(dir string) bool {
	if _, ok := m.files[dir]; ok {
		return false
	}
	if parent := filepath.Dir(dir); parent != dir {
		m.mkdirAllLocked(parent)
	}
	m.files[dir] = &MockFile{Permissions: 0755 | fs.ModeDir, ModTime: FixedClock().Now(), IsDirectory: true}
	return true
}

func (m *MockFilesystemManager) info(path string, f *MockFile) *mockFileInfo {
	return &mockFileInfo{
		name:     filepath.Base(path),
		size:     int64(len(f.Content)),
		mode:     f.Permissions,
		modTime:  f.ModTime,
		isDir:    f.IsDirectory,
		mockFile: f,
	}
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*tidy.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("stat path: %s: %w", absPath, fs.ErrNotExist)
	}
	return tidy.NewPath(absPath, file.IsDirectory, m.info(absPath, file)), nil
}

func (m *MockFilesystemManager) FindFiles(dir *tidy.Path) ([]*tidy.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for p, f := range m.files {
		if !f.IsDirectory && filepath.Dir(p) == dir.String() {
			names = append(names, p)
		}
	}
	slices.Sort(names)

	paths := make([]*tidy.Path, 0, len(names))
	for _, p := range names {
		paths = append(paths, tidy.NewPath(p, false, m.info(p, m.files[p])))
	}
	return paths, nil
}

func (m *MockFilesystemManager) IsHidden(p *tidy.Path) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[p.String()]
	return ok && f.Hidden
}

func (m *MockFilesystemManager) IsIgnored(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignore.Match(name)
}

func (m *MockFilesystemManager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(file.Content))), nil
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	file, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", path, fs.ErrNotExist)
	}
	return m.info(path, file), nil
}

func (m *MockFilesystemManager) Move(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, dst = filepath.Clean(src), filepath.Clean(dst)

	if err, ok := m.moveErrs[src]; ok {
		return err
	}
	file, ok := m.files[src]
	if !ok {
		return fmt.Errorf("move %s: %w", src, fs.ErrNotExist)
	}
	if _, ok := m.files[dst]; ok {
		return fmt.Errorf("move to %s: %w", dst, tidy.ErrDestinationExists)
	}
	if parent, ok := m.files[filepath.Dir(dst)]; !ok || !parent.IsDirectory {
		return fmt.Errorf("move to %s: parent directory: %w", dst, fs.ErrNotExist)
	}
	delete(m.files, src)
	m.files[dst] = file
	return nil
}

func (m *MockFilesystemManager) MkdirAll(dir string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = filepath.Clean(dir)
	if f, ok := m.files[dir]; ok {
		if !f.IsDirectory {
			return false, fmt.Errorf("mkdir %s: not a directory", dir)
		}
		return false, nil
	}
	for p := filepath.Dir(dir); ; p = filepath.Dir(p) {
		if f, ok := m.files[p]; ok && !f.IsDirectory {
			return false, fmt.Errorf("mkdir %s: %s is not a directory", dir, p)
		}
		if p == filepath.Dir(p) {
			break
		}
	}
	return m.mkdirAllLocked(dir), nil
}

func (m *MockFilesystemManager) RemoveEmptyDir(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = filepath.Clean(dir)
	f, ok := m.files[dir]
	if !ok || !f.IsDirectory {
		return fmt.Errorf("remove %s: %w", dir, fs.ErrNotExist)
	}
	for p := range m.files {
		if filepath.Dir(p) == dir && p != dir {
			return fmt.Errorf("remove %s: directory not empty", dir)
		}
	}
	delete(m.files, dir)
	return nil
}

func (m *MockFilesystemManager) CreateExclusive(path string, perm fs.FileMode) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if err, ok := m.writeErrs[path]; ok {
		return nil, err
	}
	if _, ok := m.files[path]; ok {
		return nil, fmt.Errorf("create %s: %w", path, fs.ErrExist)
	}
	if parent, ok := m.files[filepath.Dir(path)]; !ok || !parent.IsDirectory {
		return nil, fmt.Errorf("create %s: parent directory: %w", path, fs.ErrNotExist)
	}
	file := &MockFile{Permissions: perm, ModTime: FixedClock().Now()}
	m.files[path] = file
	return &mockWriter{fsmgr: m, file: file}, nil
}

func (m *MockFilesystemManager) WriteAtomic(path string, fn func(w io.Writer) error) error {
	m.mu.Lock()
	path = filepath.Clean(path)
	werr, failing := m.writeErrs[path]
	parent, hasParent := m.files[filepath.Dir(path)]
	m.mu.Unlock()

	if failing {
		return werr
	}
	if !hasParent || !parent.IsDirectory {
		return fmt.Errorf("write %s: parent directory: %w", path, fs.ErrNotExist)
	}

	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{Content: buf.Bytes(), Permissions: 0644, ModTime: FixedClock().Now()}
	return nil
}

func (m *MockFilesystemManager) Chtimes(path string, mtime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[filepath.Clean(path)]
	if !ok {
		return fmt.Errorf("chtimes %s: %w", path, fs.ErrNotExist)
	}
	file.ModTime = mtime
	return nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("remove %s: %w", path, fs.ErrNotExist)
	}
	delete(m.files, path)
	return nil
}

// mockWriter buffers content and commits it to the file on Close.
type mockWriter struct {
	fsmgr *MockFilesystemManager
	file  *MockFile
	buf   bytes.Buffer
}

func (w *mockWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *mockWriter) Close() error {
	w.fsmgr.mu.Lock()
	defer w.fsmgr.mu.Unlock()
	w.file.Content = bytes.Clone(w.buf.Bytes())
	return nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name     string
	size     int64
	mode     fs.FileMode
	modTime  time.Time
	isDir    bool
	mockFile *MockFile
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return m.mockFile }

// Compile-time check
var _ tidy.FilesystemManager = (*MockFilesystemManager)(nil)
