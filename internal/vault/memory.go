package vault

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"tidy-go/internal/tidy"
)

// MemoryVault is an in-memory implementation of the Vault interface, useful
// for testing. It is safe for concurrent use.
type MemoryVault struct {
	name    string
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:    name,
		objects: make(map[string][]byte),
	}
}

// Put stores an object.
func (m *MemoryVault) Put(name string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return nil
}

// Get retrieves an object.
func (m *MemoryVault) Get(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[name]
	if !ok {
		return fmt.Errorf("object not found: %s", name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// Exists reports whether an object is stored.
func (m *MemoryVault) Exists(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[name]
	return ok, nil
}

// Names returns the stored object names, sorted.
func (m *MemoryVault) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.objects))
	for n := range m.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements tidy.Vault interface
var _ tidy.Vault = (*MemoryVault)(nil)
