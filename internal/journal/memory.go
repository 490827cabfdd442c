package journal

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"tidy-go/internal/tidy"
)

// MemoryStore keeps journals in memory, encoded the same way FileStore
// writes them. Use in tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ tidy.JournalStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Save(root string, j *tidy.Journal) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encoding journal: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[filepath.Clean(root)] = data
	return nil
}

func (s *MemoryStore) Load(root string) (*tidy.Journal, error) {
	s.mu.Lock()
	data, ok := s.data[filepath.Clean(root)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return Decode(data)
}

func (s *MemoryStore) Invalidate(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, filepath.Clean(root))
	return nil
}

// SetRaw stores raw bytes as the journal for root.
func (s *MemoryStore) SetRaw(root string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[filepath.Clean(root)] = data
}

// Has reports whether a journal exists for root.
func (s *MemoryStore) Has(root string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[filepath.Clean(root)]
	return ok
}
