package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"tidy-go/internal/tidy"
)

// FileName is the journal file kept at the top of each organized root.
const FileName = ".tidy_journal.json"

// AtomicWriter replaces a file in one step. The filesystem manager of the
// root being organized provides it.
type AtomicWriter interface {
	WriteAtomic(path string, fn func(w io.Writer) error) error
}

// FileStore keeps the journal as JSON inside the root it describes.
type FileStore struct {
	w AtomicWriter
}

var _ tidy.JournalStore = (*FileStore)(nil)

// NewFileStore creates a FileStore that saves through w.
func NewFileStore(w AtomicWriter) *FileStore {
	return &FileStore{w: w}
}

// Path returns the journal location for root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Save replaces the journal atomically, so a crash never leaves a
// half-written journal behind.
func (s *FileStore) Save(root string, j *tidy.Journal) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding journal: %w", err)
	}
	err = s.w.WriteAtomic(Path(root), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}
	return nil
}

// Load reads the journal for root. It returns nil, nil when there is none.
func (s *FileStore) Load(root string) (*tidy.Journal, error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return Decode(data)
}

// Invalidate removes the journal for root.
func (s *FileStore) Invalidate(root string) error {
	if err := os.Remove(Path(root)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing journal: %w", err)
	}
	return nil
}

// Decode parses a journal. Unknown fields are ignored; a missing or newer
// version, or malformed JSON, wraps tidy.ErrJournalCorrupt.
func Decode(data []byte) (*tidy.Journal, error) {
	var j tidy.Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", tidy.ErrJournalCorrupt, err)
	}
	if j.Version < 1 || j.Version > tidy.JournalVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", tidy.ErrJournalCorrupt, j.Version)
	}
	for i, m := range j.Moves {
		if m.Source == "" || m.Destination == "" {
			return nil, fmt.Errorf("%w: move %d is incomplete", tidy.ErrJournalCorrupt, i)
		}
	}
	return &j, nil
}
