package tidy

import "time"

// JournalVersion is the current on-disk journal format version.
// Readers accept any version up to and including this one.
const JournalVersion = 1

// Journal is the persisted record of the most recent organize run on a root.
// It is the single source of truth for undo.
type Journal struct {
	Version     int          `json:"version"`
	ID          string       `json:"id"`
	Root        string       `json:"root"`
	Mode        string       `json:"mode"`
	CreatedAt   time.Time    `json:"created_at"`
	Moves       []MoveRecord `json:"moves"`
	Suspicious  int          `json:"suspicious"`
	CreatedDirs []string     `json:"created_dirs,omitempty"`
}

// JournalStore persists one journal per target root.
type JournalStore interface {
	// Save atomically replaces the journal for root.
	Save(root string, j *Journal) error

	// Load returns the journal for root, or nil with no error when none exists.
	// A journal that cannot be parsed yields an error wrapping ErrJournalCorrupt.
	Load(root string) (*Journal, error)

	// Invalidate removes the journal for root. Removing a missing journal is not an error.
	Invalidate(root string) error
}
