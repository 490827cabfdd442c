package tidy

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Mode selects the classification strategy for a run.
type Mode int

const (
	ModeType Mode = iota
	ModeDate
	ModeSize
	ModeExtension
)

// Modes lists every organization mode in CLI order.
var Modes = []Mode{ModeType, ModeDate, ModeSize, ModeExtension}

func (m Mode) String() string {
	switch m {
	case ModeType:
		return "type"
	case ModeDate:
		return "date"
	case ModeSize:
		return "size"
	case ModeExtension:
		return "extension"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a CLI/config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "type", "":
		return ModeType, nil
	case "date":
		return ModeDate, nil
	case "size":
		return ModeSize, nil
	case "extension", "ext":
		return ModeExtension, nil
	default:
		return ModeType, fmt.Errorf("unknown organization mode: %q (want type, date, size or extension)", s)
	}
}

// SortField is the key used to order eligible files before planning.
type SortField int

const (
	SortByName SortField = iota
	SortByModified
	SortBySize
)

func (f SortField) String() string {
	switch f {
	case SortByName:
		return "name"
	case SortByModified:
		return "date"
	case SortBySize:
		return "size"
	default:
		return fmt.Sprintf("sortfield(%d)", int(f))
	}
}

// ParseSortField converts a CLI/config string into a SortField.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "":
		return SortByName, nil
	case "date", "modified", "mtime":
		return SortByModified, nil
	case "size":
		return SortBySize, nil
	default:
		return SortByName, fmt.Errorf("unknown sort field: %q (want name, date or size)", s)
	}
}

// SortOrder is the direction of the sort.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (o SortOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// ParseSortOrder converts "asc"/"desc" into a SortOrder.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("unknown sort order: %q (want asc or desc)", s)
	}
}

// Category is the folder label a file is classified into.
type Category string

// SuspiciousCategory is the quarantine folder for flagged files.
const SuspiciousCategory Category = "Suspicious"

// FileRecord is an immutable snapshot of one eligible file taken at plan time.
// Size is -1 and ModTime is zero when the value could not be read.
type FileRecord struct {
	Path    string
	Name    string
	Ext     string
	Size    int64
	ModTime time.Time
	Hidden  bool
}

// NewFileRecord builds a FileRecord from a resolved path.
func NewFileRecord(p *Path, hidden bool) FileRecord {
	rec := FileRecord{
		Path:   p.String(),
		Name:   filepath.Base(p.String()),
		Size:   -1,
		Hidden: hidden,
	}
	rec.Ext = extensionOf(rec.Name)
	if info := p.Info(); info != nil {
		rec.Size = info.Size()
		rec.ModTime = info.ModTime()
	}
	return rec
}

// extensionOf returns the lowercase final extension without its dot.
// A leading dot alone (".bashrc") is not an extension.
func extensionOf(name string) string {
	ext := filepath.Ext(name)
	if ext == name || ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// PlanEntry is one intended move.
type PlanEntry struct {
	Record      FileRecord
	Category    Category
	Destination string
	Suspicious  bool
}

// DestinationDir is the folder the entry lands in.
func (e *PlanEntry) DestinationDir() string {
	return filepath.Dir(e.Destination)
}

// MoveRecord is a move that actually happened.
type MoveRecord struct {
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	MovedAt     time.Time `json:"moved_at"`
	Category    Category  `json:"category"`
	Suspicious  bool      `json:"suspicious"`
}

// OutcomeStatus is the per-file result of a run.
type OutcomeStatus string

const (
	StatusPlanned OutcomeStatus = "planned"
	StatusMoved   OutcomeStatus = "moved"
	StatusSkipped OutcomeStatus = "skipped"
	StatusFailed  OutcomeStatus = "failed"
)

// Outcome records what happened to a single file.
type Outcome struct {
	Source      string
	Destination string
	Category    Category
	Suspicious  bool
	Status      OutcomeStatus
	Err         error
}

// Summary is returned by every run regardless of partial failure.
// For undo and recovery, Moved counts files put back in place.
type Summary struct {
	DryRun        bool
	Planned       int
	Moved         int
	Skipped       int
	Errors        int
	Suspicious    int
	ByCategory    map[Category]int
	Outcomes      []Outcome
	Duration      time.Duration
	JournalID     string
	NothingToUndo bool
	Backup        *BackupManifest
}

func newSummary(dryRun bool) *Summary {
	return &Summary{DryRun: dryRun, ByCategory: make(map[Category]int)}
}

// HasErrors reports whether any file failed.
func (s *Summary) HasErrors() bool {
	return s.Errors > 0
}

func (s *Summary) record(o Outcome) {
	switch o.Status {
	case StatusPlanned:
		s.Planned++
		if o.Category != "" {
			s.ByCategory[o.Category]++
		}
	case StatusMoved:
		s.Moved++
		if o.Category != "" {
			s.ByCategory[o.Category]++
		}
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Errors++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// Failures returns the outcomes that ended in an error.
func (s *Summary) Failures() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}
