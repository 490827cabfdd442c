package tidy

import (
	"cmp"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/text/cases"
)

// DefaultCheckpointEvery is how many successful moves pass between journal
// checkpoints when PlanOptions.CheckpointEvery is zero.
const DefaultCheckpointEvery = 25

// PlanOptions controls a plan or organize run.
type PlanOptions struct {
	Mode      Mode
	SortField SortField
	SortOrder SortOrder
	DryRun    bool

	// BackupDest, when set, makes Organize take a backup into this directory
	// before moving anything.
	BackupDest string
	// AllowBackupFailure lets Organize continue when the backup fails.
	AllowBackupFailure bool

	// CheckpointEvery saves the journal after this many successful moves.
	// Negative disables checkpoints; the journal is still saved at the end.
	CheckpointEvery int

	// Progress is called after each file is handled.
	Progress func(done, total int, name string)
}

func (o *PlanOptions) checkpointEvery() int {
	if o.CheckpointEvery == 0 {
		return DefaultCheckpointEvery
	}
	return o.CheckpointEvery
}

func (o *PlanOptions) progress(done, total int, name string) {
	if o.Progress != nil {
		o.Progress(done, total, name)
	}
}

// BuildPlan turns a snapshot of eligible files into an ordered plan. It has
// no side effects: exists is the only view of the filesystem, and earlier
// entries claim their destinations before later ones are resolved.
func BuildPlan(root string, records []FileRecord, opts PlanOptions, now time.Time, exists func(string) bool) []PlanEntry {
	sorted := SortRecords(records, opts.SortField, opts.SortOrder)
	resolver := NewResolver(exists)

	entries := make([]PlanEntry, 0, len(sorted))
	for _, rec := range sorted {
		category := Classify(rec, opts.Mode, now)
		suspicious := IsSuspicious(rec)

		folder := category
		if suspicious {
			folder = SuspiciousCategory
		}

		entries = append(entries, PlanEntry{
			Record:      rec,
			Category:    category,
			Destination: resolver.Resolve(filepath.Join(root, string(folder)), rec.Name),
			Suspicious:  suspicious,
		})
	}
	return entries
}

// SortRecords returns a sorted copy of records. Names compare case-folded;
// ties on any key fall back to the raw name, ascending, so the result is
// deterministic across platforms.
func SortRecords(records []FileRecord, field SortField, order SortOrder) []FileRecord {
	out := slices.Clone(records)
	fold := cases.Fold()

	keys := make(map[string]string, len(out))
	for _, r := range out {
		keys[r.Path] = fold.String(r.Name)
	}

	slices.SortStableFunc(out, func(a, b FileRecord) int {
		var c int
		switch field {
		case SortByName:
			c = cmp.Compare(keys[a.Path], keys[b.Path])
		case SortByModified:
			c = a.ModTime.Compare(b.ModTime)
		case SortBySize:
			c = cmp.Compare(a.Size, b.Size)
		}
		if order == Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
