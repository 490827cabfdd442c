package tidy

import (
	"context"
	"fmt"
	"path/filepath"
)

// Undo reverses the most recent organize run on root, newest move first.
//
// With no journal it reports NothingToUndo. A corrupt journal fails the call
// before any file is touched. Entries whose moved file vanished, or whose
// original location is occupied again, are recorded as per-entry errors.
// Folders the run created are removed when empty. The journal is
// invalidated once at least one file was restored, so undo is single-shot.
//
// In dry-run mode every restorable entry is reported as planned and nothing
// changes on disk.
func (s *TidyService) Undo(ctx context.Context, root string, dryRun bool) (*Summary, error) {
	params := ""
	if dryRun {
		params = "dry_run=true"
	}
	return s.track(root, "undo", params, func() (*Summary, error) {
		return s.undo(ctx, root, dryRun)
	})
}

func (s *TidyService) undo(ctx context.Context, root string, dryRun bool) (*Summary, error) {
	rootPath, err := s.resolveRoot(root)
	if err != nil {
		return nil, err
	}

	journal, err := s.journal.Load(rootPath.String())
	if err != nil {
		return nil, fmt.Errorf("loading undo journal: %w", err)
	}

	summary := newSummary(dryRun)
	if journal == nil {
		summary.NothingToUndo = true
		s.logger.Info("nothing to undo", "root", rootPath.String())
		return summary, nil
	}
	summary.JournalID = journal.ID
	summary.Suspicious = journal.Suspicious

	total := len(journal.Moves)
	for i := total - 1; i >= 0; i-- {
		m := journal.Moves[i]
		outcome := Outcome{
			Source:      m.Destination,
			Destination: m.Source,
			Category:    m.Category,
			Suspicious:  m.Suspicious,
		}

		if err := ctx.Err(); err != nil {
			outcome.Status = StatusSkipped
			outcome.Err = err
			summary.record(outcome)
			continue
		}

		if err := s.checkRestorable(m); err != nil {
			outcome.Status = StatusFailed
			outcome.Err = err
			s.logger.Warn("undo entry skipped", "destination", m.Destination, "source", m.Source, "error", err)
			summary.record(outcome)
			continue
		}

		if dryRun {
			outcome.Status = StatusPlanned
			summary.record(outcome)
			continue
		}

		if err := s.restoreMove(m); err != nil {
			outcome.Status = StatusFailed
			outcome.Err = err
			s.logger.Warn("undo move failed", "destination", m.Destination, "source", m.Source, "error", err)
		} else {
			outcome.Status = StatusMoved
			s.logger.Debug("file restored", "path", m.Source)
		}
		summary.record(outcome)
	}

	if dryRun {
		return summary, nil
	}

	s.removeCreatedDirs(journal.CreatedDirs)

	if summary.Moved > 0 || total == 0 {
		if err := s.journal.Invalidate(rootPath.String()); err != nil {
			return summary, fmt.Errorf("invalidating undo journal: %w", err)
		}
	}

	s.logger.Info("undo finished", "root", rootPath.String(), "restored", summary.Moved, "errors", summary.Errors)
	return summary, nil
}

func (s *TidyService) checkRestorable(m MoveRecord) error {
	if !s.fsmgr.Exists(m.Destination) {
		return fmt.Errorf("%s no longer exists", m.Destination)
	}
	if s.fsmgr.Exists(m.Source) {
		return fmt.Errorf("original location %s: %w", m.Source, ErrDestinationExists)
	}
	return nil
}

func (s *TidyService) restoreMove(m MoveRecord) error {
	if _, err := s.fsmgr.MkdirAll(filepath.Dir(m.Source)); err != nil {
		return fmt.Errorf("recreating %s: %w", filepath.Dir(m.Source), err)
	}
	if err := s.fsmgr.Move(m.Destination, m.Source); err != nil {
		return fmt.Errorf("moving back %s: %w", filepath.Base(m.Source), err)
	}
	return nil
}

// removeCreatedDirs deletes, deepest first, the folders an organize run
// created. Folders that still hold files are left alone.
func (s *TidyService) removeCreatedDirs(dirs []string) {
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := s.fsmgr.RemoveEmptyDir(dirs[i]); err != nil {
			s.logger.Debug("keeping folder", "path", dirs[i], "error", err)
		}
	}
}
