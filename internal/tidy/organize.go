package tidy

import (
	"context"
	"errors"
	"fmt"
)

// Plan enumerates the eligible files of root and returns the ordered plan
// without touching the filesystem. The summary counts every entry as planned.
func (s *TidyService) Plan(ctx context.Context, root string, opts PlanOptions) ([]PlanEntry, *Summary, error) {
	rootPath, err := s.resolveRoot(root)
	if err != nil {
		return nil, nil, err
	}

	records, err := s.eligibleFiles(rootPath)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	entries := BuildPlan(rootPath.String(), records, opts, s.clock.Now(), s.fsmgr.Exists)

	summary := newSummary(true)
	for _, e := range entries {
		if e.Suspicious {
			summary.Suspicious++
		}
		summary.record(Outcome{
			Source:      e.Record.Path,
			Destination: e.Destination,
			Category:    e.Category,
			Suspicious:  e.Suspicious,
			Status:      StatusPlanned,
		})
	}

	s.logger.Debug("plan built", "root", rootPath.String(), "mode", opts.Mode.String(), "entries", len(entries), "suspicious", summary.Suspicious)
	return entries, summary, nil
}

// Execute performs the moves of a plan in order. A failed move is recorded
// on its outcome and the run continues with the next entry. When ctx is
// cancelled the remaining entries are reported as skipped.
//
// The journal is replaced only when at least one move succeeded. It is
// checkpointed while the run progresses so an interrupted run can still be
// undone up to the last checkpoint.
func (s *TidyService) Execute(ctx context.Context, root string, entries []PlanEntry, opts PlanOptions) (*Summary, error) {
	rootPath, err := s.resolveRoot(root)
	if err != nil {
		return nil, err
	}

	journal := &Journal{
		Version:   JournalVersion,
		ID:        s.idgen.New(),
		Root:      rootPath.String(),
		Mode:      opts.Mode.String(),
		CreatedAt: s.clock.Now(),
	}

	summary := newSummary(false)
	for _, e := range entries {
		if e.Suspicious {
			summary.Suspicious++
			journal.Suspicious++
		}
	}

	every := opts.checkpointEvery()
	for i, e := range entries {
		outcome := Outcome{
			Source:      e.Record.Path,
			Destination: e.Destination,
			Category:    e.Category,
			Suspicious:  e.Suspicious,
		}

		if err := ctx.Err(); err != nil {
			outcome.Status = StatusSkipped
			outcome.Err = err
			summary.record(outcome)
			continue
		}

		if err := s.moveEntry(journal, e); err != nil {
			outcome.Status = StatusFailed
			outcome.Err = err
			s.logger.Warn("move failed", "source", e.Record.Path, "destination", e.Destination, "error", err)
		} else {
			outcome.Status = StatusMoved
			s.logger.Debug("file moved", "source", e.Record.Path, "destination", e.Destination, "category", string(e.Category), "suspicious", e.Suspicious)

			if every > 0 && len(journal.Moves)%every == 0 {
				if err := s.journal.Save(rootPath.String(), journal); err != nil {
					s.logger.Warn("journal checkpoint failed", "root", rootPath.String(), "error", err)
				}
			}
		}
		summary.record(outcome)
		opts.progress(i+1, len(entries), e.Record.Name)
	}

	if len(journal.Moves) > 0 {
		summary.JournalID = journal.ID
		if err := s.journal.Save(rootPath.String(), journal); err != nil {
			return summary, fmt.Errorf("saving undo journal: %w", err)
		}
	}

	s.logger.Info("organize finished",
		"root", rootPath.String(),
		"moved", summary.Moved,
		"errors", summary.Errors,
		"skipped", summary.Skipped,
		"suspicious", summary.Suspicious,
	)
	return summary, nil
}

// moveEntry creates the destination folder and moves one file. The move is
// appended to the journal only after it succeeded.
func (s *TidyService) moveEntry(journal *Journal, e PlanEntry) error {
	dir := e.DestinationDir()
	created, err := s.fsmgr.MkdirAll(dir)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if created {
		journal.CreatedDirs = append(journal.CreatedDirs, dir)
	}

	if err := s.fsmgr.Move(e.Record.Path, e.Destination); err != nil {
		return fmt.Errorf("moving %s: %w", e.Record.Name, err)
	}

	journal.Moves = append(journal.Moves, MoveRecord{
		Source:      e.Record.Path,
		Destination: e.Destination,
		MovedAt:     s.clock.Now(),
		Category:    e.Category,
		Suspicious:  e.Suspicious,
	})
	return nil
}

// Organize takes the optional backup, plans and executes. In dry-run mode it
// only plans. A failed backup aborts the run with ErrBackupWrite unless
// opts.AllowBackupFailure is set.
func (s *TidyService) Organize(ctx context.Context, root string, opts PlanOptions) (*Summary, error) {
	return s.track(root, "organize", organizeParameters(opts), func() (*Summary, error) {
		if opts.DryRun {
			_, summary, err := s.Plan(ctx, root, opts)
			return summary, err
		}

		if _, err := s.resolveRoot(root); err != nil {
			return nil, err
		}

		var manifest *BackupManifest
		if opts.BackupDest != "" {
			m, err := s.Backup(ctx, root, opts.BackupDest)
			switch {
			case err == nil:
				manifest = m
			case opts.AllowBackupFailure && errors.Is(err, ErrBackupWrite):
				s.logger.Warn("backup failed, continuing without it", "root", root, "error", err)
			default:
				return nil, err
			}
		}

		entries, _, err := s.Plan(ctx, root, opts)
		if err != nil {
			return nil, err
		}

		summary, err := s.Execute(ctx, root, entries, opts)
		if summary != nil {
			summary.Backup = manifest
		}
		return summary, err
	})
}

func organizeParameters(opts PlanOptions) string {
	p := fmt.Sprintf("mode=%s sort=%s order=%s", opts.Mode, opts.SortField, opts.SortOrder)
	if opts.DryRun {
		p += " dry_run=true"
	}
	if opts.BackupDest != "" {
		p += " backup=" + opts.BackupDest
	}
	return p
}
