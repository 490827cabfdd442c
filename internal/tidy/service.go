package tidy

import (
	"fmt"
	"strings"
)

// TidyService is the organization engine. It holds no per-root state; every
// operation takes the target root explicitly.
type TidyService struct {
	fsmgr     FilesystemManager
	journal   JournalStore
	vault     Vault
	encryptor Encryptor
	history   History
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewTidyService creates a TidyService. vault, encryptor and history are
// optional and may be nil. A nil logger, clock or idgen falls back to
// NopLogger, RealClock and UUIDGenerator.
func NewTidyService(fsmgr FilesystemManager, journal JournalStore, vault Vault, encryptor Encryptor, history History, logger Logger, clock Clock, idgen IDGenerator) *TidyService {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	return &TidyService{
		fsmgr:     fsmgr,
		journal:   journal,
		vault:     vault,
		encryptor: encryptor,
		history:   history,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// resolveRoot validates the target root. Any failure wraps ErrInvalidRoot.
func (s *TidyService) resolveRoot(root string) (*Path, error) {
	p, err := s.fsmgr.Resolve(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRoot, root, err)
	}
	if !p.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, p.String())
	}
	return p, nil
}

// eligibleFiles snapshots the regular, non-dotted, non-ignored direct
// children of root, in name order.
func (s *TidyService) eligibleFiles(root *Path) ([]FileRecord, error) {
	paths, err := s.fsmgr.FindFiles(root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root.String(), err)
	}

	records := make([]FileRecord, 0, len(paths))
	for _, p := range paths {
		rec := NewFileRecord(p, s.fsmgr.IsHidden(p))
		if strings.HasPrefix(rec.Name, ".") || s.fsmgr.IsIgnored(rec.Name) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// track records an operation in the run history around fn. History
// failures are logged and never fail the operation itself.
func (s *TidyService) track(root, operation, parameters string, fn func() (*Summary, error)) (*Summary, error) {
	start := s.clock.Now()

	var runID int64
	if s.history != nil {
		id, err := s.history.StartRun(root, operation, parameters)
		if err != nil {
			s.logger.Warn("recording run start failed", "operation", operation, "error", err)
		}
		runID = id
	}

	summary, err := fn()
	if summary != nil {
		summary.Duration = s.clock.Now().Sub(start)
	}

	if s.history != nil && runID != 0 {
		status := "completed"
		switch {
		case err != nil:
			status = "failed"
		case summary != nil && summary.HasErrors():
			status = "completed_with_errors"
		}
		if ferr := s.history.FinishRun(runID, status, summary); ferr != nil {
			s.logger.Warn("recording run finish failed", "operation", operation, "error", ferr)
		}
	}
	return summary, err
}
