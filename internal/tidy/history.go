package tidy

import "time"

// RunRecord is one row of the run history.
type RunRecord struct {
	ID         int64
	Root       string
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Moved      int
	Errors     int
	Suspicious int
	Skipped    int
}

// BackupRecord is one row of the backup catalog.
type BackupRecord struct {
	ID        string
	Root      string
	Archive   string
	Manifest  string
	CreatedAt time.Time
	FileCount int
	TotalSize int64
	Encrypted bool
	Mirrored  bool
}

// History stores run history and the backup catalog.
type History interface {
	// StartRun records the start of an operation and returns its ID.
	StartRun(root, operation, parameters string) (int64, error)

	// FinishRun stores the final status and counts of an operation.
	FinishRun(id int64, status string, summary *Summary) error

	// ListRuns returns the most recent runs, newest first. An empty root lists all roots.
	ListRuns(root string, limit int) ([]*RunRecord, error)

	// RecordBackup adds a backup to the catalog.
	RecordBackup(rec *BackupRecord) error

	// ListBackups returns catalogued backups for a root, newest first.
	ListBackups(root string, limit int) ([]*BackupRecord, error)

	// Close releases the underlying storage.
	Close() error
}

// GetHistory returns recent runs on root, newest first.
func (s *TidyService) GetHistory(root string, limit int) ([]*RunRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListRuns(root, limit)
}

// GetBackups returns catalogued backups of root, newest first.
func (s *TidyService) GetBackups(root string, limit int) ([]*BackupRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListBackups(root, limit)
}
