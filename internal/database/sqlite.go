package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tidy-go/internal/database/migrations"
	"tidy-go/internal/tidy"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistory implements the History interface using SQLite.
type SQLiteHistory struct {
	db    *sql.DB
	clock tidy.Clock
	path  string
}

// NewSQLiteHistory opens the history database at path and migrates it to the
// latest schema. path can be a file path or ":memory:" for in-memory database.
func NewSQLiteHistory(path string, clock tidy.Clock) (*SQLiteHistory, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}
	if clock == nil {
		clock = &tidy.RealClock{}
	}

	return &SQLiteHistory{db: db, clock: clock, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Run operations

func (s *SQLiteHistory) StartRun(root, operation, parameters string) (int64, error) {
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO runs (root, operation, parameters, started_at) VALUES (?, ?, ?, ?)`,
		root, operation, parameters, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}
	return id, nil
}

// FinishRun stores the final status. A nil summary leaves the counts at zero.
func (s *SQLiteHistory) FinishRun(id int64, status string, summary *tidy.Summary) error {
	var moved, errs, suspicious, skipped int
	if summary != nil {
		moved, errs, suspicious, skipped = summary.Moved, summary.Errors, summary.Suspicious, summary.Skipped
	}

	res, err := s.db.ExecContext(context.Background(),
		`UPDATE runs
		 SET finished_at = ?, status = ?, moved = ?, errors = ?, suspicious = ?, skipped = ?
		 WHERE id = ?`,
		s.clock.Now().UTC(), status, moved, errs, suspicious, skipped, id)
	if err != nil {
		return fmt.Errorf("updating run %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating run %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("run %d not found", id)
	}
	return nil
}

func (s *SQLiteHistory) ListRuns(root string, limit int) ([]*tidy.RunRecord, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, root, operation, parameters, started_at, finished_at, status, moved, errors, suspicious, skipped
		 FROM runs
		 WHERE ? = '' OR root = ?
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`,
		root, root, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*tidy.RunRecord
	for rows.Next() {
		var r tidy.RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Root, &r.Operation, &r.Parameters, &r.StartedAt, &finished,
			&r.Status, &r.Moved, &r.Errors, &r.Suspicious, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Backup catalog

func (s *SQLiteHistory) RecordBackup(rec *tidy.BackupRecord) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO backups (id, root, archive, manifest, created_at, file_count, total_size, encrypted, mirrored)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Root, rec.Archive, rec.Manifest, rec.CreatedAt.UTC(),
		rec.FileCount, rec.TotalSize, rec.Encrypted, rec.Mirrored)
	if err != nil {
		return fmt.Errorf("inserting backup %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteHistory) ListBackups(root string, limit int) ([]*tidy.BackupRecord, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, root, archive, manifest, created_at, file_count, total_size, encrypted, mirrored
		 FROM backups
		 WHERE ? = '' OR root = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		root, root, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	defer rows.Close()

	var backups []*tidy.BackupRecord
	for rows.Next() {
		var b tidy.BackupRecord
		var created time.Time
		if err := rows.Scan(&b.ID, &b.Root, &b.Archive, &b.Manifest, &created,
			&b.FileCount, &b.TotalSize, &b.Encrypted, &b.Mirrored); err != nil {
			return nil, fmt.Errorf("scanning backup: %w", err)
		}
		b.CreatedAt = created.UTC()
		backups = append(backups, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	return backups, nil
}

// Close closes the database connection.
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

// limitOrAll maps a non-positive limit to SQLite's "no limit".
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// Compile-time check that SQLiteHistory implements tidy.History interface
var _ tidy.History = (*SQLiteHistory)(nil)
