// Package migrations owns the schema of the run history database. The SQL
// lives in files/ and is embedded into the binary.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

var (
	ErrNoSchema     = errors.New("history database has no schema")
	ErrSchemaDirty  = errors.New("history database schema is dirty")
	ErrSchemaBehind = errors.New("history database schema is outdated")
	ErrSchemaAhead  = errors.New("history database was written by a newer tidy")
)

// Status is the schema version of a history database next to the version
// this binary ships. Current is 0 for a database that was never migrated.
type Status struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// Check returns nil when the database can be used as is.
func (s Status) Check() error {
	switch {
	case s.Current == 0 && !s.Dirty:
		return fmt.Errorf("%w: run any tidy command to create it", ErrNoSchema)
	case s.Dirty:
		return fmt.Errorf("%w: migration to version %d did not finish", ErrSchemaDirty, s.Current)
	case s.Current < s.Latest:
		return fmt.Errorf("%w: version %d, want %d", ErrSchemaBehind, s.Current, s.Latest)
	case s.Current > s.Latest:
		return fmt.Errorf("%w: version %d, this binary knows %d", ErrSchemaAhead, s.Current, s.Latest)
	}
	return nil
}

// MigrateUp brings db to the latest schema and returns the resulting status.
// A dirty database or one written by a newer binary is refused before any
// migration runs.
func MigrateUp(db *sql.DB) (Status, error) {
	m, err := newMigrator(db)
	if err != nil {
		return Status{}, err
	}
	// m.Close would close db, which the caller owns.
	st, err := m.status()
	if err != nil {
		return st, err
	}
	if st.Dirty || st.Current > st.Latest {
		return st, st.Check()
	}
	if st.Current == st.Latest {
		return st, nil
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return st, fmt.Errorf("applying history migrations: %w", err)
	}
	if st, err = m.status(); err != nil {
		return st, err
	}
	return st, st.Check()
}

type migrator struct {
	*migrate.Migrate
	latest uint
}

func newMigrator(db *sql.DB) (*migrator, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	latest, err := latestVersion(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("preparing history database: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("preparing history database: %w", err)
	}
	return &migrator{Migrate: m, latest: latest}, nil
}

func (m *migrator) status() (Status, error) {
	st := Status{Latest: m.latest}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading history schema version: %w", err)
	}
	st.Current, st.Dirty = version, dirty
	return st, nil
}

// latestVersion walks the source to its last migration.
func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
