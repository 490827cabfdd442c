package testutil

import (
	"testing"

	"tidy-go/internal/database"
	"tidy-go/internal/tidy"
)

// NewTestHistory creates a migrated in-memory SQLite history store.
// It is closed automatically when the test completes.
func NewTestHistory(t *testing.T, clock tidy.Clock) *database.SQLiteHistory {
	t.Helper()

	h, err := database.NewSQLiteHistory(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}

	t.Cleanup(func() {
		h.Close()
	})

	return h
}
