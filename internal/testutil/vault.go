package testutil

import (
	"tidy-go/internal/journal"
	"tidy-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

// NewTestJournalStore creates an in-memory journal store.
func NewTestJournalStore() *journal.MemoryStore {
	return journal.NewMemoryStore()
}
