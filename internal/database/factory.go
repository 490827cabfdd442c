package database

import (
	"fmt"
	"os"
	"path/filepath"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// HistoryFileName is the SQLite file kept in the data directory.
const HistoryFileName = "tidy.db"

// NewHistoryFromConfig creates a History implementation based on the database
// config type. The "none" type disables run history and returns nil.
func NewHistoryFromConfig(cfg config.DatabaseConfig, clock tidy.Clock) (tidy.History, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return openHistory(filepath.Join(cfg.DataDir, HistoryFileName), clock)
	case "memory":
		return openHistory(":memory:", clock)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

func openHistory(path string, clock tidy.Clock) (tidy.History, error) {
	h, err := NewSQLiteHistory(path, clock)
	if err != nil {
		return nil, err
	}
	return h, nil
}
