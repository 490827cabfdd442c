package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("TIDY_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("TIDY_HOME", "/custom/tidy")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/tidy" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/tidy")
		}
		if defaults["backup_dir"] != "/custom/tidy/backups" {
			t.Errorf("backup_dir = %q, want %q", defaults["backup_dir"], "/custom/tidy/backups")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("TIDY_CONFIG_PATH", "")
		t.Setenv("TIDY_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "tidy.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "tidy")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
	})
}
