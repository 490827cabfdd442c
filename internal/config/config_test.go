package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir:          "/home/user/.local/share/tidy",
		LogDir:           "/var/log/tidy",
		LogLevel:         "debug",
		LogRetentionDays: 7,
		Organize:         OrganizeConfig{Mode: "date", SortBy: "size", SortOrder: "desc", CheckpointEvery: 10},
		Backup:           BackupConfig{Enabled: true, Dir: "/backups", AllowFailure: true},
		Vault:            VaultConfig{Type: "filesystem", Name: "local", FSVaultRoot: "/mnt/mirror"},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/tidy/keys/tidy.pub",
			PrivateKeyPath: "/home/user/.local/share/tidy/keys/tidy.key",
		},
		Database:   DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/tidy"},
		Filesystem: FilesystemConfig{Ignore: []string{"*.part", "desktop.ini"}},
	}

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogRetentionDays != 7 {
		t.Errorf("LogRetentionDays = %d, want 7", got.LogRetentionDays)
	}
	if got.Organize != original.Organize {
		t.Errorf("Organize = %+v, want %+v", got.Organize, original.Organize)
	}
	if got.Backup != original.Backup {
		t.Errorf("Backup = %+v, want %+v", got.Backup, original.Backup)
	}
	if got.Vault.FSVaultRoot != "/mnt/mirror" {
		t.Errorf("Vault.FSVaultRoot = %q, want %q", got.Vault.FSVaultRoot, "/mnt/mirror")
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if len(got.Filesystem.Ignore) != 2 {
		t.Fatalf("len(Filesystem.Ignore) = %d, want 2", len(got.Filesystem.Ignore))
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/tidy")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"log level", cfg.LogLevel, "info"},
		{"mode", cfg.Organize.Mode, "type"},
		{"sort by", cfg.Organize.SortBy, "name"},
		{"sort order", cfg.Organize.SortOrder, "asc"},
		{"backup dir", cfg.Backup.Dir, "/data/tidy/backups"},
		{"encryption type", cfg.Encryption.Type, "none"},
		{"public key", cfg.Encryption.PublicKeyPath, "/data/tidy/keys/tidy.pub"},
		{"private key", cfg.Encryption.PrivateKeyPath, "/data/tidy/keys/tidy.key"},
		{"database type", cfg.Database.Type, "sqlite"},
		{"database dir", cfg.Database.DataDir, "/data/tidy"},
		{"log dir", cfg.LogDir, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if cfg.LogRetentionDays != DefaultLogRetentionDays {
		t.Errorf("LogRetentionDays = %d, want %d", cfg.LogRetentionDays, DefaultLogRetentionDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown mode", func(c *Config) { c.Organize.Mode = "colour" }, true},
		{"unknown sort field", func(c *Config) { c.Organize.SortBy = "owner" }, true},
		{"unknown sort order", func(c *Config) { c.Organize.SortOrder = "random" }, true},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"s3 without bucket", func(c *Config) { c.Vault.Type = "s3" }, true},
		{"s3 with bucket", func(c *Config) { c.Vault = VaultConfig{Type: "s3", S3Bucket: "b"} }, false},
		{"minio without endpoint", func(c *Config) { c.Vault = VaultConfig{Type: "minio", S3Bucket: "b"} }, true},
		{"minio complete", func(c *Config) {
			c.Vault = VaultConfig{Type: "minio", S3Bucket: "b", S3Endpoint: "localhost:9000"}
		}, false},
		{"filesystem vault without root", func(c *Config) { c.Vault.Type = "filesystem" }, true},
		{"unknown vault", func(c *Config) { c.Vault.Type = "ftp" }, true},
		{"unknown encryption", func(c *Config) { c.Encryption.Type = "rot13" }, true},
		{"age without keys", func(c *Config) { c.Encryption = EncryptionConfig{Type: "age"} }, true},
		{"unknown database", func(c *Config) { c.Database.Type = "postgres" }, true},
		{"backup enabled without dir", func(c *Config) { c.Backup = BackupConfig{Enabled: true} }, true},
		{"missing base dir", func(c *Config) { c.BaseDir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data/tidy")
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		cfg := NewConfig(dir)
		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(filepath.Join(dir, "absent.toml"), dir)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, dir)
		}
		if cfg.Organize.Mode != "type" {
			t.Errorf("Organize.Mode = %q, want type", cfg.Organize.Mode)
		}
	})

	t.Run("partial file keeps defaults for the rest", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		content := "[organize]\nmode = \"size\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path, dir)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Organize.Mode != "size" {
			t.Errorf("Organize.Mode = %q, want size", cfg.Organize.Mode)
		}
		if cfg.Organize.SortBy != "name" {
			t.Errorf("Organize.SortBy = %q, want name", cfg.Organize.SortBy)
		}
	})

	t.Run("invalid file is rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		if err := os.WriteFile(path, []byte("[organize]\nmode = \"colour\"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path, dir); err == nil {
			t.Error("Load() expected validation error")
		}
	})

	t.Run("malformed toml is rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "tidy.toml")
		if err := os.WriteFile(path, []byte("mode = = ="), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path, dir); err == nil {
			t.Error("Load() expected decode error")
		}
	})
}
