package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Default values applied by ApplyDefaults.
const (
	DefaultLogRetentionDays = 30
	DefaultCheckpointEvery  = 25
	DefaultHistoryLimit     = 20
)

// Config represents the main configuration for tidy.
type Config struct {
	BaseDir          string           `toml:"base_dir"`
	LogDir           string           `toml:"log_dir"` // empty: <root>/logs of the organized directory
	LogLevel         string           `toml:"log_level"`
	LogRetentionDays int              `toml:"log_retention_days"`
	Organize         OrganizeConfig   `toml:"organize"`
	Backup           BackupConfig     `toml:"backup"`
	Vault            VaultConfig      `toml:"vault"`
	Encryption       EncryptionConfig `toml:"encryption"`
	Database         DatabaseConfig   `toml:"database"`
	Filesystem       FilesystemConfig `toml:"filesystem"`
}

// OrganizeConfig holds the defaults for organize and plan runs.
type OrganizeConfig struct {
	Mode            string `toml:"mode"`       // "type", "date", "size" or "extension"
	SortBy          string `toml:"sort_by"`    // "name", "date" or "size"
	SortOrder       string `toml:"sort_order"` // "asc" or "desc"
	CheckpointEvery int    `toml:"checkpoint_every"`
}

// BackupConfig controls the backup taken before organizing.
type BackupConfig struct {
	Enabled      bool   `toml:"enabled"`
	Dir          string `toml:"dir"`
	AllowFailure bool   `toml:"allow_failure"`
}

// EncryptionConfig holds paths to the age key pair used for backup archives.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// VaultConfig configures the optional off-site mirror for backups.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "" (disabled), "memory", "filesystem", "s3" or "minio"
	Name string `toml:"name"`

	// S3 and MinIO fields
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // required for minio, optional for s3
	S3Insecure bool   `toml:"s3_insecure,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the run history database.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a Config rooted at baseDir with every default filled in.
func NewConfig(baseDir string) *Config {
	cfg := &Config{BaseDir: baseDir}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in every empty field that has a default.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogRetentionDays == 0 {
		c.LogRetentionDays = DefaultLogRetentionDays
	}
	if c.Organize.Mode == "" {
		c.Organize.Mode = "type"
	}
	if c.Organize.SortBy == "" {
		c.Organize.SortBy = "name"
	}
	if c.Organize.SortOrder == "" {
		c.Organize.SortOrder = "asc"
	}
	if c.Organize.CheckpointEvery == 0 {
		c.Organize.CheckpointEvery = DefaultCheckpointEvery
	}
	if c.Backup.Dir == "" && c.BaseDir != "" {
		c.Backup.Dir = filepath.Join(c.BaseDir, "backups")
	}
	if c.Encryption.Type == "" {
		c.Encryption.Type = "none"
	}
	if c.Encryption.PublicKeyPath == "" && c.BaseDir != "" {
		c.Encryption.PublicKeyPath = filepath.Join(c.BaseDir, "keys", "tidy.pub")
	}
	if c.Encryption.PrivateKeyPath == "" && c.BaseDir != "" {
		c.Encryption.PrivateKeyPath = filepath.Join(c.BaseDir, "keys", "tidy.key")
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.DataDir == "" && c.Database.Type == "sqlite" {
		c.Database.DataDir = c.BaseDir
	}
	if c.Vault.Type != "" && c.Vault.Name == "" {
		c.Vault.Name = c.Vault.Type
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseDir, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogRetentionDays, validation.Min(-1)),
	); err != nil {
		return err
	}
	if err := c.Organize.Validate(); err != nil {
		return fmt.Errorf("organize: %w", err)
	}
	if err := c.Backup.Validate(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := c.Encryption.Validate(); err != nil {
		return fmt.Errorf("encryption: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// Validate validates the organize defaults.
func (c *OrganizeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In("type", "date", "size", "extension", "ext")),
		validation.Field(&c.SortBy, validation.In("name", "date", "modified", "mtime", "size")),
		validation.Field(&c.SortOrder, validation.In("asc", "ascending", "desc", "descending")),
		validation.Field(&c.CheckpointEvery, validation.Min(-1)),
	)
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.When(c.Enabled, validation.Required)),
	)
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Type, validation.In("memory", "filesystem", "s3", "minio")),
		validation.Field(&c.S3Bucket, validation.When(c.Type == "s3" || c.Type == "minio", validation.Required)),
		validation.Field(&c.S3Endpoint, validation.When(c.Type == "minio", validation.Required)),
		validation.Field(&c.FSVaultRoot, validation.When(c.Type == "filesystem", validation.Required)),
	)
}

// Validate validates the encryption configuration.
func (c *EncryptionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Type, validation.In("none", "age", "test")),
		validation.Field(&c.PublicKeyPath, validation.When(c.Type == "age", validation.Required)),
		validation.Field(&c.PrivateKeyPath, validation.When(c.Type == "age", validation.Required)),
	)
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Type, validation.In("sqlite", "memory", "none")),
		validation.Field(&c.DataDir, validation.When(c.Type == "sqlite", validation.Required)),
	)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config at path, falling back to defaults rooted at baseDir
// when the file does not exist. The result has defaults applied and is
// validated.
func Load(path, baseDir string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	switch {
	case err == nil:
		if cfg.BaseDir == "" {
			cfg.BaseDir = baseDir
		}
	case errors.Is(err, fs.ErrNotExist):
		cfg = &Config{BaseDir: baseDir}
	default:
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file at path. It fails if the file already exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
