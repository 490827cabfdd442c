package vault

import (
	"context"
	"errors"
	"fmt"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// ErrBucketNotFound is returned by ValidateSetup of the bucket-backed vaults
// when the configured bucket does not exist.
var ErrBucketNotFound = errors.New("bucket not found")

// NewVaultFromConfig creates a Vault implementation based on the vault config
// type. It returns nil when no vault is configured.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (tidy.Vault, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
		}
		v, err := NewS3Vault(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "minio":
		if cfg.S3Bucket == "" || cfg.S3Endpoint == "" {
			return nil, fmt.Errorf("minio vault requires s3_bucket and s3_endpoint to be set")
		}
		v, err := NewMinioVault(cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		v, err := NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
