package vault

import (
	"context"
	"path/filepath"
	"testing"

	"tidy-go/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.VaultConfig
		wantErr bool
		wantNil bool
	}{
		{
			name:    "no vault configured",
			cfg:     config.VaultConfig{},
			wantNil: true,
		},
		{
			name: "memory vault",
			cfg:  config.VaultConfig{Type: "memory", Name: "test-memory"},
		},
		{
			name: "filesystem vault",
			cfg: config.VaultConfig{
				Type:        "filesystem",
				Name:        "test-fs",
				FSVaultRoot: filepath.Join(t.TempDir(), "vault"),
			},
		},
		{
			name:    "filesystem vault without root",
			cfg:     config.VaultConfig{Type: "filesystem", Name: "test-fs"},
			wantErr: true,
			wantNil: true,
		},
		{
			name:    "s3 vault without bucket",
			cfg:     config.VaultConfig{Type: "s3", Name: "test-s3"},
			wantErr: true,
			wantNil: true,
		},
		{
			name:    "minio vault without endpoint",
			cfg:     config.VaultConfig{Type: "minio", Name: "test-minio", S3Bucket: "backups"},
			wantErr: true,
			wantNil: true,
		},
		{
			name: "minio vault",
			cfg: config.VaultConfig{
				Type:       "minio",
				Name:       "test-minio",
				S3Bucket:   "backups",
				S3Endpoint: "localhost:9000",
				S3Insecure: true,
			},
		},
		{
			name:    "unknown vault type",
			cfg:     config.VaultConfig{Type: "unknown", Name: "test-unknown"},
			wantErr: true,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVaultFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (v == nil) != tt.wantNil {
				t.Errorf("NewVaultFromConfig() returned nil = %v, wantNil %v", v == nil, tt.wantNil)
			}
		})
	}
}

func TestObjectKeys(t *testing.T) {
	s3v := &S3Vault{prefix: "tidy/backups"}
	if got := s3v.key("a.tar.gz"); got != "tidy/backups/a.tar.gz" {
		t.Errorf("S3Vault.key() = %q", got)
	}
	mv := &MinioVault{}
	if got := mv.key("a.tar.gz"); got != "a.tar.gz" {
		t.Errorf("MinioVault.key() = %q", got)
	}
}
