package encryption

import (
	"fmt"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns nil when encryption is disabled.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (tidy.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
