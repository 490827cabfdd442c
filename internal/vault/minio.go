package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// MinioVault mirrors backups into a bucket on MinIO or another
// S3-compatible server.
type MinioVault struct {
	name   string
	bucket string
	prefix string
	client *minio.Client
}

// NewMinioVault creates a MinIO vault. Credentials come from
// TIDY_S3_ACCESS_KEY/TIDY_S3_SECRET_KEY, or else the standard AWS and MinIO
// environment variables.
func NewMinioVault(cfg config.VaultConfig) (*MinioVault, error) {
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.EnvMinio{},
	})
	if id, secret := os.Getenv(EnvS3AccessKey), os.Getenv(EnvS3SecretKey); id != "" && secret != "" {
		creds = credentials.NewStaticV4(id, secret, "")
	}

	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  creds,
		Secure: !cfg.S3Insecure,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &MinioVault{
		name:   cfg.Name,
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
		client: client,
	}, nil
}

func (v *MinioVault) key(name string) string {
	return path.Join(v.prefix, name)
}

// Put uploads an object.
func (v *MinioVault) Put(name string, r io.Reader, size int64) error {
	_, err := v.client.PutObject(context.Background(), v.bucket, v.key(name), r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// Get downloads an object into w.
func (v *MinioVault) Get(name string, w io.Writer) error {
	obj, err := v.client.GetObject(context.Background(), v.bucket, v.key(name), minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	defer obj.Close()

	if _, err := io.Copy(w, obj); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	return nil
}

// Exists reports whether an object is stored.
func (v *MinioVault) Exists(name string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	_, err := v.client.StatObject(ctx, v.bucket, v.key(name), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", name, err)
	}
	return true, nil
}

// ValidateSetup verifies that the bucket exists.
func (v *MinioVault) ValidateSetup() error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	ok, err := v.client.BucketExists(ctx, v.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", v.bucket, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, v.bucket)
	}
	return nil
}

var _ tidy.Vault = (*MinioVault)(nil)
