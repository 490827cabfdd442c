package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// Environment variables holding static credentials for the S3 and MinIO
// vaults. When unset, the SDK's default credential chain is used.
const (
	EnvS3AccessKey = "TIDY_S3_ACCESS_KEY"
	EnvS3SecretKey = "TIDY_S3_SECRET_KEY"
)

// requestTimeout bounds metadata requests; uploads and downloads are not bounded.
const requestTimeout = 30 * time.Second

// S3Vault mirrors backups into an S3 bucket under an optional prefix.
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Vault creates an S3 vault. A custom endpoint switches to path-style
// addressing for S3-compatible services.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if id, secret := os.Getenv(EnvS3AccessKey), os.Getenv(EnvS3SecretKey); id != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Vault{
		name:     cfg.Name,
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (v *S3Vault) key(name string) string {
	return path.Join(v.prefix, name)
}

// Put uploads an object using multipart upload for large archives.
func (v *S3Vault) Put(name string, r io.Reader, size int64) error {
	_, err := v.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(v.key(name)),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// Get downloads an object into w.
func (v *S3Vault) Get(name string, w io.Writer) error {
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(name)),
	})
	if err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	return nil
}

// Exists reports whether an object is stored.
func (v *S3Vault) Exists(name string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(name)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", name, err)
	}
	return true, nil
}

// ValidateSetup verifies that the bucket is reachable with the configured credentials.
func (v *S3Vault) ValidateSetup() error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		var notFound *types.NotFound
		var noSuchBucket *types.NoSuchBucket
		if errors.As(err, &notFound) || errors.As(err, &noSuchBucket) {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, v.bucket)
		}
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

var _ tidy.Vault = (*S3Vault)(nil)
