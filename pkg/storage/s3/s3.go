package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/williamokano/backup_receiver/pkg/storage"
)

const (
	Type          = "object-store"
	defaultRegion = "us-east-1"
)

// uploader is the subset of *manager.Uploader the backend needs
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type Backend struct {
	name     string
	bucket   string
	prefix   string
	uploader uploader
}

// New creates a new S3 backend. No request is sent to the endpoint until the
// first Receive, so building a registry never blocks on the network.
func New(ctx context.Context, name string, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, storage.WrapError(name, "init", fmt.Errorf("missing required option bucket: %w", storage.ErrInvalidConfig))
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	// Build AWS config
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, storage.WrapError(name, "init", err)
	}

	// Create S3 client
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return newWithUploader(name, cfg, manager.NewUploader(client)), nil
}

func newWithUploader(name string, cfg Config, u uploader) *Backend {
	return &Backend{
		name:     name,
		bucket:   cfg.Bucket,
		prefix:   strings.TrimPrefix(cfg.Prefix, "/"),
		uploader: u,
	}
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return Type }

// Receive streams body to s3://bucket/prefix/destName. The uploader switches
// to a multipart upload when the body is larger than one part, which also
// covers bodies of unknown length.
func (b *Backend) Receive(ctx context.Context, destName string, body io.Reader, size int64) error {
	if destName == "" {
		return storage.WrapError(b.name, "upload", storage.ErrInvalidName)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(destName)),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return storage.WrapError(b.name, "upload", err)
	}

	return nil
}

func (b *Backend) key(destName string) string {
	if b.prefix == "" {
		return destName
	}
	return path.Join(b.prefix, destName)
}

// Close is a no-op for S3
func (b *Backend) Close() error {
	return nil
}
