// Package cdk receives uploads into any bucket reachable through the
// "Cloud Development Kit": https://pkg.go.dev/gocloud.dev/blob
//
// The bucket is addressed by URL, so one backend kind covers S3, GCS, Azure
// Blob Storage and local directories.
package cdk

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/williamokano/backup_receiver/pkg/storage"
)

const Type = "blob"

type Backend struct {
	name   string
	bucket *blob.Bucket
}

// New opens the bucket named by cfg.URL
func New(ctx context.Context, name string, cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, storage.WrapError(name, "init", fmt.Errorf("missing required option url: %w", storage.ErrInvalidConfig))
	}

	bucket, err := blob.OpenBucket(ctx, cfg.URL)
	if err != nil {
		return nil, storage.WrapError(name, "open bucket", err)
	}

	return NewFromBucket(name, bucket, cfg.Prefix), nil
}

// NewFromBucket wraps an already opened bucket. The backend takes ownership
// of bucket and closes it in Close.
func NewFromBucket(name string, bucket *blob.Bucket, prefix string) *Backend {
	if prefix = strings.TrimPrefix(prefix, "/"); prefix != "" {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		bucket = blob.PrefixedBucket(bucket, prefix)
	}
	return &Backend{name: name, bucket: bucket}
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return Type }

// Receive streams body into the bucket under destName. Cancelling the writer
// context before Close discards the object, so a failed copy never commits.
func (b *Backend) Receive(ctx context.Context, destName string, body io.Reader, size int64) error {
	if destName == "" {
		return storage.WrapError(b.name, "upload", storage.ErrInvalidName)
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := &blob.WriterOptions{
		// Detection would buffer the head of the stream for no benefit,
		// uploads are opaque backup archives.
		ContentType:                 "application/octet-stream",
		DisableContentTypeDetection: true,
	}

	writer, err := b.bucket.NewWriter(wctx, destName, opts)
	if err != nil {
		return storage.WrapError(b.name, "upload", err)
	}

	if _, err := io.Copy(writer, body); err != nil {
		cancel()
		writer.Close()
		return storage.WrapError(b.name, "upload", err)
	}

	if err := writer.Close(); err != nil {
		return storage.WrapError(b.name, "upload", err)
	}

	return nil
}

// Close releases the bucket
func (b *Backend) Close() error {
	return b.bucket.Close()
}
