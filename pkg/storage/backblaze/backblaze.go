package backblaze

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/kurin/blazer/b2"
	"golang.org/x/sync/singleflight"

	"github.com/williamokano/backup_receiver/pkg/storage"
)

const Type = "b2"

type Backend struct {
	name   string
	cfg    Config
	prefix string

	authorize singleflight.Group
	mu        sync.Mutex
	bucket    *b2.Bucket
}

// New creates a new Backblaze B2 backend. Authorization happens on the first
// Receive and is retried on later ones until it succeeds.
func New(name string, cfg Config) (*Backend, error) {
	for option, value := range map[string]string{
		"account_id":      cfg.AccountID,
		"application_key": cfg.ApplicationKey,
		"bucket":          cfg.Bucket,
	} {
		if value == "" {
			return nil, storage.WrapError(name, "init", fmt.Errorf("missing required option %s: %w", option, storage.ErrInvalidConfig))
		}
	}

	return &Backend{
		name:   name,
		cfg:    cfg,
		prefix: strings.TrimPrefix(cfg.Prefix, "/"),
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return Type }

func (b *Backend) connect(ctx context.Context) (*b2.Bucket, error) {
	b.mu.Lock()
	bucket := b.bucket
	b.mu.Unlock()
	if bucket != nil {
		return bucket, nil
	}

	// concurrent uploads share one authorization round trip
	v, err, _ := b.authorize.Do("authorize", func() (interface{}, error) {
		client, err := b2.NewClient(ctx, b.cfg.AccountID, b.cfg.ApplicationKey)
		if err != nil {
			return nil, storage.WrapError(b.name, "authorize", fmt.Errorf("%w: %v", storage.ErrAuthFailed, err))
		}

		bucket, err := client.Bucket(ctx, b.cfg.Bucket)
		if err != nil {
			return nil, storage.WrapError(b.name, "get bucket", err)
		}

		b.mu.Lock()
		b.bucket = bucket
		b.mu.Unlock()
		return bucket, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*b2.Bucket), nil
}

// Receive streams body into a B2 object. A failed copy cancels the writer so
// no partial object is committed.
func (b *Backend) Receive(ctx context.Context, destName string, body io.Reader, size int64) error {
	if destName == "" {
		return storage.WrapError(b.name, "upload", storage.ErrInvalidName)
	}

	bucket, err := b.connect(ctx)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := bucket.Object(path.Join(b.prefix, destName)).NewWriter(wctx)

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

// Close is a no-op for B2, the client holds no persistent connection
func (b *Backend) Close() error {
	return nil
}
