package storage

import (
	"context"
	"io"
)

// UnknownSize is passed as the size of a Receive call when the sender did
// not declare a content length.
const UnknownSize int64 = -1

// Backend represents a storage target that durably receives named byte streams
type Backend interface {
	// Name returns the registry name for this backend (e.g., "local", "offsite")
	Name() string

	// Type returns the backend kind (filesystem, object-store, b2, sftp, blob)
	Type() string

	// Receive streams body into the backend under destName.
	// destName: relative name in backend (e.g., "db-2024-01-02.sql", "host/a.tar")
	// size: declared length of body in bytes, or UnknownSize
	// Receive must not return nil before every byte of body has been handed to
	// the underlying store. Partially written data is not rolled back on error.
	Receive(ctx context.Context, destName string, body io.Reader, size int64) error

	// Close releases resources (connections, sessions)
	Close() error
}

// CountingReader wraps a reader and counts the bytes read through it
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}
