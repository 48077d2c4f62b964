package backblaze

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/backup_receiver/pkg/storage"
)

func TestNew(t *testing.T) {
	_, err := New("b2", Config{AccountID: "id", Bucket: "backups"})
	assert.ErrorIs(t, err, storage.ErrInvalidConfig)

	b, err := New("b2", Config{AccountID: "id", ApplicationKey: "key", Bucket: "backups", Prefix: "/db"})
	require.NoError(t, err)
	assert.Equal(t, "b2", b.Name())
	assert.Equal(t, "b2", b.Type())
	assert.Equal(t, "db", b.prefix)
}

func TestBackend_ReceiveEmptyName(t *testing.T) {
	b, err := New("b2", Config{AccountID: "id", ApplicationKey: "key", Bucket: "backups"})
	require.NoError(t, err)

	// Rejected before any authorization round trip
	err = b.Receive(context.Background(), "", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, storage.ErrInvalidName)
}
