package local_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/backup_receiver/pkg/storage"
	"github.com/williamokano/backup_receiver/pkg/storage/local"
)

func newTestBackend(t *testing.T) (*local.Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := local.New("local", local.Config{BaseDir: dir})
	require.NoError(t, err)
	return b, dir
}

func TestNew(t *testing.T) {
	t.Run("missing_base_dir", func(t *testing.T) {
		_, err := local.New("local", local.Config{})
		assert.ErrorIs(t, err, storage.ErrInvalidConfig)
	})

	t.Run("relative_base_dir_is_made_absolute", func(t *testing.T) {
		b, err := local.New("local", local.Config{BaseDir: "backups"})
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(b.BaseDir()))
		assert.Equal(t, "filesystem", b.Type())
		assert.Equal(t, "local", b.Name())
	})
}

func TestBackend_Receive(t *testing.T) {
	ctx := context.Background()

	t.Run("writes_nested_destination", func(t *testing.T) {
		b, dir := newTestBackend(t)
		want := "known byte sequence\x00\x01\x02"

		err := b.Receive(ctx, "a/b.txt", strings.NewReader(want), int64(len(want)))
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(dir, "a", "b.txt"))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	})

	t.Run("unknown_size", func(t *testing.T) {
		b, dir := newTestBackend(t)

		err := b.Receive(ctx, "db-2024-01-02.sql", strings.NewReader("SELECT 1;"), storage.UnknownSize)
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(dir, "db-2024-01-02.sql"))
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1;", string(got))
	})

	t.Run("overwrites_existing_file", func(t *testing.T) {
		b, dir := newTestBackend(t)

		require.NoError(t, b.Receive(ctx, "f.bin", strings.NewReader("first, longer"), storage.UnknownSize))
		require.NoError(t, b.Receive(ctx, "f.bin", strings.NewReader("second"), storage.UnknownSize))

		got, err := os.ReadFile(filepath.Join(dir, "f.bin"))
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("read_error_leaves_partial_file", func(t *testing.T) {
		b, dir := newTestBackend(t)
		boom := errors.New("connection reset")
		body := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(boom))

		err := b.Receive(ctx, "broken.tar", body, 100)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)

		got, statErr := os.ReadFile(filepath.Join(dir, "broken.tar"))
		require.NoError(t, statErr, "partial file should be left on disk")
		assert.Equal(t, "partial", string(got))
	})

	t.Run("rejects_names_outside_base_dir", func(t *testing.T) {
		b, _ := newTestBackend(t)

		for _, name := range []string{"", "../escape.txt", "a/../../escape.txt", "."} {
			err := b.Receive(ctx, name, strings.NewReader("x"), 1)
			assert.ErrorIs(t, err, storage.ErrInvalidName, "name %q", name)
		}
	})

	t.Run("concurrent_receives", func(t *testing.T) {
		b, dir := newTestBackend(t)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := filepath.Join("parallel", string(rune('a'+i))+".txt")
				assert.NoError(t, b.Receive(ctx, name, strings.NewReader(name), storage.UnknownSize))
			}(i)
		}
		wg.Wait()

		entries, err := os.ReadDir(filepath.Join(dir, "parallel"))
		require.NoError(t, err)
		assert.Len(t, entries, 8)
	})
}
