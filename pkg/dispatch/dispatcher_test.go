package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/backup_receiver/pkg/config"
	"github.com/williamokano/backup_receiver/pkg/registry"
	"github.com/williamokano/backup_receiver/pkg/routing"
	"github.com/williamokano/backup_receiver/pkg/state"
	"github.com/williamokano/backup_receiver/pkg/storage"
	"github.com/williamokano/backup_receiver/pkg/storage/local"
	"github.com/williamokano/backup_receiver/pkg/storage/mocks"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type fixture struct {
	holder  *state.Holder
	metrics *Metrics
	logs    *bytes.Buffer
	handler http.Handler
}

func newFixture(t *testing.T, backends map[string]storage.Backend, backups map[string]config.BackupConfig) *fixture {
	t.Helper()

	logs := &bytes.Buffer{}
	log := zerolog.New(logs)

	holder := state.NewHolder(registry.New(backends), routing.New(backups), log)
	t.Cleanup(holder.Close)

	h := &Handler{
		holder:  holder,
		metrics: &Metrics{},
		log:     log,
		now:     func() time.Time { return fixedNow },
	}

	return &fixture{holder: holder, metrics: h.metrics, logs: logs, handler: h.routes()}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func newMock(t *testing.T) *mocks.MockBackend {
	m := mocks.NewMockBackend(t)
	m.On("Close").Return(nil).Maybe()
	return m
}

func TestBackup_EndToEndFilesystem(t *testing.T) {
	dir := t.TempDir()
	backend, err := local.New("local", local.Config{BaseDir: dir})
	require.NoError(t, err)

	f := newFixture(t,
		map[string]storage.Backend{"local": backend},
		map[string]config.BackupConfig{
			"db": {DefaultFilename: "db-{{date}}.sql", Storage: "local"},
		},
	)

	t.Run("default filename", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/backup/db", "SELECT 1;")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Done", rec.Body.String())

		data, err := os.ReadFile(filepath.Join(dir, "db-2024-01-02.sql"))
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1;", string(data))
	})

	t.Run("client filename", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/backup/db/nightly/custom.sql", "SELECT 2;")

		assert.Equal(t, http.StatusOK, rec.Code)

		data, err := os.ReadFile(filepath.Join(dir, "nightly", "custom.sql"))
		require.NoError(t, err)
		assert.Equal(t, "SELECT 2;", string(data))
	})

	t.Run("unknown id", func(t *testing.T) {
		before, err := os.ReadDir(dir)
		require.NoError(t, err)

		rec := f.do(http.MethodPost, "/backup/unknown-id", "SELECT 3;")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Body.Bytes())

		after, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Equal(t, len(before), len(after))
	})

	assert.Equal(t, int64(2), f.metrics.UploadsTotal.Load())
	assert.Equal(t, int64(18), f.metrics.BytesReceived.Load())
	assert.Equal(t, int64(1), f.metrics.RoutesNotFound.Load())
}

func TestBackup_RouteNotFoundTouchesNoBackend(t *testing.T) {
	backend := newMock(t)
	f := newFixture(t,
		map[string]storage.Backend{"remote": backend},
		map[string]config.BackupConfig{"db": {Filename: "db.sql", Storage: "remote"}},
	)

	for _, path := range []string{"/backup/unknown-id", "/backup/DB", "/backup/unknown-id/file.sql"} {
		rec := f.do(http.MethodPut, path, "data")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Empty(t, rec.Body.String(), path)
	}

	backend.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, int64(0), f.metrics.UploadsTotal.Load())
}

func TestBackup_ForwardsNameAndLength(t *testing.T) {
	backend := newMock(t)
	f := newFixture(t,
		map[string]storage.Backend{"remote": backend},
		map[string]config.BackupConfig{
			"static": {Filename: "static-{{date}}-{{time}}.tar", Storage: "remote"},
		},
	)

	var received []byte
	backend.On("Receive", mock.Anything, "static-2024-01-02-03-04-05.tar", mock.Anything, int64(9)).
		Run(func(args mock.Arguments) {
			// the intent is logged before the transfer starts
			assert.Contains(t, f.logs.String(), "Saving file to remote with name static-2024-01-02-03-04-05.tar")
			data, err := io.ReadAll(args.Get(2).(io.Reader))
			require.NoError(t, err)
			received = data
		}).
		Return(nil).Once()

	// fixed filename routes ignore the client name
	rec := f.do(http.MethodGet, "/backup/static/ignored.tar", "SELECT 1;")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Done", rec.Body.String())
	assert.Equal(t, "SELECT 1;", string(received))
}

func TestBackup_FixedFilenameIgnoresClientSegment(t *testing.T) {
	backend := newMock(t)
	f := newFixture(t,
		map[string]storage.Backend{"remote": backend},
		map[string]config.BackupConfig{"static": {Filename: "static-{{date}}.tar", Storage: "remote"}},
	)

	backend.On("Receive", mock.Anything, "static-2024-01-02.tar", mock.Anything, mock.Anything).
		Return(nil).Twice()

	for _, target := range []string{"/backup/static/a%5Cb", "/backup/static/x"} {
		rec := f.do(http.MethodPut, target, "data")
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}
	assert.Equal(t, int64(0), f.metrics.UploadsFailed.Load())
}

func TestBackup_RepeatedSlashesInClientFilename(t *testing.T) {
	dir := t.TempDir()
	backend, err := local.New("local", local.Config{BaseDir: dir})
	require.NoError(t, err)

	f := newFixture(t,
		map[string]storage.Backend{"local": backend},
		map[string]config.BackupConfig{"db": {DefaultFilename: "db.sql", Storage: "local"}},
	)

	rec := f.do(http.MethodPut, "/backup/db/a//b", "SELECT 1;")
	assert.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", string(data))

	// the access log keeps the path as sent
	assert.Contains(t, f.logs.String(), `"path":"/backup/db/a//b"`)
}

func TestBackup_UnknownLength(t *testing.T) {
	backend := newMock(t)
	f := newFixture(t,
		map[string]storage.Backend{"remote": backend},
		map[string]config.BackupConfig{"db": {DefaultFilename: "db.sql", Storage: "remote"}},
	)

	backend.On("Receive", mock.Anything, "db.sql", mock.Anything, storage.UnknownSize).
		Run(func(args mock.Arguments) {
			io.Copy(io.Discard, args.Get(2).(io.Reader)) //nolint:errcheck
		}).
		Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/backup/db", io.NopCloser(strings.NewReader("chunked body")))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(len("chunked body")), f.metrics.BytesReceived.Load())
}

func TestBackup_Failures(t *testing.T) {
	t.Run("transfer error is logged, not echoed", func(t *testing.T) {
		backend := newMock(t)
		f := newFixture(t,
			map[string]storage.Backend{"remote": backend},
			map[string]config.BackupConfig{"db": {DefaultFilename: "db.sql", Storage: "remote"}},
		)
		backend.On("Receive", mock.Anything, "db.sql", mock.Anything, mock.Anything).
			Return(storage.WrapError("remote", "upload", errors.New("secret upstream detail"))).Once()

		rec := f.do(http.MethodPost, "/backup/db", "data")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret upstream detail")
		assert.Contains(t, f.logs.String(), "secret upstream detail")
		assert.Contains(t, f.logs.String(), "Failed to store backup")
		assert.Equal(t, int64(1), f.metrics.UploadsFailed.Load())
	})

	t.Run("critical backend error is flagged", func(t *testing.T) {
		backend := newMock(t)
		f := newFixture(t,
			map[string]storage.Backend{"remote": backend},
			map[string]config.BackupConfig{"db": {DefaultFilename: "db.sql", Storage: "remote"}},
		)
		backend.On("Receive", mock.Anything, "db.sql", mock.Anything, mock.Anything).
			Return(storage.WrapError("remote", "connect", storage.ErrAuthFailed)).Once()

		rec := f.do(http.MethodPost, "/backup/db", "data")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, f.logs.String(), `"critical":true`)
	})

	t.Run("route references unknown backend", func(t *testing.T) {
		backend := newMock(t)
		f := newFixture(t,
			map[string]storage.Backend{"remote": backend},
			map[string]config.BackupConfig{"db": {DefaultFilename: "db.sql", Storage: "missing"}},
		)

		rec := f.do(http.MethodPost, "/backup/db", "data")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, http.StatusText(http.StatusInternalServerError)+"\n", rec.Body.String())
		assert.Contains(t, f.logs.String(), "Backup route references unknown backend")
		backend.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty resolved filename", func(t *testing.T) {
		backend := newMock(t)
		f := newFixture(t,
			map[string]storage.Backend{"remote": backend},
			map[string]config.BackupConfig{"db": {Storage: "remote"}},
		)

		rec := f.do(http.MethodPost, "/backup/db/ignored.sql", "data")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, f.logs.String(), "Backup route resolved to an empty filename")
		backend.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unsafe client filename", func(t *testing.T) {
		backend := newMock(t)
		f := newFixture(t,
			map[string]storage.Backend{"remote": backend},
			map[string]config.BackupConfig{"db": {DefaultFilename: "db.sql", Storage: "remote"}},
		)

		rec := f.do(http.MethodPost, "/backup/db/..%5Cescape.sql", "data")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		h := &Handler{holder: f.holder, metrics: f.metrics, log: zerolog.Nop(), now: time.Now}
		req := httptest.NewRequest(http.MethodPost, "/backup/db/x", strings.NewReader("data"))
		req.SetPathValue("id", "db")
		req.SetPathValue("filename", "../../etc/passwd")
		rec = httptest.NewRecorder()
		h.Backup(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		backend.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, int64(2), f.metrics.UploadsFailed.Load())
	})
}

func TestBackup_SnapshotHeldForWholeRequest(t *testing.T) {
	old := mocks.NewMockBackend(t)
	f := newFixture(t,
		map[string]storage.Backend{"remote": old},
		map[string]config.BackupConfig{"db": {DefaultFilename: "db.sql", Storage: "remote"}},
	)

	replacement := newMock(t)

	old.On("Receive", mock.Anything, "db.sql", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			// a reload lands while the upload is streaming
			f.holder.Publish(
				registry.New(map[string]storage.Backend{"remote": replacement}),
				routing.New(map[string]config.BackupConfig{"db": {DefaultFilename: "db.sql", Storage: "remote"}}),
			)
			old.AssertNotCalled(t, "Close")
		}).
		Return(nil).Once()
	old.On("Close").Return(nil).Once()

	rec := f.do(http.MethodPut, "/backup/db", "data")

	assert.Equal(t, http.StatusOK, rec.Code)
	old.AssertCalled(t, "Close")
	assert.Equal(t, uint64(2), f.holder.Generation())
	replacement.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBackup_NoSnapshot(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.holder.Close()

	rec := f.do(http.MethodPut, "/backup/db", "data")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	f := newFixture(t, nil, nil)

	t.Run("health", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("metrics", func(t *testing.T) {
		f.do(http.MethodPut, "/backup/nope", "")
		f.metrics.RecordReload(nil)
		f.metrics.RecordReload(errors.New("bad yaml"))

		rec := f.do(http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got map[string]int64
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(1), got["routes_not_found"])
		assert.Equal(t, int64(1), got["reloads_succeeded"])
		assert.Equal(t, int64(1), got["reloads_failed"])
		assert.Equal(t, int64(1), got["generation"])
		assert.Equal(t, int64(0), got["uploads_total"])
	})

	t.Run("access log", func(t *testing.T) {
		f.do(http.MethodGet, "/health", "")
		assert.Contains(t, f.logs.String(), `"message":"http"`)
		assert.Contains(t, f.logs.String(), `"path":"/health"`)
	})
}

func TestNew(t *testing.T) {
	holder := state.NewHolder(registry.New(nil), routing.New(nil), zerolog.Nop())
	defer holder.Close()

	srv := httptest.NewServer(New(holder, &Metrics{}, zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

}
