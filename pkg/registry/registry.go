package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/williamokano/backup_receiver/pkg/config"
	"github.com/williamokano/backup_receiver/pkg/storage"
	"github.com/williamokano/backup_receiver/pkg/storage/backblaze"
	"github.com/williamokano/backup_receiver/pkg/storage/cdk"
	"github.com/williamokano/backup_receiver/pkg/storage/local"
	"github.com/williamokano/backup_receiver/pkg/storage/s3"
	"github.com/williamokano/backup_receiver/pkg/storage/ssh"
)

// Registry maps backend names to live storage backends. A Registry is
// never modified after Build; a reload builds a new one.
type Registry struct {
	backends map[string]storage.Backend
}

// New wraps an already constructed set of backends
func New(backends map[string]storage.Backend) *Registry {
	m := make(map[string]storage.Backend, len(backends))
	for name, b := range backends {
		m[name] = b
	}
	return &Registry{backends: m}
}

// Build constructs one backend per spec. Entries with an unknown kind or
// whose construction fails are left out of the registry and logged; they
// never fail the build as a whole.
func Build(ctx context.Context, specs map[string]config.BackendSpec, log zerolog.Logger) *Registry {
	backends := make(map[string]storage.Backend, len(specs))

	for _, name := range sortedKeys(specs) {
		spec := specs[name]

		if !spec.Kind.Known() {
			log.Warn().
				Str("backend", name).
				Str("kind", spec.Tag).
				Msg("Skipping storage backend with unknown kind")
			continue
		}

		backend, err := build(ctx, name, spec)
		if err != nil {
			log.Warn().
				Err(err).
				Str("backend", name).
				Str("kind", string(spec.Kind)).
				Msg("Skipping storage backend that could not be initialized")
			continue
		}

		if sftp, ok := backend.(*ssh.Backend); ok && !sftp.VerifiesHostKey() {
			log.Warn().
				Str("backend", name).
				Msg("SFTP backend has no host_key configured, server identity will not be verified")
		}

		log.Debug().
			Str("backend", name).
			Str("kind", backend.Type()).
			Msg("Storage backend initialized")
		backends[name] = backend
	}

	return &Registry{backends: backends}
}

// build is the single place backend kinds are resolved to implementations
func build(ctx context.Context, name string, spec config.BackendSpec) (storage.Backend, error) {
	switch {
	case spec.Kind == config.KindFilesystem && spec.Filesystem != nil:
		return local.New(name, *spec.Filesystem)
	case spec.Kind == config.KindObjectStore && spec.ObjectStore != nil:
		return s3.New(ctx, name, *spec.ObjectStore)
	case spec.Kind == config.KindBackblaze && spec.Backblaze != nil:
		return backblaze.New(name, *spec.Backblaze)
	case spec.Kind == config.KindSFTP && spec.SFTP != nil:
		return ssh.New(name, *spec.SFTP)
	case spec.Kind == config.KindBlob && spec.Blob != nil:
		return cdk.New(ctx, name, *spec.Blob)
	}
	return nil, fmt.Errorf("no %s options for backend %q: %w", spec.Kind, name, storage.ErrInvalidConfig)
}

// Get returns the backend registered under name
func (r *Registry) Get(name string) (storage.Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Names returns the registered backend names in sorted order
func (r *Registry) Names() []string {
	return sortedKeys(r.backends)
}

// Len returns the number of registered backends
func (r *Registry) Len() int {
	return len(r.backends)
}

// Close releases every backend. All backends are closed even if some fail.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.Names() {
		if err := r.backends[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
