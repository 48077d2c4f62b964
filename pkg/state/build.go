package state

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/williamokano/backup_receiver/pkg/config"
	"github.com/williamokano/backup_receiver/pkg/registry"
	"github.com/williamokano/backup_receiver/pkg/routing"
)

// Build constructs the registry and route table for cfg. Routes pointing at a
// backend missing from the new registry are logged; they fail at request
// time, not here.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*registry.Registry, *routing.Table) {
	reg := registry.Build(ctx, cfg.Storage, log)
	routes := routing.New(cfg.Backups)

	for _, r := range routes.Unresolved(func(name string) bool {
		_, ok := reg.Get(name)
		return ok
	}) {
		log.Warn().
			Str("backup", r.ID).
			Str("backend", r.Storage).
			Msg("Backup route references a storage backend that is not configured")
	}

	return reg, routes
}
