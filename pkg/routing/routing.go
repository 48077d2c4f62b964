package routing

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/williamokano/backup_receiver/pkg/config"
	"github.com/williamokano/backup_receiver/pkg/naming"
)

// ErrUnsafeFilename is returned for client supplied names that could escape
// the backend's namespace
var ErrUnsafeFilename = errors.New("unsafe filename")

// Route describes where uploads for one backup id go
type Route struct {
	ID              string
	Filename        string
	DefaultFilename string
	Separator       string
	Storage         string
}

// Resolve returns the destination name for an upload. A route with a
// default filename accepts the client supplied name and falls back to the
// rendered default; otherwise the fixed filename template is rendered. The
// result is empty when the route has neither template.
func (r Route) Resolve(clientName string, at time.Time) string {
	switch {
	case r.DefaultFilename != "":
		if clientName != "" {
			return clientName
		}
		return naming.Render(r.DefaultFilename, at, r.Separator)
	case r.Filename != "":
		return naming.Render(r.Filename, at, r.Separator)
	}
	return ""
}

// Table maps backup ids to routes. A Table is never modified after New.
type Table struct {
	routes map[string]Route
}

// New builds a route table from the backups section of a config
func New(backups map[string]config.BackupConfig) *Table {
	routes := make(map[string]Route, len(backups))
	for id, b := range backups {
		routes[id] = Route{
			ID:              id,
			Filename:        b.Filename,
			DefaultFilename: b.DefaultFilename,
			Separator:       b.GetSeparator(),
			Storage:         b.Storage,
		}
	}
	return &Table{routes: routes}
}

// Lookup returns the route registered under id
func (t *Table) Lookup(id string) (Route, bool) {
	r, ok := t.routes[id]
	return r, ok
}

// IDs returns the backup ids in sorted order
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.routes))
	for id := range t.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of routes
func (t *Table) Len() int {
	return len(t.routes)
}

// Unresolved returns the routes whose storage is not known to hasBackend,
// sorted by id
func (t *Table) Unresolved(hasBackend func(name string) bool) []Route {
	var out []Route
	for _, id := range t.IDs() {
		if r := t.routes[id]; !hasBackend(r.Storage) {
			out = append(out, r)
		}
	}
	return out
}

// SanitizeFilename checks a client supplied filename. Absolute paths,
// backslashes, NUL bytes and ".." segments are rejected; the accepted name is
// returned in cleaned form. An empty or "." name yields "".
func SanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", nil
	}

	if strings.HasPrefix(name, "/") || strings.ContainsAny(name, "\\\x00") {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafeFilename)
	}

	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%q: %w", name, ErrUnsafeFilename)
		}
	}

	cleaned := path.Clean(name)
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}
