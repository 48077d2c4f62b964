package dispatch

import (
	"errors"
	"net/http"

	"github.com/williamokano/backup_receiver/pkg/routing"
)

var (
	// ErrRouteNotFound is returned for a backup id missing from the route table
	ErrRouteNotFound = errors.New("backup route not found")

	// ErrBackendNotFound is returned when a route names a backend the current
	// registry does not have
	ErrBackendNotFound = errors.New("route references unknown backend")

	// ErrEmptyFilename is returned when a route resolves to an empty name
	ErrEmptyFilename = errors.New("resolved filename is empty")

	// ErrUnsafeFilename is returned for client supplied names that could
	// escape the backend's namespace
	ErrUnsafeFilename = routing.ErrUnsafeFilename
)

// statusFor maps a dispatch error to the status sent to the client. Anything
// unclassified is a transfer failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnsafeFilename):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
