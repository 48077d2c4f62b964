package dispatch

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/williamokano/backup_receiver/pkg/routing"
	"github.com/williamokano/backup_receiver/pkg/state"
	"github.com/williamokano/backup_receiver/pkg/storage"
)

// Handler holds shared dependencies for the HTTP handlers
type Handler struct {
	holder  *state.Holder
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// New registers all routes and returns the root http.Handler.
//
//	/backup/{id}              upload using the route's filename template
//	/backup/{id}/{filename...} upload with a client supplied name
//	GET /health               liveness
//	GET /metrics              counters as JSON
//
// Backup routes accept any method.
func New(holder *state.Holder, metrics *Metrics, log zerolog.Logger) http.Handler {
	h := &Handler{
		holder:  holder,
		metrics: metrics,
		log:     log.With().Str("component", "dispatch").Logger(),
		now:     time.Now,
	}
	return h.routes()
}

func (h *Handler) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/backup/{id}", h.Backup)
	mux.HandleFunc("/backup/{id}/{filename...}", h.Backup)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", h.metrics.metricsHandler(h.holder.Generation))

	return RequestLog(h.log)(CollapseSlashes(mux))
}

// Backup streams the request body into the backend of the matched route.
// The snapshot taken at the start is used for the whole request.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	snap := h.holder.Acquire()
	if snap == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer snap.Release()

	id := r.PathValue("id")
	route, ok := snap.Routes.Lookup(id)
	if !ok {
		h.metrics.RoutesNotFound.Add(1)
		h.log.Debug().Str("backup", id).Msg("Unknown backup id")
		w.WriteHeader(statusFor(ErrRouteNotFound))
		return
	}

	h.metrics.UploadsTotal.Add(1)

	if err := h.receive(r, snap, route); err != nil {
		h.metrics.UploadsFailed.Add(1)
		status := statusFor(err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "Done") //nolint:errcheck
}

func (h *Handler) receive(r *http.Request, snap *state.Snapshot, route routing.Route) error {
	log := h.log.With().
		Str("backup", route.ID).
		Str("backend", route.Storage).
		Uint64("generation", snap.Generation).
		Logger()

	// routes with a fixed filename ignore the client segment
	var clientName string
	if route.DefaultFilename != "" {
		name, err := routing.SanitizeFilename(r.PathValue("filename"))
		if err != nil {
			log.Warn().Err(err).Msg("Rejected client filename")
			return err
		}
		clientName = name
	}

	filename := route.Resolve(clientName, h.now())
	if filename == "" {
		log.Error().Msg("Backup route resolved to an empty filename")
		return ErrEmptyFilename
	}

	backend, ok := snap.Registry.Get(route.Storage)
	if !ok {
		log.Error().Str("filename", filename).Msg("Backup route references unknown backend")
		return fmt.Errorf("%s: %w", route.Storage, ErrBackendNotFound)
	}

	size := r.ContentLength
	if size < 0 {
		size = storage.UnknownSize
	}

	log.Info().
		Str("filename", filename).
		Int64("size", size).
		Msgf("Saving file to %s with name %s", route.Storage, filename)

	body := &storage.CountingReader{R: r.Body}
	err := backend.Receive(r.Context(), filename, body, size)
	h.metrics.BytesReceived.Add(body.N)
	if err != nil {
		log.Error().
			Err(err).
			Str("filename", filename).
			Int64("received", body.N).
			Bool("critical", storage.IsCritical(err)).
			Msg("Failed to store backup")
		return err
	}

	log.Debug().Str("filename", filename).Int64("received", body.N).Msg("Backup stored")
	return nil
}
