package state

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/williamokano/backup_receiver/pkg/registry"
	"github.com/williamokano/backup_receiver/pkg/routing"
)

// Snapshot is one generation of the backend registry and route table. The
// pair is published and retired as a unit. A request acquires a snapshot
// once and uses it until it releases it, even if a newer generation is
// published meanwhile.
type Snapshot struct {
	Generation uint64
	Registry   *registry.Registry
	Routes     *routing.Table

	// refs counts the holder (while current) plus every in-flight request.
	// Once it drops to zero the registry is closed and the count never rises
	// again.
	refs atomic.Int64
	log  zerolog.Logger
}

func (s *Snapshot) tryRef() bool {
	for {
		n := s.refs.Load()
		if n == 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference obtained from Holder.Acquire
func (s *Snapshot) Release() {
	if s.refs.Add(-1) != 0 {
		return
	}

	if err := s.Registry.Close(); err != nil {
		s.log.Error().
			Err(err).
			Uint64("generation", s.Generation).
			Msg("Failed to close retired storage backends")
		return
	}
	s.log.Debug().
		Uint64("generation", s.Generation).
		Msg("Retired storage backends closed")
}

// Holder owns the current snapshot. Readers never block writers and never
// observe a registry from one generation paired with routes from another.
type Holder struct {
	cur atomic.Pointer[Snapshot]
	gen atomic.Uint64
	log zerolog.Logger
}

// NewHolder creates a holder and publishes the first generation
func NewHolder(reg *registry.Registry, routes *routing.Table, log zerolog.Logger) *Holder {
	h := &Holder{log: log.With().Str("component", "state").Logger()}
	h.Publish(reg, routes)
	return h
}

// Acquire returns the current snapshot with a reference held, or nil after
// Close. Callers must Release a non-nil snapshot.
func (h *Holder) Acquire() *Snapshot {
	for {
		s := h.cur.Load()
		if s == nil {
			return nil
		}
		if s.tryRef() {
			return s
		}
		// s was retired between Load and tryRef; a newer one is current
	}
}

// Publish makes reg and routes the current generation and retires the
// previous one. The previous registry is closed once its last reader
// releases it. Publish returns the new generation number.
func (h *Holder) Publish(reg *registry.Registry, routes *routing.Table) uint64 {
	s := &Snapshot{
		Generation: h.gen.Add(1),
		Registry:   reg,
		Routes:     routes,
		log:        h.log,
	}
	s.refs.Store(1)

	if old := h.cur.Swap(s); old != nil {
		old.Release()
	}
	return s.Generation
}

// Generation returns the number of the current generation
func (h *Holder) Generation() uint64 {
	if s := h.cur.Load(); s != nil {
		return s.Generation
	}
	return 0
}

// Close retires the current snapshot. Subsequent Acquire calls return nil.
func (h *Holder) Close() {
	if old := h.cur.Swap(nil); old != nil {
		old.Release()
	}
}
