package dispatch

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics holds process-lifetime counters exposed at GET /metrics
type Metrics struct {
	UploadsTotal     atomic.Int64 // requests that matched a route
	UploadsFailed    atomic.Int64 // matched requests that did not store a file
	BytesReceived    atomic.Int64 // body bytes handed to backends
	RoutesNotFound   atomic.Int64
	ReloadsSucceeded atomic.Int64
	ReloadsFailed    atomic.Int64
}

// RecordReload counts the outcome of one reload
func (m *Metrics) RecordReload(err error) {
	if err != nil {
		m.ReloadsFailed.Add(1)
		return
	}
	m.ReloadsSucceeded.Add(1)
}

// metricsHandler serialises the counters as a flat JSON object. generation is
// called at render time.
func (m *Metrics) metricsHandler(generation func() uint64) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int64{
			"uploads_total":     m.UploadsTotal.Load(),
			"uploads_failed":    m.UploadsFailed.Load(),
			"bytes_received":    m.BytesReceived.Load(),
			"routes_not_found":  m.RoutesNotFound.Load(),
			"reloads_succeeded": m.ReloadsSucceeded.Load(),
			"reloads_failed":    m.ReloadsFailed.Load(),
			"generation":        int64(generation()),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
