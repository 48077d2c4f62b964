package dispatch

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// responseRecorder captures the status code for the access log
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// countingBody counts the request bytes actually read by the handler
type countingBody struct {
	io.ReadCloser
	n int64
}

func (c *countingBody) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.n += int64(n)
	return n, err
}

// RequestLog emits one access log line per request after it completes
func RequestLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			body := &countingBody{ReadCloser: r.Body}
			r.Body = body

			next.ServeHTTP(rec, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Str("received", humanize.Bytes(uint64(body.n))).
				Str("remote_addr", r.RemoteAddr).
				Msg("http")
		})
	}
}

// CollapseSlashes folds runs of "/" in the request path into one. ServeMux
// would otherwise answer such paths with a redirect and the upload body
// would be lost.
func CollapseSlashes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "//") {
			r = r.Clone(r.Context())
			r.URL.Path = collapse(r.URL.Path)
			if r.URL.RawPath != "" {
				r.URL.RawPath = collapse(r.URL.RawPath)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func collapse(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}
