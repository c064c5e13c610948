package mw

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/wkalt/dapd/util"
	"github.com/wkalt/dapd/util/log"
)

/*
mw contains http middlewares.
*/

////////////////////////////////////////////////////////////////////////////////

// DebugHeader requests verbose logging of a single request.
const DebugHeader = "X-DAP-Debug"

type contextKey int

const debugKey contextKey = iota

// Debug reports whether the request carrying ctx asked for debug output.
func Debug(ctx context.Context) bool {
	debug, _ := ctx.Value(debugKey).(bool)
	return debug
}

// WithRequestID is a middleware that adds a request ID to the context of each
// request.
func WithRequestID(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := uuid.New()
		ctx = log.AddTags(ctx, "request_id", id.String())
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithCORSAllowedOrigins is a middleware that allows requests from specified
// origins.
func WithCORSAllowedOrigins(origins []string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			for _, o := range origins {
				if o == origin || o == "*" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
					w.Header().Set("Access-Control-Expose-Headers", "ETag, Content-Description, XDODS-Server")
					break
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

type statsWriter struct {
	http.ResponseWriter
	counter *util.CountingWriter
	status  int
}

func (w *statsWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statsWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.counter.Write(p)
}

func (w *statsWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statsWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// WithRequestStats is a middleware that attaches an execution context to each
// request and logs it when the request completes. Requests carrying a true
// DebugHeader are logged at info level, others at debug level.
func WithRequestStats(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := util.WithContext(r.Context(), r.Method+" "+r.URL.Path)
		debug, _ := strconv.ParseBool(r.Header.Get(DebugHeader))
		ctx = context.WithValue(ctx, debugKey, debug)
		sw := &statsWriter{ResponseWriter: w, counter: util.NewCountingWriter(w)}
		h.ServeHTTP(sw, r.WithContext(ctx))

		stats, err := util.ContextJSON(ctx)
		if err != nil {
			log.Errorw(ctx, "failed to serialize request stats", "error", err)
		}
		logw := util.When(debug, log.Infow, log.Debugw)
		logw(ctx, "request complete",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.counter.Count(),
			"elapsed", time.Since(start),
			"stats", stats,
		)
	})
}
