package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

type contextKey int

const ctxKeyLogger contextKey = 0

const maxRequestIDLen = 64

// logFor returns the context-scoped logger, falling back to the default logger.
func logFor(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// requestContextMiddleware tags each request with an id (the caller's
// X-Request-ID when it is usable, else a fresh uuid) and a logger carrying it.
func requestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !usableRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), ctxKeyLogger, slog.Default().With("rid", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// usableRequestID accepts short printable ASCII ids only, so they are safe
// to echo in headers and logs.
func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// recoveryMiddleware turns a handler panic into a 500 unless the response
// was already started.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := captureStatus(w)
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logFor(r.Context()).Error("panic recovered",
					"panic", rec, "path", r.URL.Path, "stack", string(debug.Stack()))
				if !sc.wroteHeader {
					writeError(sc, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
				}
			}
		}()
		next.ServeHTTP(sc, r)
	})
}

// statusCapture wraps ResponseWriter to capture the status code and size.
type statusCapture struct {
	http.ResponseWriter
	code        int
	bytes       int64
	wroteHeader bool
}

func captureStatus(w http.ResponseWriter) *statusCapture {
	if sc, ok := w.(*statusCapture); ok {
		return sc
	}
	return &statusCapture{ResponseWriter: w, code: http.StatusOK}
}

func (sc *statusCapture) WriteHeader(code int) {
	if !sc.wroteHeader {
		sc.code = code
		sc.wroteHeader = true
	}
	sc.ResponseWriter.WriteHeader(code)
}

func (sc *statusCapture) Write(b []byte) (int, error) {
	sc.wroteHeader = true
	n, err := sc.ResponseWriter.Write(b)
	sc.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sc *statusCapture) Unwrap() http.ResponseWriter {
	return sc.ResponseWriter
}

// quietPaths are polled by probes and scrapers; they log at debug.
var quietPaths = map[string]bool{
	"/api/health": true,
	"/metrics":    true,
}

// accessMiddleware records request metrics and writes one access log line
// per request, at a level that follows the status class.
func accessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sc := captureStatus(w)
		next.ServeHTTP(sc, r)
		dur := time.Since(start)

		observeRequest(r.Method, sc.code, dur)

		level := slog.LevelInfo
		switch {
		case sc.code >= 500:
			level = slog.LevelError
		case sc.code >= 400:
			level = slog.LevelWarn
		case quietPaths[r.URL.Path]:
			level = slog.LevelDebug
		}
		logFor(r.Context()).Log(r.Context(), level, "req",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sc.code,
			"bytes", sc.bytes,
			"ip", clientIP(r),
			"dur", dur.String(),
		)
	})
}

// maxBytesMiddleware caps request bodies; GET and HEAD bodies are ignored
// by every handler, so only other methods are wrapped.
func maxBytesMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware in order (first applied is outermost).
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
