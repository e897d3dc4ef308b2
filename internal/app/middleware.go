package app

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"newsagg/internal/contextx"
	"newsagg/internal/ratelimit"
	"newsagg/internal/tracing"
)

const requestIDHeader = "X-Request-ID"

// statusWriter remembers the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// middleware builds the global chain around the mux; recovery is outermost.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = ratelimit.Middleware(s.limiter, h)
	h = s.withCommonHeaders(h)
	h = s.withAccessLog(h)
	h = s.withRequestID(h)
	h = s.withRecovery(h)
	return h
}

// withRequestID propagates the caller's request id or mints a new one.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(contextx.WithRequestID(r.Context(), id)))
	})
}

// withRecovery converts a panic into a 500.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("Panic while serving request",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		s.log.Info("Request",
			zap.String("request_id", contextx.RequestIDFromContext(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.code()),
			zap.Int("bytes", sw.bytes),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// withCommonHeaders adds CORS and common headers.
func (s *Server) withCommonHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Server", "newsagg")
		h.ServeHTTP(w, r)
	})
}

// route registers method+path, wrapping the handler with per-route tracing
// and metrics, and with the bearer token check when protected is set.
func (s *Server) route(method, path string, h http.HandlerFunc, protected bool) {
	var handler http.Handler = h
	if protected {
		handler = s.issuer.Middleware(handler)
	}
	inner := handler
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		inner.ServeHTTP(sw, r)
		s.metrics.HTTPRequest(r.Method, path, sw.code())
	})
	s.mux.Handle(method+" "+path, tracing.Middleware(path, handler))
}
