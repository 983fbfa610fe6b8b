package httpapi

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const (
	headerUserID    = "X-User-ID"
	headerUserRoles = "X-User-Roles"
)

type subjectKey struct{}

// subjectFrom returns the caller identity set by withIdentity.
func subjectFrom(ctx context.Context) core.Subject {
	s, _ := ctx.Value(subjectKey{}).(core.Subject)
	return s
}

// withIdentity reads the caller from the headers set by the upstream
// identity proxy.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerUserID))
		if id == "" {
			writeError(w, r, errUnauthenticated)
			return
		}

		var roles []string
		for _, role := range strings.Split(r.Header.Get(headerUserRoles), ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}

		ctx := context.WithValue(r.Context(), subjectKey{}, core.Subject{ID: id, Roles: roles})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(s.ResponseWriter).Hijack()
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// withLogging attaches a request-scoped logger and logs one line per request.
func withLogging(base context.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := log.FromCtx(base).With().
			Str("component", "http").
			Str("request_id", uuid.NewString()).
			Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				logger.Error().Interface("panic", p).Str("path", r.URL.Path).Msg("handler panicked")
				http.Error(rec, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()

		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))
	})
}
