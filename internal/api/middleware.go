package api

import (
	"net/http"
	"strings"
	"time"

	"bengkel/internal/domain"
	"bengkel/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Authorizer decides whether a role may call a route pattern.
type Authorizer interface {
	Allowed(role, route, method string) (bool, error)
}

// requestLogger logs one line per request and records the HTTP metrics.
func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			metrics.ObserveHTTP(r.Method, route, status, elapsed)

			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("request_id", requestID(r)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", elapsed).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}

// routePattern is the matched chi pattern, or the raw path when routing
// has not happened yet.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// authenticate resolves the bearer token into a session.
func authenticate(identity Identity, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
				return
			}

			session, err := identity.Verify(r.Context(), token)
			if err != nil {
				writeDomainError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// authorize enforces the role policy on the matched route pattern. It
// must run after authenticate and inside a routed group.
func authorize(policy Authorizer, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := sessionFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
				return
			}

			allowed, err := policy.Allowed(string(session.Claims.Role), routePattern(r), r.Method)
			if err != nil {
				writeDomainError(w, r, logger, err)
				return
			}
			if !allowed {
				logger.Warn().
					Str("request_id", requestID(r)).
					Str("user_id", session.Claims.ID).
					Str("role", string(session.Claims.Role)).
					Str("route", routePattern(r)).
					Msg("access denied by policy")
				writeError(w, http.StatusForbidden, codeForbidden, domain.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
