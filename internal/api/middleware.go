package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/vieuxgrimoire/grimoire-server/internal/http/response"
)

// contextKey is a private type for request context values.
type contextKey string

const userIDKey contextKey = "userID"

// userIDFromContext returns the authenticated user ID, if any.
func userIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// requireAuth verifies the bearer token and stores the authenticated
// user ID in the request context. Everything behind this middleware can
// trust that ID; nothing else from the request identifies the caller.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			response.Unauthorized(w, "missing authorization header", s.logger)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(w, "authorization header must be a bearer token", s.logger)
			return
		}

		userID, err := s.auth.VerifyAccessToken(token)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitByIP throttles requests per client IP. Applied to the auth
// endpoints to slow down credential stuffing.
func (s *Server) rateLimitByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RealIP middleware has already resolved proxy headers. The
		// address may carry a port (direct connections) or not (proxy
		// headers, including bare IPv6); only strip a real port.
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !s.authLimiter.Allow(ip) {
			response.Error(w, http.StatusTooManyRequests, "too many requests, slow down", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger emits one structured log line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
