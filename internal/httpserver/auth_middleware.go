package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/service"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// WithUser returns a new context carrying the current user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// CurrentUser extracts the current user from context, if any.
func CurrentUser(r *http.Request) *domain.User {
	if v := r.Context().Value(userContextKey); v != nil {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[len("Bearer "):])
}

// AuthMiddleware validates the Bearer token and attaches the user to the context.
func AuthMiddleware(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeErrorMsg(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}
			user, err := sessions.Authenticate(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("auth: rejected token")
				writeErrorMsg(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

type currentUserSource interface {
	CurrentUser(ctx context.Context) (*domain.User, error)
}

// OptionalAuth lets tokenless requests through only while nobody is signed
// in, so anonymous contributions cannot be credited to the signed-in user.
func OptionalAuth(sessions *service.SessionService, identity currentUserSource) func(http.Handler) http.Handler {
	required := AuthMiddleware(sessions)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				withAuth.ServeHTTP(w, r)
				return
			}
			_, err := identity.CurrentUser(r.Context())
			switch {
			case errors.Is(err, domain.ErrNotSignedIn):
				next.ServeHTTP(w, r)
			case err != nil:
				writeError(w, r, err)
			default:
				writeErrorMsg(w, http.StatusUnauthorized, "sign-in token required")
			}
		})
	}
}

// AdminMiddleware admits admin tokens only.
func AdminMiddleware(admin *service.AdminService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := admin.Authorize(bearerToken(r)); err != nil {
				writeErrorMsg(w, http.StatusUnauthorized, "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
