package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// CookieName is the cookie that carries the session token.
const CookieName = "session"

// ErrUnauthenticated is the only error the gate returns. Callers cannot tell a
// missing token from a forged, expired or revoked one.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the user a valid session token resolves to.
type Identity struct {
	UserID    int64
	Username  string
	SessionID string
}

// Gate checks session tokens against the server-side store. It never writes to
// the store.
type Gate struct {
	store  *Store
	secret string
}

// NewGate creates a gate over the store, verifying tokens with secret.
func NewGate(store *Store, secret string) *Gate {
	return &Gate{store: store, secret: secret}
}

// Authorize resolves token to the identity of a live session.
func (g *Gate) Authorize(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	claims, err := ParseSessionToken(token, g.secret)
	if err != nil {
		log.Debug().Err(err).Msg("session token rejected")
		return Identity{}, ErrUnauthenticated
	}

	session, err := g.store.Get(claims.ID)
	if err != nil {
		log.Debug().Err(err).Msg("session lookup failed")
		return Identity{}, ErrUnauthenticated
	}
	if session.UserID != claims.UserID {
		log.Warn().Int64("session_user", session.UserID).Int64("token_user", claims.UserID).
			Msg("session token user mismatch")
		return Identity{}, ErrUnauthenticated
	}

	return Identity{
		UserID:    session.UserID,
		Username:  session.Username,
		SessionID: session.ID,
	}, nil
}

// TokenFromRequest extracts the session token from the session cookie or,
// failing that, from an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying the identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Middleware rejects requests without a valid session with 401 and stores the
// identity in the request context for the next handler.
func (g *Gate) Middleware(unauthorized http.HandlerFunc, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.Authorize(r.Context(), TokenFromRequest(r))
		if err != nil {
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
