package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/token"
)

type ctxKey string

const identityKey ctxKey = "forksy.identity"

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller identity, anonymous when none was stored.
func IdentityFrom(ctx context.Context) model.Identity {
	id, _ := ctx.Value(identityKey).(model.Identity)
	return id
}

// AccessVerifier verifies access tokens.
type AccessVerifier interface {
	Verify(tok string, kind token.Kind) (uuid.UUID, error)
}

// bearerToken strips an optional, case-insensitive "Bearer" prefix.
func bearerToken(h string) string {
	h = strings.TrimSpace(h)
	const prefix = "bearer"
	if len(h) >= len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		rest := h[len(prefix):]
		if rest == "" {
			return ""
		}
		if rest[0] == ' ' || rest[0] == '\t' {
			return strings.TrimSpace(rest)
		}
	}
	return h
}

// IdentityMiddleware resolves the caller from the Authorization header.
// It never rejects a request: missing or invalid tokens yield an anonymous
// identity and enforcement is left to the authorization guard.
func IdentityMiddleware(v AccessVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := model.Anonymous
			if raw := bearerToken(r.Header.Get("Authorization")); raw != "" {
				uid, err := v.Verify(raw, token.Access)
				switch {
				case err == nil:
					id = model.Authenticated(uid)
				case errors.Is(err, token.ErrExpired):
					log.Debug("access token expired", zap.String("path", r.URL.Path))
				default:
					log.Warn("rejected access token",
						zap.Error(err),
						zap.String("path", r.URL.Path),
						zap.String("peer", clientIP(r)),
					)
				}
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
