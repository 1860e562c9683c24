package auth

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Authenticator accepts either the session cookie or a bearer token.
type Authenticator struct {
	tokens  *TokenIssuer
	revoked RevocationStore
	logger  *zap.Logger
}

func NewAuthenticator(tokens *TokenIssuer, revoked RevocationStore, logger *zap.Logger) *Authenticator {
	if revoked == nil {
		revoked = NewMemoryRevocationStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, revoked: revoked, logger: logger.Named("auth")}
}

// Tokens exposes the issuer for the login handler.
func (a *Authenticator) Tokens() *TokenIssuer { return a.tokens }

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Middleware resolves the user from a bearer token first, then the cookie.
// An invalid or revoked bearer token leaves the request anonymous.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := bearerToken(r); raw != "" && a.tokens != nil {
			claims, err := a.tokens.Parse(raw)
			if err != nil {
				a.logger.Debug("rejected bearer token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			revoked, err := a.revoked.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				a.logger.Warn("revocation lookup failed", zap.String("jti", claims.ID), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			uid, err := claims.UserID()
			if revoked || err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := withTokenID(WithUserID(r.Context(), uid), claims.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		Middleware(next).ServeHTTP(w, r)
	})
}

// Revoke blacklists the bearer token used by r, if any, for its remaining lifetime.
func (a *Authenticator) Revoke(r *http.Request) error {
	raw := bearerToken(r)
	if raw == "" || a.tokens == nil {
		return nil
	}
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return nil
	}
	ttl := a.tokens.TTL()
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	return a.revoked.Revoke(r.Context(), claims.ID, ttl)
}
