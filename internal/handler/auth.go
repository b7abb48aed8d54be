package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/vendura/vendura/internal/domain/auth"
	"github.com/vendura/vendura/internal/domain/user"
)

type identityKey struct{}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID string
	Role   user.Role
}

// IdentityFromContext returns the caller identity set by RequireAPIKey.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticator authenticates requests via HMAC-SHA256 hashed API keys
// carried in the X-API-Key header.
type Authenticator struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewAuthenticator creates an Authenticator with the given API key
// repository and HMAC pepper.
func NewAuthenticator(apikeys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{apikeys: apikeys, pepper: pepper}
}

// RequireAPIKey rejects requests without a valid API key and stores the
// caller's Identity in the context for downstream handlers.
func (a *Authenticator) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			respondError(w, http.StatusUnauthorized, "missing api key")
			return
		}

		mac := hmac.New(sha256.New, a.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := a.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, Identity{
			UserID: info.UserID,
			Role:   info.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only callers whose role is in the given set. It must
// run after RequireAPIKey.
func (a *Authenticator) RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, http.StatusForbidden, "insufficient role")
		})
	}
}
