package auth

import (
	"context"

	"github.com/vendura/vendura/internal/domain/user"
)

// APIKey holds the identity bound to a validated API key. Keys are stored
// as HMAC-SHA256 hashes; the plaintext is only seen at issue time.
type APIKey struct {
	ID      string
	KeyHash string
	Name    string
	UserID  string
	Role    user.Role
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}
