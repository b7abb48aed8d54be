package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendura/vendura/internal/domain/auth"
	"github.com/vendura/vendura/internal/domain/user"
)

// ErrAPIKeyNotFound is returned when no active key matches the hash.
var ErrAPIKeyNotFound = errors.New("api key not found")

const findAPIKeyByHashSQL = `SELECT k.id, k.key_hash, k.name, k.user_id, u.role
	FROM api_keys k
	JOIN users u ON u.id = k.user_id
	WHERE k.key_hash = $1 AND k.active`

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository backed by PostgreSQL.
// The key's role comes from the owning user, not the key row.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash returns the active key matching the HMAC hash, or ErrAPIKeyNotFound.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKey, error) {
	var (
		k    auth.APIKey
		role string
	)
	err := r.pool.QueryRow(ctx, findAPIKeyByHashSQL, hash).Scan(
		&k.ID, &k.KeyHash, &k.Name, &k.UserID, &role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("finding api key: %w", err)
	}
	k.Role = user.Role(role)
	return &k, nil
}
