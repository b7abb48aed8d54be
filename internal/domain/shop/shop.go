package shop

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested shop does not exist.
var ErrNotFound = errors.New("shop not found")

// Shop is a vendor's storefront. Each vendor user owns at most one shop.
type Shop struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines persistence operations for shops.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Shop, error)
	GetByOwner(ctx context.Context, ownerID string) (*Shop, error)
	Create(ctx context.Context, s *Shop) error
}
