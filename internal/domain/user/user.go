package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Role enumerates account roles.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// User is a registered account.
type User struct {
	ID        string
	Email     string
	Username  string
	Role      Role
	FirstName string
	LastName  string
	// Groups are named user groups referenced by coupon restrictions.
	Groups    []string
	Verified  bool
	CreatedAt time.Time
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsVendor reports whether the user may manage a shop.
func (u *User) IsVendor() bool { return u.Role == RoleVendor }

// IsAdmin reports whether the user has platform-wide privileges.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Repository defines persistence operations for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) error
}
