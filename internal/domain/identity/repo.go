package identity

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type UserRepository interface {
	// Create inserts the user and its roles.
	Create(ctx context.Context, u *User) error
	// GetByID and GetByEmail ignore soft-deleted users.
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	SetRoles(ctx context.Context, id int64, roles []string) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}
