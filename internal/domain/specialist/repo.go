package specialist

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("specialist not found")
	ErrDuplicate = errors.New("account already has a specialist profile")
)

type Repository interface {
	Create(ctx context.Context, s *Specialist) error
	GetByID(ctx context.Context, id int64) (*Specialist, error)
	Update(ctx context.Context, s *Specialist) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Specialist, int, error)
}
