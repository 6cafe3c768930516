package patient

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("patient not found")
	ErrDuplicate = errors.New("account already has a patient profile")
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	// GetByID ignores soft-deleted patients.
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}
