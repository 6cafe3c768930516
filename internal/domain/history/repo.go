package history

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("history not found")

type Repository interface {
	Create(ctx context.Context, h *History) error
	// GetByID ignores soft-deleted histories and fills the actor ids of the
	// patient and specialist.
	GetByID(ctx context.Context, id int64) (*History, error)
	Update(ctx context.Context, h *History) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*History, int, error)

	PatientActive(ctx context.Context, patientID int64) (bool, error)
	SpecialistActive(ctx context.Context, specialistID int64) (bool, error)
}
