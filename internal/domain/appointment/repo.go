package appointment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrConflict means the row changed after the caller read it.
	ErrConflict = errors.New("appointment changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	// GetByID fills PatientActorID and SpecialistActorID.
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	// Update writes a only if the row still carries the updated_at the caller
	// read (version); otherwise it returns ErrConflict.
	Update(ctx context.Context, a *Appointment, version time.Time) error
	// Cancel sets the status to cancelled when it is still pending or
	// confirmed. It reports whether a row changed.
	Cancel(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Appointment, int, error)

	PatientActive(ctx context.Context, patientID int64) (bool, error)
	SpecialistActive(ctx context.Context, specialistID int64) (bool, error)
}
