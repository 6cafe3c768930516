package document

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("document not found")

// Visibility selects which documents a listing returns.
type Visibility int

const (
	VisibleAll Visibility = iota
	// Documents owned by the actor.
	VisibleOwned
	// Documents whose history belongs to a patient with an appointment with
	// the actor as specialist.
	VisibleViaHistory
	// Documents uploaded by patients with an appointment with the actor as
	// specialist.
	VisibleViaOwner
)

type Filter struct {
	Visibility Visibility
	ActorID    int64
}

type Repository interface {
	Create(ctx context.Context, d *Document) error
	// GetByID ignores soft-deleted documents.
	GetByID(ctx context.Context, id int64) (*Document, error)
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Document, int, error)

	HistoryActive(ctx context.Context, historyID int64) (bool, error)
	// SpecialistHasPatient reports whether the specialist account has any
	// appointment with the patient profile.
	SpecialistHasPatient(ctx context.Context, specialistUserID, patientID int64) (bool, error)
	// SpecialistServesOwner reports whether the specialist account has a
	// pending, confirmed or completed appointment with the patient profile of
	// the owner account.
	SpecialistServesOwner(ctx context.Context, specialistUserID, ownerID int64) (bool, error)
}
