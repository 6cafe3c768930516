package history

import (
	"time"

	"github.com/clinica/clinica/internal/platform/apperr"
)

// History is a medical history entry written by a specialist for a patient.
type History struct {
	ID                     int64     `json:"id"`
	PatientID              int64     `json:"patient_id"`
	SpecialistID           int64     `json:"specialist_id"`
	PatientComments        *string   `json:"patient_comments,omitempty"`
	SpecialistObservations *string   `json:"specialist_observations,omitempty"`
	Recommendations        *string   `json:"recommendations,omitempty"`
	Diet                   *string   `json:"diet,omitempty"`
	ShoppingList           *string   `json:"shopping_list,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`

	PatientActorID    int64 `json:"-"`
	SpecialistActorID int64 `json:"-"`
}

// Notes are the free-text clinical fields.
type Notes struct {
	PatientComments        *string `json:"patient_comments"`
	SpecialistObservations *string `json:"specialist_observations"`
	Recommendations        *string `json:"recommendations"`
	Diet                   *string `json:"diet"`
	ShoppingList           *string `json:"shopping_list"`
}

const maxNoteLength = 10000

func (n *Notes) validate() error {
	for name, v := range map[string]*string{
		"patient_comments":        n.PatientComments,
		"specialist_observations": n.SpecialistObservations,
		"recommendations":         n.Recommendations,
		"diet":                    n.Diet,
		"shopping_list":           n.ShoppingList,
	} {
		if v != nil && len(*v) > maxNoteLength {
			return apperr.Validation("%s must be at most %d characters", name, maxNoteLength)
		}
	}
	return nil
}

// apply copies the non-nil fields onto h.
func (n *Notes) apply(h *History) {
	if n.PatientComments != nil {
		h.PatientComments = n.PatientComments
	}
	if n.SpecialistObservations != nil {
		h.SpecialistObservations = n.SpecialistObservations
	}
	if n.Recommendations != nil {
		h.Recommendations = n.Recommendations
	}
	if n.Diet != nil {
		h.Diet = n.Diet
	}
	if n.ShoppingList != nil {
		h.ShoppingList = n.ShoppingList
	}
}

type CreateInput struct {
	PatientID    int64 `json:"patient_id"`
	SpecialistID int64 `json:"specialist_id"`
	Notes
}

func (in *CreateInput) Validate() error {
	if in.PatientID <= 0 {
		return apperr.Validation("patient_id is required")
	}
	if in.SpecialistID <= 0 {
		return apperr.Validation("specialist_id is required")
	}
	return in.Notes.validate()
}

type UpdateInput struct {
	Notes
}

func (in *UpdateInput) Validate() error {
	return in.Notes.validate()
}
