package patient

import (
	"time"

	"github.com/clinica/clinica/internal/domain/identity"
	"github.com/clinica/clinica/internal/platform/apperr"
)

// Patient maps to the patients table. Name, Surnames and Email are read from
// the linked account.
type Patient struct {
	ID                  int64      `json:"id"`
	UserID              int64      `json:"user_id"`
	MedicalRecordNumber *string    `json:"medical_record_number,omitempty"`
	AdmissionDate       *time.Time `json:"admission_date,omitempty"`
	DischargeDate       *time.Time `json:"discharge_date,omitempty"`
	Name                string     `json:"name"`
	Surnames            string     `json:"surnames"`
	Email               string     `json:"email"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// CreateInput either links an existing account (UserID) or carries the
// fields of a new one.
type CreateInput struct {
	UserID *int64 `json:"user_id"`
	identity.AccountInput
	MedicalRecordNumber *string    `json:"medical_record_number"`
	AdmissionDate       *time.Time `json:"admission_date"`
}

func (in *CreateInput) Validate() error {
	if in.MedicalRecordNumber != nil && len(*in.MedicalRecordNumber) > 50 {
		return apperr.Validation("medical_record_number must be at most 50 characters")
	}
	if in.UserID != nil {
		if *in.UserID <= 0 {
			return apperr.Validation("user_id must be a positive integer")
		}
		return nil
	}
	return in.AccountInput.ValidateCreate()
}

type UpdateInput struct {
	MedicalRecordNumber *string    `json:"medical_record_number"`
	AdmissionDate       *time.Time `json:"admission_date"`
	DischargeDate       *time.Time `json:"discharge_date"`
}

func (in *UpdateInput) Validate() error {
	if in.MedicalRecordNumber != nil && len(*in.MedicalRecordNumber) > 50 {
		return apperr.Validation("medical_record_number must be at most 50 characters")
	}
	return nil
}
