package specialist

import (
	"strings"
	"time"

	"github.com/clinica/clinica/internal/domain/identity"
	"github.com/clinica/clinica/internal/platform/apperr"
)

type Specialist struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Specialty string    `json:"specialty"`
	Phone     *string   `json:"phone,omitempty"`
	Name      string    `json:"name"`
	Surnames  string    `json:"surnames"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateInput struct {
	UserID *int64 `json:"user_id"`
	identity.AccountInput
	Specialty string `json:"specialty"`
	// SpecialistPhone is the practice phone; the account phone lives in AccountInput.
	SpecialistPhone *string `json:"specialist_phone"`
}

func (in *CreateInput) Validate() error {
	in.Specialty = strings.TrimSpace(in.Specialty)
	if in.Specialty == "" {
		return apperr.Validation("specialty is required")
	}
	if len(in.Specialty) > 100 {
		return apperr.Validation("specialty must be at most 100 characters")
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
	Specialty *string `json:"specialty"`
	Phone     *string `json:"phone"`
}

func (in *UpdateInput) Validate() error {
	if in.Specialty != nil {
		s := strings.TrimSpace(*in.Specialty)
		if s == "" {
			return apperr.Validation("specialty must not be empty")
		}
		if len(s) > 100 {
			return apperr.Validation("specialty must be at most 100 characters")
		}
		in.Specialty = &s
	}
	return nil
}
