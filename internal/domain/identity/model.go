package identity

import (
	"net/mail"
	"strings"
	"time"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/policy"
)

// User maps to the users table plus its roles.
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Surnames     string     `json:"surnames"`
	NationalID   *string    `json:"national_id,omitempty"`
	Email        string     `json:"email"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Roles        []string   `json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) Actor() *auth.Actor {
	return &auth.Actor{ID: u.ID, Name: u.Name, Surnames: u.Surnames, Email: u.Email, Roles: u.Roles}
}

// AccountInput is the payload for creating or updating an account. On update
// empty fields are left unchanged.
type AccountInput struct {
	Name       string     `json:"name"`
	Surnames   string     `json:"surnames"`
	NationalID *string    `json:"national_id"`
	Email      string     `json:"email"`
	BirthDate  *time.Time `json:"birth_date"`
	Phone      *string    `json:"phone"`
	Password   string     `json:"password"`
	Roles      []string   `json:"roles"`
}

const minPasswordLength = 6

func (in *AccountInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Surnames = strings.TrimSpace(in.Surnames)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

// ValidateCreate checks a new account.
func (in *AccountInput) ValidateCreate() error {
	in.normalize()
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	if len(in.Name) > 100 {
		return apperr.Validation("name must be at most 100 characters")
	}
	if in.Surnames == "" {
		return apperr.Validation("surnames is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if len(in.Password) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	return validateRoles(in.Roles)
}

// ValidateUpdate checks a partial update.
func (in *AccountInput) ValidateUpdate() error {
	in.normalize()
	if len(in.Name) > 100 {
		return apperr.Validation("name must be at most 100 characters")
	}
	if in.Email != "" {
		if err := validateEmail(in.Email); err != nil {
			return err
		}
	}
	if in.Password != "" && len(in.Password) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	return validateRoles(in.Roles)
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("email is not a valid address")
	}
	return nil
}

func validateRoles(roles []string) error {
	for _, r := range roles {
		if !policy.ValidRoles[r] {
			return apperr.Validation("invalid role: %s", r)
		}
	}
	return nil
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	User        LoginUser `json:"user"`
}

type LoginUser struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Surnames string `json:"surnames"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
