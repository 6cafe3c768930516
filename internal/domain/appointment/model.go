package appointment

import (
	"strings"
	"time"

	"github.com/clinica/clinica/internal/platform/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// transitions lists the legal next states. Cancelled and completed are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s. Staying in the
// same state is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type Type string

const (
	TypeInPerson Type = "in-person"
	TypeRemote   Type = "remote"
)

func (t Type) Valid() bool {
	return t == TypeInPerson || t == TypeRemote
}

// Appointment is serialized with the field names the clinic front end uses.
type Appointment struct {
	ID           int64     `json:"id"`
	PatientID    int64     `json:"paciente_id"`
	SpecialistID int64     `json:"especialista_id"`
	ScheduledAt  time.Time `json:"fecha_hora"`
	Type         Type      `json:"tipo"`
	Status       Status    `json:"estado"`
	FirstVisit   bool      `json:"es_primera"`
	Comment      *string   `json:"comentario,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// User ids behind the patient and specialist profiles.
	PatientActorID    int64 `json:"-"`
	SpecialistActorID int64 `json:"-"`
}

// Accepted layouts for fecha_hora.
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func parseScheduledAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("fecha_hora must be a datetime (YYYY-MM-DD HH:MM:SS)")
}

func validateFuture(t, now time.Time) error {
	if !t.After(now) {
		return apperr.Validation("fecha_hora must be in the future")
	}
	return nil
}

type CreateInput struct {
	PatientID    int64   `json:"paciente_id"`
	SpecialistID int64   `json:"especialista_id"`
	ScheduledAt  string  `json:"fecha_hora"`
	Type         Type    `json:"tipo"`
	FirstVisit   bool    `json:"es_primera"`
	Comment      *string `json:"comentario"`

	scheduledAt time.Time
}

// Validate checks the payload against the clock. References to patients and
// specialists are checked by the service.
func (in *CreateInput) Validate(now time.Time) error {
	if in.PatientID <= 0 {
		return apperr.Validation("paciente_id is required")
	}
	if in.SpecialistID <= 0 {
		return apperr.Validation("especialista_id is required")
	}
	if in.ScheduledAt == "" {
		return apperr.Validation("fecha_hora is required")
	}
	t, err := parseScheduledAt(in.ScheduledAt)
	if err != nil {
		return err
	}
	if err := validateFuture(t, now); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return apperr.Validation("tipo must be one of in-person, remote")
	}
	in.scheduledAt = t
	return nil
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	ScheduledAt *string `json:"fecha_hora"`
	Type        *Type   `json:"tipo"`
	Status      *Status `json:"estado"`
	Comment     *string `json:"comentario"`

	scheduledAt *time.Time
}

func (in *UpdateInput) Validate(now time.Time) error {
	if in.ScheduledAt != nil {
		t, err := parseScheduledAt(*in.ScheduledAt)
		if err != nil {
			return err
		}
		if err := validateFuture(t, now); err != nil {
			return err
		}
		in.scheduledAt = &t
	}
	if in.Type != nil && !in.Type.Valid() {
		return apperr.Validation("tipo must be one of in-person, remote")
	}
	if in.Status != nil && !in.Status.Valid() {
		return apperr.Validation("estado must be one of pending, confirmed, cancelled, completed")
	}
	return nil
}
