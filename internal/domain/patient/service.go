package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinica/clinica/internal/domain/identity"
	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/db"
	"github.com/clinica/clinica/internal/platform/policy"
)

const affected = "patients"

// Accounts creates or extends the user account behind a patient.
type Accounts interface {
	Register(ctx context.Context, in identity.AccountInput) (*identity.User, error)
	GrantRole(ctx context.Context, userID int64, role string) (*identity.User, error)
}

type Service struct {
	repo     Repository
	accounts Accounts
	policy   *policy.Evaluator
	audit    *audit.Recorder
	tx       db.TxRunner
}

func NewService(repo Repository, accounts Accounts, pol *policy.Evaluator, rec *audit.Recorder, tx db.TxRunner) *Service {
	return &Service{repo: repo, accounts: accounts, policy: pol, audit: rec, tx: tx}
}

func (s *Service) record(ctx context.Context, actor *auth.Actor, base string, err error, desc string) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:     actor.IDPtr(),
		Action:      audit.ActionFor(base, err),
		Description: desc,
		Affected:    affected,
	})
}

func (s *Service) authorize(actor *auth.Actor, act policy.Action) error {
	if !s.policy.Allowed(actor.Subject(), policy.Patient, act, policy.Facts{}) {
		return apperr.Forbidden("administrator role required")
	}
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("patient not found")
	}
	if err != nil {
		return nil, apperr.Internal("load patient", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, actor *auth.Actor, limit, offset int) (items []*Patient, total int, err error) {
	defer func() { s.record(ctx, actor, audit.ActionListPatients, err, "list patients") }()
	if err = s.authorize(actor, policy.List); err != nil {
		return nil, 0, err
	}
	items, total, err = s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list patients", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, actor *auth.Actor, id int64) (p *Patient, err error) {
	defer func() { s.record(ctx, actor, audit.ActionViewPatient, err, fmt.Sprintf("patient %d", id)) }()
	if err = s.authorize(actor, policy.Read); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create builds the account (or grants the patient role to an existing one)
// and the patient profile in one transaction.
func (s *Service) Create(ctx context.Context, actor *auth.Actor, in CreateInput) (p *Patient, err error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	defer func() {
		desc := "create patient"
		if p != nil {
			desc = fmt.Sprintf("patient %d for user %d", p.ID, p.UserID)
		}
		s.record(ctx, actor, audit.ActionCreatePatient, err, desc)
	}()
	if err = s.authorize(actor, policy.Create); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var (
			u    *identity.User
			uerr error
		)
		if in.UserID != nil {
			u, uerr = s.accounts.GrantRole(ctx, *in.UserID, policy.RolePatient)
		} else {
			account := in.AccountInput
			account.Roles = []string{policy.RolePatient}
			u, uerr = s.accounts.Register(ctx, account)
		}
		if uerr != nil {
			return uerr
		}

		p = &Patient{
			UserID:              u.ID,
			MedicalRecordNumber: in.MedicalRecordNumber,
			AdmissionDate:       in.AdmissionDate,
			Name:                u.Name,
			Surnames:            u.Surnames,
			Email:               u.Email,
		}
		if cerr := s.repo.Create(ctx, p); cerr != nil {
			if errors.Is(cerr, ErrDuplicate) {
				return apperr.Validation("user %d already has a patient profile", u.ID)
			}
			return apperr.Internal("create patient", cerr)
		}
		return nil
	})
	if err != nil {
		p = nil
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, actor *auth.Actor, id int64, in UpdateInput) (p *Patient, err error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	defer func() { s.record(ctx, actor, audit.ActionUpdatePatient, err, fmt.Sprintf("patient %d", id)) }()

	if p, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	if err = s.authorize(actor, policy.Update); err != nil {
		return nil, err
	}
	if in.MedicalRecordNumber != nil {
		p.MedicalRecordNumber = in.MedicalRecordNumber
	}
	if in.AdmissionDate != nil {
		p.AdmissionDate = in.AdmissionDate
	}
	if in.DischargeDate != nil {
		p.DischargeDate = in.DischargeDate
	}
	if p.AdmissionDate != nil && p.DischargeDate != nil && p.DischargeDate.Before(*p.AdmissionDate) {
		return nil, apperr.Validation("discharge_date must not precede admission_date")
	}
	if err = s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("patient not found")
		}
		return nil, apperr.Internal("update patient", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.Actor, id int64) (err error) {
	defer func() { s.record(ctx, actor, audit.ActionDeletePatient, err, fmt.Sprintf("patient %d", id)) }()

	if _, err = s.load(ctx, id); err != nil {
		return err
	}
	if err = s.authorize(actor, policy.Delete); err != nil {
		return err
	}
	if err = s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("patient not found")
		}
		return apperr.Internal("delete patient", err)
	}
	return nil
}
