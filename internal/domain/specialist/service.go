package specialist

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

// Accounts creates or extends the user account behind a specialist.
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
		Affected:    "specialists",
	})
}

func (s *Service) authorize(actor *auth.Actor, act policy.Action) error {
	if !s.policy.Allowed(actor.Subject(), policy.Specialist, act, policy.Facts{}) {
		return apperr.Forbidden("administrator role required")
	}
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (*Specialist, error) {
	sp, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("specialist not found")
	}
	if err != nil {
		return nil, apperr.Internal("load specialist", err)
	}
	return sp, nil
}

func (s *Service) List(ctx context.Context, actor *auth.Actor, limit, offset int) (items []*Specialist, total int, err error) {
	defer func() { s.record(ctx, actor, audit.ActionListSpecialists, err, "list specialists") }()
	if err = s.authorize(actor, policy.List); err != nil {
		return nil, 0, err
	}
	items, total, err = s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list specialists", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, actor *auth.Actor, id int64) (sp *Specialist, err error) {
	defer func() { s.record(ctx, actor, audit.ActionViewSpecialist, err, fmt.Sprintf("specialist %d", id)) }()
	if err = s.authorize(actor, policy.Read); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create makes the account, the specialist role and the profile in one
// transaction. With UserID set the existing account gains the role instead.
func (s *Service) Create(ctx context.Context, actor *auth.Actor, in CreateInput) (sp *Specialist, err error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	defer func() {
		desc := "create specialist"
		if sp != nil {
			desc = fmt.Sprintf("specialist %d (%s) for user %d", sp.ID, sp.Specialty, sp.UserID)
		}
		s.record(ctx, actor, audit.ActionCreateSpecialist, err, desc)
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
			u, uerr = s.accounts.GrantRole(ctx, *in.UserID, policy.RoleSpecialist)
		} else {
			account := in.AccountInput
			account.Roles = []string{policy.RoleSpecialist}
			u, uerr = s.accounts.Register(ctx, account)
		}
		if uerr != nil {
			return uerr
		}

		phone := in.SpecialistPhone
		if phone == nil {
			phone = u.Phone
		}
		sp = &Specialist{
			UserID:    u.ID,
			Specialty: in.Specialty,
			Phone:     phone,
			Name:      u.Name,
			Surnames:  u.Surnames,
			Email:     u.Email,
		}
		if cerr := s.repo.Create(ctx, sp); cerr != nil {
			if errors.Is(cerr, ErrDuplicate) {
				return apperr.Validation("user %d already has a specialist profile", u.ID)
			}
			return apperr.Internal("create specialist", cerr)
		}
		return nil
	})
	if err != nil {
		sp = nil
		return nil, err
	}
	return sp, nil
}

func (s *Service) Update(ctx context.Context, actor *auth.Actor, id int64, in UpdateInput) (sp *Specialist, err error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	defer func() { s.record(ctx, actor, audit.ActionUpdateSpecialist, err, fmt.Sprintf("specialist %d", id)) }()

	if sp, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	if err = s.authorize(actor, policy.Update); err != nil {
		return nil, err
	}
	if in.Specialty != nil {
		sp.Specialty = *in.Specialty
	}
	if in.Phone != nil {
		sp.Phone = in.Phone
	}
	if err = s.repo.Update(ctx, sp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("specialist not found")
		}
		return nil, apperr.Internal("update specialist", err)
	}
	return sp, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.Actor, id int64) (err error) {
	defer func() { s.record(ctx, actor, audit.ActionDeleteSpecialist, err, fmt.Sprintf("specialist %d", id)) }()

	if _, err = s.load(ctx, id); err != nil {
		return err
	}
	if err = s.authorize(actor, policy.Delete); err != nil {
		return err
	}
	if err = s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("specialist not found")
		}
		return apperr.Internal("delete specialist", err)
	}
	return nil
}
