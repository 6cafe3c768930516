package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/policy"
)

type Service struct {
	repo   Repository
	policy *policy.Evaluator
	audit  *audit.Recorder
}

func NewService(repo Repository, pol *policy.Evaluator, rec *audit.Recorder) *Service {
	return &Service{repo: repo, policy: pol, audit: rec}
}

func (s *Service) record(ctx context.Context, actor *auth.Actor, base string, err error, desc string) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:     actor.IDPtr(),
		Action:      audit.ActionFor(base, err),
		Description: desc,
		Affected:    "histories",
	})
}

func (s *Service) authorize(actor *auth.Actor, act policy.Action, h *History) error {
	var f policy.Facts
	if h != nil {
		f = policy.Facts{PatientActorID: h.PatientActorID, SpecialistActorID: h.SpecialistActorID}
	}
	if !s.policy.Allowed(actor.Subject(), policy.History, act, f) {
		return apperr.Forbidden("not allowed to " + string(act) + " histories")
	}
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (*History, error) {
	h, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("history not found")
	}
	if err != nil {
		return nil, apperr.Internal("load history", err)
	}
	return h, nil
}

func (s *Service) List(ctx context.Context, actor *auth.Actor, limit, offset int) (items []*History, total int, err error) {
	defer func() { s.record(ctx, actor, audit.ActionListHistories, err, fmt.Sprintf("%d histories", total)) }()
	if err = s.authorize(actor, policy.List, nil); err != nil {
		return nil, 0, err
	}
	items, total, err = s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list histories", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, actor *auth.Actor, id int64) (h *History, err error) {
	defer func() { s.record(ctx, actor, audit.ActionViewHistory, err, fmt.Sprintf("history %d", id)) }()
	if h, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	if err = s.authorize(actor, policy.Read, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) Create(ctx context.Context, actor *auth.Actor, in CreateInput) (h *History, err error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	defer func() {
		desc := fmt.Sprintf("history for patient %d", in.PatientID)
		if h != nil {
			desc = fmt.Sprintf("history %d for patient %d", h.ID, h.PatientID)
		}
		s.record(ctx, actor, audit.ActionCreateHistory, err, desc)
	}()
	if err = s.authorize(actor, policy.Create, nil); err != nil {
		return nil, err
	}

	ok, err := s.repo.PatientActive(ctx, in.PatientID)
	if err != nil {
		return nil, apperr.Internal("check patient", err)
	}
	if !ok {
		return nil, apperr.Validation("patient_id %d does not reference an active patient", in.PatientID)
	}
	if ok, err = s.repo.SpecialistActive(ctx, in.SpecialistID); err != nil {
		return nil, apperr.Internal("check specialist", err)
	}
	if !ok {
		return nil, apperr.Validation("specialist_id %d does not reference an active specialist", in.SpecialistID)
	}

	h = &History{PatientID: in.PatientID, SpecialistID: in.SpecialistID}
	in.Notes.apply(h)
	if err = s.repo.Create(ctx, h); err != nil {
		h = nil
		return nil, apperr.Internal("create history", err)
	}
	return h, nil
}

func (s *Service) Update(ctx context.Context, actor *auth.Actor, id int64, in UpdateInput) (h *History, err error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	defer func() { s.record(ctx, actor, audit.ActionUpdateHistory, err, fmt.Sprintf("history %d", id)) }()

	if h, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	if err = s.authorize(actor, policy.Update, h); err != nil {
		return nil, err
	}
	in.Notes.apply(h)
	if err = s.repo.Update(ctx, h); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("history not found")
		}
		return nil, apperr.Internal("update history", err)
	}
	return h, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.Actor, id int64) (err error) {
	defer func() { s.record(ctx, actor, audit.ActionDeleteHistory, err, fmt.Sprintf("history %d", id)) }()

	var h *History
	if h, err = s.load(ctx, id); err != nil {
		return err
	}
	if err = s.authorize(actor, policy.Delete, h); err != nil {
		return err
	}
	if err = s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("history not found")
		}
		return apperr.Internal("delete history", err)
	}
	return nil
}
