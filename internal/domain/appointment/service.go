package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/policy"
)

type Service struct {
	repo   Repository
	policy *policy.Evaluator
	audit  *audit.Recorder
	now    func() time.Time
}

func NewService(repo Repository, pol *policy.Evaluator, rec *audit.Recorder) *Service {
	return &Service{repo: repo, policy: pol, audit: rec, now: time.Now}
}

func (s *Service) record(ctx context.Context, actor *auth.Actor, base string, err error, desc string) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:     actor.IDPtr(),
		Action:      audit.ActionFor(base, err),
		Description: desc,
		Affected:    "appointments",
	})
}

func facts(a *Appointment) policy.Facts {
	return policy.Facts{PatientActorID: a.PatientActorID, SpecialistActorID: a.SpecialistActorID}
}

func (s *Service) authorize(actor *auth.Actor, act policy.Action, f policy.Facts, msg string) error {
	if !s.policy.Allowed(actor.Subject(), policy.Appointment, act, f) {
		return apperr.Forbidden(msg)
	}
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("appointment not found")
	}
	if err != nil {
		return nil, apperr.Internal("load appointment", err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, actor *auth.Actor, limit, offset int) (items []*Appointment, total int, err error) {
	defer func() {
		s.record(ctx, actor, audit.ActionListAppointments, err, fmt.Sprintf("%d appointments", total))
	}()
	if err = s.authorize(actor, policy.List, policy.Facts{}, "not allowed to list appointments"); err != nil {
		return nil, 0, err
	}
	items, total, err = s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list appointments", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, actor *auth.Actor, id int64) (a *Appointment, err error) {
	defer func() { s.record(ctx, actor, audit.ActionViewAppointment, err, fmt.Sprintf("appointment %d", id)) }()
	if a, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	if err = s.authorize(actor, policy.Read, facts(a), "not allowed to view this appointment"); err != nil {
		return nil, err
	}
	return a, nil
}

// Create books a pending appointment. The patient and specialist must exist
// and not be deleted.
func (s *Service) Create(ctx context.Context, actor *auth.Actor, in CreateInput) (a *Appointment, err error) {
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	defer func() {
		desc := fmt.Sprintf("patient %d with specialist %d", in.PatientID, in.SpecialistID)
		if a != nil {
			desc = fmt.Sprintf("appointment %d, %s", a.ID, desc)
		}
		s.record(ctx, actor, audit.ActionCreateAppointment, err, desc)
	}()
	if err = s.authorize(actor, policy.Create, policy.Facts{}, "not allowed to create appointments"); err != nil {
		return nil, err
	}
	if err = s.checkReferences(ctx, in.PatientID, in.SpecialistID); err != nil {
		return nil, err
	}

	a = &Appointment{
		PatientID:    in.PatientID,
		SpecialistID: in.SpecialistID,
		ScheduledAt:  in.scheduledAt,
		Type:         in.Type,
		Status:       StatusPending,
		FirstVisit:   in.FirstVisit,
		Comment:      in.Comment,
	}
	if err = s.repo.Create(ctx, a); err != nil {
		a = nil
		return nil, apperr.Internal("create appointment", err)
	}
	return a, nil
}

func (s *Service) checkReferences(ctx context.Context, patientID, specialistID int64) error {
	ok, err := s.repo.PatientActive(ctx, patientID)
	if err != nil {
		return apperr.Internal("check patient", err)
	}
	if !ok {
		return apperr.Validation("paciente_id %d does not reference an active patient", patientID)
	}
	ok, err = s.repo.SpecialistActive(ctx, specialistID)
	if err != nil {
		return apperr.Internal("check specialist", err)
	}
	if !ok {
		return apperr.Validation("especialista_id %d does not reference an active specialist", specialistID)
	}
	return nil
}

// Update applies a partial change. A status change must follow the same
// transition table as Cancel.
func (s *Service) Update(ctx context.Context, actor *auth.Actor, id int64, in UpdateInput) (a *Appointment, err error) {
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	defer func() { s.record(ctx, actor, audit.ActionUpdateAppointment, err, fmt.Sprintf("appointment %d", id)) }()

	if a, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	if err = s.authorize(actor, policy.Update, facts(a), "not allowed to update this appointment"); err != nil {
		return nil, err
	}
	if in.Status != nil && !a.Status.CanTransitionTo(*in.Status) {
		return nil, apperr.Validation("estado cannot change from %s to %s", a.Status, *in.Status)
	}
	version := a.UpdatedAt

	if in.scheduledAt != nil {
		a.ScheduledAt = *in.scheduledAt
	}
	if in.Type != nil {
		a.Type = *in.Type
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if in.Comment != nil {
		a.Comment = in.Comment
	}
	if err = s.repo.Update(ctx, a, version); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, apperr.NotFound("appointment not found")
		case errors.Is(err, ErrConflict):
			return nil, apperr.Validation("appointment was modified by another request, reload and retry")
		}
		return nil, apperr.Internal("update appointment", err)
	}
	return a, nil
}

// Cancel moves the appointment to cancelled. Only its patient or specialist
// may do so. Cancelling an already cancelled appointment succeeds without a
// write and reports noop.
func (s *Service) Cancel(ctx context.Context, actor *auth.Actor, id int64) (a *Appointment, noop bool, err error) {
	action := audit.ActionCancelAppointment
	defer func() {
		s.record(ctx, actor, action, err, fmt.Sprintf("appointment %d", id))
	}()

	if a, err = s.load(ctx, id); err != nil {
		return nil, false, err
	}
	if err = s.authorize(actor, policy.Cancel, facts(a), "not allowed to cancel this appointment"); err != nil {
		return nil, false, err
	}
	if a.Status == StatusCancelled {
		action = audit.ActionCancelAppointmentNoop
		return a, true, nil
	}
	if !a.Status.CanTransitionTo(StatusCancelled) {
		return nil, false, apperr.Validation("a %s appointment cannot be cancelled", a.Status)
	}

	changed, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, false, apperr.Internal("cancel appointment", err)
	}
	if !changed {
		// Another request moved the appointment since it was loaded.
		if a, err = s.load(ctx, id); err != nil {
			return nil, false, err
		}
		if a.Status != StatusCancelled {
			return nil, false, apperr.Validation("a %s appointment cannot be cancelled", a.Status)
		}
		action = audit.ActionCancelAppointmentNoop
		return a, true, nil
	}
	a.Status = StatusCancelled
	return a, false, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.Actor, id int64) (err error) {
	defer func() { s.record(ctx, actor, audit.ActionDeleteAppointment, err, fmt.Sprintf("appointment %d", id)) }()

	var a *Appointment
	if a, err = s.load(ctx, id); err != nil {
		return err
	}
	if err = s.authorize(actor, policy.Delete, facts(a), "only administrators can delete appointments"); err != nil {
		return err
	}
	if err = s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("appointment not found")
		}
		return apperr.Internal("delete appointment", err)
	}
	return nil
}
