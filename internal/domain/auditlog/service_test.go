package auditlog

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/policy"
)

type fixture struct {
	svc     *Service
	store   *audit.MemoryStore
	admin   *auth.Actor
	patient *auth.Actor
}

func newFixture() *fixture {
	store := audit.NewMemoryStore()
	rec := audit.NewRecorder(store, zerolog.Nop())
	ctx := context.Background()
	rec.Record(ctx, audit.Entry{ActorID: audit.Actor(7), Action: audit.ActionLogin})
	rec.Record(ctx, audit.Entry{ActorID: audit.Actor(7), Action: "view_document_unauthorized"})
	rec.Record(ctx, audit.Entry{ActorID: audit.Actor(8), Action: audit.ActionLogin})
	rec.Record(ctx, audit.Entry{Action: audit.ActionUnauthenticatedAccess})

	return &fixture{
		svc:     NewService(store, policy.MustNew(policy.Options{}), rec),
		store:   store,
		admin:   &auth.Actor{ID: 1, Roles: []string{policy.RoleAdministrator}},
		patient: &auth.Actor{ID: 7, Roles: []string{policy.RolePatient}},
	}
}

func TestList_All(t *testing.T) {
	f := newFixture()
	logs, total, err := f.svc.List(context.Background(), f.admin, audit.Filter{}, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 4 || len(logs) != 4 {
		t.Fatalf("expected 4 entries, got %d", total)
	}
	if logs[0].Action != audit.ActionUnauthenticatedAccess || logs[0].UserID != nil {
		t.Errorf("expected newest anonymous entry first, got %+v", logs[0])
	}
	actions := f.store.Actions()
	if actions[len(actions)-1] != audit.ActionListLogs {
		t.Errorf("expected list_logs to be recorded, got %v", actions)
	}
}

func TestList_ByUser(t *testing.T) {
	f := newFixture()
	uid := int64(7)
	logs, total, err := f.svc.List(context.Background(), f.admin, audit.Filter{UserID: &uid}, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 entries for user 7, got %d", total)
	}
	for _, l := range logs {
		if *l.UserID != 7 {
			t.Errorf("unexpected entry %+v", l)
		}
	}
}

func TestList_ByAction(t *testing.T) {
	f := newFixture()
	_, total, err := f.svc.List(context.Background(), f.admin, audit.Filter{Action: audit.ActionLogin}, 50, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 login entries, got %d", total)
	}
}

func TestList_UnknownAction(t *testing.T) {
	f := newFixture()
	before := len(f.store.Entries())
	_, _, err := f.svc.List(context.Background(), f.admin, audit.Filter{Action: "drop table"}, 50, 0)
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if len(f.store.Entries()) != before {
		t.Error("rejected filters must not be audited")
	}
}

func TestList_Forbidden(t *testing.T) {
	f := newFixture()
	_, _, err := f.svc.List(context.Background(), f.patient, audit.Filter{}, 50, 0)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	actions := f.store.Actions()
	if actions[len(actions)-1] != "list_logs_unauthorized" {
		t.Errorf("expected list_logs_unauthorized, got %s", actions[len(actions)-1])
	}
}
