package history

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/policy"
)

type mockHistoryRepo struct {
	items       map[int64]*History
	patients    map[int64]int64
	specialists map[int64]int64
	nextID      int64
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{
		items:       make(map[int64]*History),
		patients:    map[int64]int64{1: 10, 2: 11},
		specialists: map[int64]int64{1: 20},
	}
}

func (m *mockHistoryRepo) Create(_ context.Context, h *History) error {
	m.nextID++
	h.ID = m.nextID
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	h.PatientActorID = m.patients[h.PatientID]
	h.SpecialistActorID = m.specialists[h.SpecialistID]
	cp := *h
	m.items[h.ID] = &cp
	return nil
}

func (m *mockHistoryRepo) GetByID(_ context.Context, id int64) (*History, error) {
	h, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *mockHistoryRepo) Update(_ context.Context, h *History) error {
	if _, ok := m.items[h.ID]; !ok {
		return ErrNotFound
	}
	cp := *h
	m.items[h.ID] = &cp
	return nil
}

func (m *mockHistoryRepo) SoftDelete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockHistoryRepo) List(_ context.Context, limit, offset int) ([]*History, int, error) {
	var out []*History
	for i := int64(1); i <= m.nextID; i++ {
		if h, ok := m.items[i]; ok {
			out = append(out, h)
		}
	}
	total := len(out)
	if offset >= total {
		return []*History{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockHistoryRepo) PatientActive(_ context.Context, id int64) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

func (m *mockHistoryRepo) SpecialistActive(_ context.Context, id int64) (bool, error) {
	_, ok := m.specialists[id]
	return ok, nil
}

type fixture struct {
	svc  *Service
	repo *mockHistoryRepo
	logs *audit.MemoryStore

	admin, specialist, patient, otherPatient *auth.Actor
}

func newFixture(opts policy.Options) *fixture {
	repo := newMockHistoryRepo()
	logs := audit.NewMemoryStore()
	return &fixture{
		svc:          NewService(repo, policy.MustNew(opts), audit.NewRecorder(logs, zerolog.Nop())),
		repo:         repo,
		logs:         logs,
		admin:        &auth.Actor{ID: 1, Roles: []string{policy.RoleAdministrator}},
		specialist:   &auth.Actor{ID: 20, Roles: []string{policy.RoleSpecialist}},
		patient:      &auth.Actor{ID: 10, Roles: []string{policy.RolePatient}},
		otherPatient: &auth.Actor{ID: 11, Roles: []string{policy.RolePatient}},
	}
}

func (f *fixture) lastAction(t *testing.T) string {
	t.Helper()
	actions := f.logs.Actions()
	if len(actions) == 0 {
		t.Fatal("expected an audit entry")
	}
	return actions[len(actions)-1]
}

func strPtr(s string) *string { return &s }

func (f *fixture) write(t *testing.T) *History {
	t.Helper()
	h, err := f.svc.Create(context.Background(), f.specialist, CreateInput{
		PatientID: 1, SpecialistID: 1,
		Notes: Notes{Diet: strPtr("low sodium"), Recommendations: strPtr("walk daily")},
	})
	if err != nil {
		t.Fatalf("create history: %v", err)
	}
	return h
}

func TestCreate_SpecialistOnly(t *testing.T) {
	f := newFixture(policy.Options{})
	h := f.write(t)
	if h.Diet == nil || *h.Diet != "low sodium" {
		t.Errorf("unexpected history %+v", h)
	}

	_, err := f.svc.Create(context.Background(), f.patient, CreateInput{PatientID: 1, SpecialistID: 1})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if f.lastAction(t) != "create_history_unauthorized" {
		t.Errorf("expected create_history_unauthorized, got %s", f.lastAction(t))
	}
	if len(f.repo.items) != 1 {
		t.Error("denied create must not write")
	}
}

func TestCreate_UnknownPatient(t *testing.T) {
	f := newFixture(policy.Options{})
	_, err := f.svc.Create(context.Background(), f.specialist, CreateInput{PatientID: 9, SpecialistID: 1})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_MissingIDsNotAudited(t *testing.T) {
	f := newFixture(policy.Options{})
	_, err := f.svc.Create(context.Background(), f.specialist, CreateInput{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.logs.Entries()) != 0 {
		t.Error("validation failures must not be audited")
	}
}

func TestGet_CompatibleMode(t *testing.T) {
	f := newFixture(policy.Options{})
	h := f.write(t)
	for _, a := range []*auth.Actor{f.admin, f.specialist, f.patient, f.otherPatient} {
		if _, err := f.svc.Get(context.Background(), a, h.ID); err != nil {
			t.Errorf("actor %d: unexpected error %v", a.ID, err)
		}
	}
}

func TestGet_StrictMode(t *testing.T) {
	f := newFixture(policy.Options{StrictHistoryRead: true})
	h := f.write(t)
	if _, err := f.svc.Get(context.Background(), f.patient, h.ID); err != nil {
		t.Fatalf("own patient: unexpected error %v", err)
	}
	if _, err := f.svc.Get(context.Background(), f.admin, h.ID); err != nil {
		t.Fatalf("admin: unexpected error %v", err)
	}
	_, err := f.svc.Get(context.Background(), f.otherPatient, h.ID)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if f.lastAction(t) != "view_history_unauthorized" {
		t.Errorf("expected view_history_unauthorized, got %s", f.lastAction(t))
	}
}

func TestUpdate_KeepsUntouchedNotes(t *testing.T) {
	f := newFixture(policy.Options{})
	h := f.write(t)
	got, err := f.svc.Update(context.Background(), f.specialist, h.ID, UpdateInput{
		Notes: Notes{Diet: strPtr("mediterranean")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got.Diet != "mediterranean" || *got.Recommendations != "walk daily" {
		t.Errorf("unexpected history %+v", got)
	}
}

func TestDelete_AdminOnly(t *testing.T) {
	f := newFixture(policy.Options{})
	h := f.write(t)
	if err := f.svc.Delete(context.Background(), f.specialist, h.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.admin, h.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.admin, h.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if f.lastAction(t) != "delete_history_not_found" {
		t.Errorf("expected delete_history_not_found, got %s", f.lastAction(t))
	}
}

func TestList_AdminOnly(t *testing.T) {
	f := newFixture(policy.Options{})
	f.write(t)
	if _, _, err := f.svc.List(context.Background(), f.specialist, 10, 0); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	items, total, err := f.svc.List(context.Background(), f.admin, 10, 0)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("expected one history, got %d/%d err=%v", len(items), total, err)
	}
}
