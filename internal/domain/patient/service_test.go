package patient

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/domain/identity"
	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/db"
	"github.com/clinica/clinica/internal/platform/policy"
)

// -- Mocks --

type mockPatientRepo struct {
	items  map[int64]*Patient
	nextID int64
	err    error
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{items: make(map[int64]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.items {
		if existing.UserID == p.UserID {
			return ErrDuplicate
		}
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.items[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) SoftDelete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []*Patient
	for _, p := range m.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset >= total {
		return []*Patient{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

type fakeAccounts struct {
	users  map[int64]*identity.User
	nextID int64
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{users: make(map[int64]*identity.User)}
}

func (f *fakeAccounts) Register(_ context.Context, in identity.AccountInput) (*identity.User, error) {
	if err := in.ValidateCreate(); err != nil {
		return nil, err
	}
	for _, u := range f.users {
		if u.Email == in.Email {
			return nil, apperr.Validation("email is already registered")
		}
	}
	f.nextID++
	u := &identity.User{ID: f.nextID, Name: in.Name, Surnames: in.Surnames, Email: in.Email, Roles: in.Roles}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeAccounts) GrantRole(_ context.Context, userID int64, role string) (*identity.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, apperr.Validation("user %d does not exist", userID)
	}
	u.Roles = append(u.Roles, role)
	return u, nil
}

// -- Fixture --

type fixture struct {
	svc      *Service
	repo     *mockPatientRepo
	accounts *fakeAccounts
	logs     *audit.MemoryStore
	admin    *auth.Actor
	other    *auth.Actor
}

func newFixture() *fixture {
	repo := newMockPatientRepo()
	accounts := newFakeAccounts()
	logs := audit.NewMemoryStore()
	svc := NewService(repo, accounts, policy.MustNew(policy.Options{}),
		audit.NewRecorder(logs, zerolog.Nop()), db.NoopTxRunner{})
	return &fixture{
		svc:      svc,
		repo:     repo,
		accounts: accounts,
		logs:     logs,
		admin:    &auth.Actor{ID: 100, Roles: []string{policy.RoleAdministrator}},
		other:    &auth.Actor{ID: 200, Roles: []string{policy.RoleSpecialist}},
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

func newAccountInput(email string) CreateInput {
	return CreateInput{AccountInput: identity.AccountInput{
		Name: "Paula", Surnames: "Perez", Email: email, Password: "secret1",
	}}
}

// -- Tests --

func TestCreate_NewAccount(t *testing.T) {
	f := newFixture()
	mrn := "MRN-1"
	in := newAccountInput("paula@clinica.test")
	in.MedicalRecordNumber = &mrn

	p, err := f.svc.Create(context.Background(), f.admin, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == 0 || p.UserID == 0 || p.Email != "paula@clinica.test" {
		t.Errorf("unexpected patient %+v", p)
	}
	u := f.accounts.users[p.UserID]
	if len(u.Roles) != 1 || u.Roles[0] != policy.RolePatient {
		t.Errorf("expected patient role, got %v", u.Roles)
	}
	if f.lastAction(t) != audit.ActionCreatePatient {
		t.Errorf("expected create_patient, got %s", f.lastAction(t))
	}
}

func TestCreate_ExistingAccount(t *testing.T) {
	f := newFixture()
	u, _ := f.accounts.Register(context.Background(), identity.AccountInput{
		Name: "Uma", Surnames: "User", Email: "uma@clinica.test", Password: "secret1",
		Roles: []string{policy.RoleUser},
	})

	p, err := f.svc.Create(context.Background(), f.admin, CreateInput{UserID: &u.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != u.ID {
		t.Errorf("expected user %d, got %d", u.ID, p.UserID)
	}
	if !u.Actor().HasRole(policy.RolePatient) {
		t.Error("expected patient role to be granted")
	}

	_, err = f.svc.Create(context.Background(), f.admin, CreateInput{UserID: &u.ID})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for duplicate profile, got %v", err)
	}
	if f.lastAction(t) != "create_patient_invalid" {
		t.Errorf("expected create_patient_invalid, got %s", f.lastAction(t))
	}
}

func TestCreate_ValidationNotAudited(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), f.admin, newAccountInput("not-an-email"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.logs.Entries()) != 0 {
		t.Errorf("expected no audit entries, got %v", f.logs.Actions())
	}
}

func TestCreate_Forbidden(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), f.other, newAccountInput("x@clinica.test"))
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(f.accounts.users) != 0 || len(f.repo.items) != 0 {
		t.Error("denied create must not write anything")
	}
	if f.lastAction(t) != "create_patient_unauthorized" {
		t.Errorf("expected create_patient_unauthorized, got %s", f.lastAction(t))
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Get(context.Background(), f.admin, 42)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if f.lastAction(t) != "view_patient_not_found" {
		t.Errorf("expected view_patient_not_found, got %s", f.lastAction(t))
	}
}

func TestUpdate_DischargeBeforeAdmission(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(context.Background(), f.admin, newAccountInput("a@clinica.test"))

	admitted := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	discharged := admitted.AddDate(0, 0, -1)
	_, err := f.svc.Update(context.Background(), f.admin, p.ID, UpdateInput{
		AdmissionDate: &admitted, DischargeDate: &discharged,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	discharged = admitted.AddDate(0, 0, 3)
	got, err := f.svc.Update(context.Background(), f.admin, p.ID, UpdateInput{
		AdmissionDate: &admitted, DischargeDate: &discharged,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.DischargeDate.Equal(discharged) {
		t.Errorf("expected discharge %v, got %v", discharged, got.DischargeDate)
	}
}

func TestUpdate_NotFoundBeforeForbidden(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Update(context.Background(), f.other, 99, UpdateInput{})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture()
	p, _ := f.svc.Create(context.Background(), f.admin, newAccountInput("d@clinica.test"))

	if err := f.svc.Delete(context.Background(), f.other, p.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.admin, p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), f.admin, p.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected deleted patient to be hidden, got %v", err)
	}
}

func TestList_Pagination(t *testing.T) {
	f := newFixture()
	for _, email := range []string{"a@x.test", "b@x.test", "c@x.test"} {
		if _, err := f.svc.Create(context.Background(), f.admin, newAccountInput(email)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	items, total, err := f.svc.List(context.Background(), f.admin, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Errorf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if f.lastAction(t) != audit.ActionListPatients {
		t.Errorf("expected list_patients, got %s", f.lastAction(t))
	}
}
