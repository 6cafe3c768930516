package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/audit"
)

type mockActorLoader struct {
	actors map[int64]*Actor
}

func (m *mockActorLoader) LoadActor(_ context.Context, id int64) (*Actor, error) {
	a, ok := m.actors[id]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return a, nil
}

type failingSessionStore struct {
	*MemorySessionStore
}

func (failingSessionStore) Lookup(context.Context, string) (int64, bool, error) {
	return 0, false, errors.New("connection refused")
}

type failingActorLoader struct{}

func (failingActorLoader) LoadActor(context.Context, int64) (*Actor, error) {
	return nil, errors.New("connection refused")
}

type authFixture struct {
	authn    *Authenticator
	tokens   *TokenIssuer
	sessions *MemorySessionStore
	store    *audit.MemoryStore
}

func newAuthFixture() *authFixture {
	tokens := NewTokenIssuer([]byte("test"), "clinica")
	sessions := NewMemorySessionStore()
	store := audit.NewMemoryStore()
	loader := &mockActorLoader{actors: map[int64]*Actor{
		1: {ID: 1, Name: "Ana", Roles: []string{"patient"}},
	}}
	return &authFixture{
		authn:    NewAuthenticator(tokens, sessions, loader, audit.NewRecorder(store, zerolog.Nop()), zerolog.Nop()),
		tokens:   tokens,
		sessions: sessions,
		store:    store,
	}
}

func (f *authFixture) login(actorID int64) string {
	token, sid, _ := f.tokens.Issue(actorID)
	f.sessions.Create(context.Background(), sid, actorID)
	return token
}

func serve(f *authFixture, header string) (*httptest.ResponseRecorder, *Actor, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *Actor
	h := f.authn.Middleware()(func(c echo.Context) error {
		seen = ActorFromEcho(c)
		return c.NoContent(http.StatusNoContent)
	})
	return rec, seen, h(c)
}

func TestMiddleware_ValidToken(t *testing.T) {
	f := newAuthFixture()
	_, actor, err := serve(f, "Bearer "+f.login(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor == nil || actor.ID != 1 {
		t.Fatalf("expected actor 1 in context, got %+v", actor)
	}
	if len(f.store.Entries()) != 0 {
		t.Error("successful authentication should not be audited by the middleware")
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	f := newAuthFixture()
	revoked := f.login(1)
	f.sessions.RevokeAll(context.Background(), 1)
	unknownActor, sid, _ := f.tokens.Issue(99)
	f.sessions.Create(context.Background(), sid, 99)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer abc.def.ghi"},
		{"revoked session", "Bearer " + revoked},
		{"deleted account", "Bearer " + unknownActor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.store.Entries())
			_, _, err := serve(f, tt.header)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %v", err)
			}
			entries := f.store.Entries()
			if len(entries) != before+1 {
				t.Fatalf("expected exactly one audit entry, got %d", len(entries)-before)
			}
			last := entries[len(entries)-1]
			if last.Action != audit.ActionUnauthenticatedAccess || last.UserID != nil {
				t.Errorf("expected anonymous unauthenticated_access, got %+v", last)
			}
		})
	}
}

func TestMiddleware_StoreFailureIsInternal(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *authFixture)
	}{
		{"session store down", func(f *authFixture) {
			f.authn.sessions = failingSessionStore{f.sessions}
		}},
		{"account store down", func(f *authFixture) {
			f.authn.actors = failingActorLoader{}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture()
			token := f.login(1)
			tt.setup(f)

			_, actor, err := serve(f, "Bearer "+token)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %v", err)
			}
			if actor != nil {
				t.Error("handler must not run")
			}
			if n := len(f.store.Entries()); n != 0 {
				t.Errorf("store failure must not be audited as unauthenticated access, got %d entries", n)
			}
		})
	}
}

func TestMiddleware_OtherActorsSession(t *testing.T) {
	f := newAuthFixture()
	token, _, _ := f.tokens.Issue(1)
	// Session exists but belongs to someone else.
	_, sid, _ := f.tokens.Parse(token)
	f.sessions.Create(context.Background(), sid, 2)

	if _, _, err := serve(f, "Bearer "+token); err == nil {
		t.Error("expected rejection when session owner differs")
	}
}

func TestActor_PrimaryRole(t *testing.T) {
	a := &Actor{Roles: []string{"patient", "administrator"}}
	if a.PrimaryRole() != "administrator" {
		t.Errorf("expected administrator, got %s", a.PrimaryRole())
	}
	var nilActor *Actor
	if nilActor.Subject().ActorID != 0 || nilActor.IDPtr() != nil {
		t.Error("nil actor should be anonymous")
	}
}
