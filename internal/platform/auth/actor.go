package auth

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/clinica/clinica/internal/platform/policy"
)

type contextKey string

const actorKey contextKey = "actor"

// Actor is the authenticated principal of a request.
type Actor struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Surnames string   `json:"surnames"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

func (a *Actor) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrimaryRole is the single role reported by login and me. Administrator
// outranks specialist, which outranks patient.
func (a *Actor) PrimaryRole() string {
	for _, r := range []string{policy.RoleAdministrator, policy.RoleSpecialist, policy.RolePatient, policy.RoleUser} {
		if a.HasRole(r) {
			return r
		}
	}
	return ""
}

// Subject converts the actor into the policy evaluator's input. A nil actor
// yields the anonymous subject.
func (a *Actor) Subject() policy.Subject {
	if a == nil {
		return policy.Subject{}
	}
	return policy.Subject{ActorID: a.ID, Roles: a.Roles}
}

// IDPtr returns the actor id for audit entries; nil for anonymous.
func (a *Actor) IDPtr() *int64 {
	if a == nil {
		return nil
	}
	id := a.ID
	return &id
}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func ActorFromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorKey).(*Actor)
	return a
}

// ActorFromEcho is ActorFromContext on the request context of c.
func ActorFromEcho(c echo.Context) *Actor {
	return ActorFromContext(c.Request().Context())
}

// SessionIDFromContext returns the session id of the bearer token in use.
func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKeyCtx).(string)
	return sid
}

const sessionKeyCtx contextKey = "session_id"
