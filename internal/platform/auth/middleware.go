package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// ActorLoader fetches an active account with its roles. Unknown or
// soft-deleted accounts are reported with an error wrapping
// ErrUnauthenticated; any other error is a lookup failure.
type ActorLoader interface {
	LoadActor(ctx context.Context, id int64) (*Actor, error)
}

// Authenticator resolves bearer tokens into actors.
type Authenticator struct {
	tokens   *TokenIssuer
	sessions SessionStore
	actors   ActorLoader
	audit    *audit.Recorder
	logger   zerolog.Logger
}

func NewAuthenticator(tokens *TokenIssuer, sessions SessionStore, actors ActorLoader, rec *audit.Recorder, logger zerolog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions, actors: actors, audit: rec, logger: logger}
}

// Resolve returns the actor behind token and its session id.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*Actor, string, error) {
	actorID, sid, err := a.tokens.Parse(token)
	if err != nil {
		return nil, "", ErrUnauthenticated
	}
	owner, ok, err := a.sessions.Lookup(ctx, sid)
	if err != nil {
		return nil, "", err
	}
	if !ok || owner != actorID {
		return nil, "", ErrUnauthenticated
	}
	actor, err := a.actors.LoadActor(ctx, actorID)
	if err != nil {
		return nil, "", err
	}
	if actor == nil {
		return nil, "", ErrUnauthenticated
	}
	return actor, sid, nil
}

// Middleware rejects requests without a live session. Every rejection is
// audited as an anonymous unauthenticated_access entry. A failing session or
// account store is an internal error, not a rejection.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			token, ok := bearerToken(req.Header.Get(echo.HeaderAuthorization))
			if !ok {
				return a.reject(ctx, c, "missing bearer token")
			}

			actor, sid, err := a.Resolve(ctx, token)
			if err != nil {
				if !errors.Is(err, ErrUnauthenticated) {
					a.logger.Error().Err(err).Msg("session lookup failed")
					return apperr.ToHTTP(apperr.Internal("resolve session", err))
				}
				return a.reject(ctx, c, "invalid or revoked token")
			}

			ctx = WithActor(ctx, actor)
			ctx = context.WithValue(ctx, sessionKeyCtx, sid)
			c.SetRequest(req.WithContext(ctx))
			c.Set("actor_id", actor.ID)
			return next(c)
		}
	}
}

func (a *Authenticator) reject(ctx context.Context, c echo.Context, reason string) error {
	a.audit.Record(ctx, audit.Entry{
		Action:      audit.ActionUnauthenticatedAccess,
		Description: reason + ": " + c.Request().Method + " " + c.Request().URL.Path,
	})
	return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
