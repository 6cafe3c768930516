package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/db"
	"github.com/clinica/clinica/internal/platform/policy"
)

const affectedUsers = "users"

type Service struct {
	users    UserRepository
	sessions auth.SessionStore
	tokens   *auth.TokenIssuer
	policy   *policy.Evaluator
	audit    *audit.Recorder
	tx       db.TxRunner
	hash     auth.HashParams
}

func NewService(users UserRepository, sessions auth.SessionStore, tokens *auth.TokenIssuer,
	pol *policy.Evaluator, rec *audit.Recorder, tx db.TxRunner, hash auth.HashParams) *Service {
	return &Service{users: users, sessions: sessions, tokens: tokens, policy: pol, audit: rec, tx: tx, hash: hash}
}

func (s *Service) record(ctx context.Context, actorID *int64, base string, err error, desc string) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:     actorID,
		Action:      audit.ActionFor(base, err),
		Description: desc,
		Affected:    affectedUsers,
	})
}

// -- Sessions --

var errInvalidCredentials = apperr.Unauthenticated("invalid credentials")

// Login checks the credentials and opens a new session. Earlier sessions of
// the same account stay valid.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.audit.Record(ctx, audit.Entry{Action: audit.ActionLoginFailed, Description: "unknown email", Affected: affectedUsers})
		return nil, errInvalidCredentials
	}
	if err != nil {
		s.audit.Record(ctx, audit.Entry{Action: audit.ActionLoginFailed, Description: "user lookup failed", Affected: affectedUsers})
		return nil, apperr.Internal("load user", err)
	}
	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		s.audit.Record(ctx, audit.Entry{ActorID: audit.Actor(u.ID), Action: audit.ActionLoginFailed, Description: "wrong password", Affected: affectedUsers})
		return nil, errInvalidCredentials
	}

	token, sid, err := s.tokens.Issue(u.ID)
	if err == nil {
		err = s.sessions.Create(ctx, sid, u.ID)
	}
	if err != nil {
		s.audit.Record(ctx, audit.Entry{ActorID: audit.Actor(u.ID), Action: audit.ActionLoginFailed, Description: "session creation failed", Affected: "access_tokens"})
		return nil, apperr.Internal("create session", err)
	}

	s.audit.Record(ctx, audit.Entry{ActorID: audit.Actor(u.ID), Action: audit.ActionLogin, Description: "login", Affected: "access_tokens"})
	a := u.Actor()
	return &LoginResult{
		AccessToken: token,
		User: LoginUser{
			ID:       u.ID,
			Name:     u.Name,
			Surnames: u.Surnames,
			Email:    u.Email,
			Role:     a.PrimaryRole(),
		},
	}, nil
}

// Logout revokes every session of the actor.
func (s *Service) Logout(ctx context.Context, actor *auth.Actor) (revoked int, err error) {
	defer func() {
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actor.IDPtr(),
			Action:      audit.ActionFor(audit.ActionLogout, err),
			Description: fmt.Sprintf("revoked %d sessions", revoked),
			Affected:    "access_tokens",
		})
	}()
	revoked, err = s.sessions.RevokeAll(ctx, actor.ID)
	if err != nil {
		return 0, apperr.Internal("revoke sessions", err)
	}
	return revoked, nil
}

func (s *Service) Me(ctx context.Context, actor *auth.Actor) (u *User, err error) {
	defer func() { s.record(ctx, actor.IDPtr(), audit.ActionMe, err, "profile") }()
	u, err = s.users.GetByID(ctx, actor.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	return u, nil
}

// LoadActor implements auth.ActorLoader.
func (s *Service) LoadActor(ctx context.Context, id int64) (*auth.Actor, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", auth.ErrUnauthenticated, err)
	}
	if err != nil {
		return nil, err
	}
	return u.Actor(), nil
}

// -- Accounts --

// Register creates an account with the given roles. It does not check
// permissions or write audit entries; callers do. It joins the transaction
// carried by ctx, if any.
func (s *Service) Register(ctx context.Context, in AccountInput) (*User, error) {
	if err := in.ValidateCreate(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password, s.hash)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	u := &User{
		Name:         in.Name,
		Surnames:     in.Surnames,
		NationalID:   in.NationalID,
		Email:        in.Email,
		BirthDate:    in.BirthDate,
		Phone:        in.Phone,
		PasswordHash: hash,
		Roles:        in.Roles,
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperr.Validation("email is already registered")
		}
		return nil, apperr.Internal("create user", err)
	}
	return u, nil
}

func (s *Service) authorize(actor *auth.Actor, act policy.Action) error {
	if !s.policy.Allowed(actor.Subject(), policy.User, act, policy.Facts{}) {
		return apperr.Forbidden("administrator role required")
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, actor *auth.Actor, limit, offset int) (users []*User, total int, err error) {
	defer func() { s.record(ctx, actor.IDPtr(), audit.ActionListUsers, err, "list users") }()
	if err = s.authorize(actor, policy.List); err != nil {
		return nil, 0, err
	}
	users, total, err = s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list users", err)
	}
	return users, total, nil
}

func (s *Service) GetUser(ctx context.Context, actor *auth.Actor, id int64) (u *User, err error) {
	defer func() { s.record(ctx, actor.IDPtr(), audit.ActionViewUser, err, fmt.Sprintf("user %d", id)) }()
	if err = s.authorize(actor, policy.Read); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	return u, nil
}

func (s *Service) CreateUser(ctx context.Context, actor *auth.Actor, in AccountInput) (u *User, err error) {
	if err := in.ValidateCreate(); err != nil {
		return nil, err
	}
	defer func() {
		desc := "create user"
		if u != nil {
			desc = fmt.Sprintf("user %d", u.ID)
		}
		s.record(ctx, actor.IDPtr(), audit.ActionCreateUser, err, desc)
	}()
	if err = s.authorize(actor, policy.Create); err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var rerr error
		u, rerr = s.Register(ctx, in)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, actor *auth.Actor, id int64, in AccountInput) (u *User, err error) {
	if err := in.ValidateUpdate(); err != nil {
		return nil, err
	}
	defer func() { s.record(ctx, actor.IDPtr(), audit.ActionUpdateUser, err, fmt.Sprintf("user %d", id)) }()

	if u, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	if err = s.authorize(actor, policy.Update); err != nil {
		return nil, err
	}

	if in.Name != "" {
		u.Name = in.Name
	}
	if in.Surnames != "" {
		u.Surnames = in.Surnames
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if in.NationalID != nil {
		u.NationalID = in.NationalID
	}
	if in.BirthDate != nil {
		u.BirthDate = in.BirthDate
	}
	if in.Phone != nil {
		u.Phone = in.Phone
	}
	if in.Password != "" {
		hash, herr := auth.HashPassword(in.Password, s.hash)
		if herr != nil {
			return nil, apperr.Internal("hash password", herr)
		}
		u.PasswordHash = hash
	}
	if in.Roles != nil {
		u.Roles = in.Roles
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		if in.Roles != nil {
			return s.users.SetRoles(ctx, u.ID, in.Roles)
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrEmailTaken):
		return nil, apperr.Validation("email is already registered")
	case errors.Is(err, ErrNotFound):
		return nil, apperr.NotFound("user not found")
	case err != nil:
		return nil, apperr.Internal("update user", err)
	}
	return u, nil
}

// DeleteUser soft-deletes the account and revokes its sessions.
func (s *Service) DeleteUser(ctx context.Context, actor *auth.Actor, id int64) (err error) {
	defer func() { s.record(ctx, actor.IDPtr(), audit.ActionDeleteUser, err, fmt.Sprintf("user %d", id)) }()

	if _, err = s.load(ctx, id); err != nil {
		return err
	}
	if err = s.authorize(actor, policy.Delete); err != nil {
		return err
	}
	if err = s.users.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal("delete user", err)
	}
	if _, rerr := s.sessions.RevokeAll(ctx, id); rerr != nil {
		return apperr.Internal("revoke sessions", rerr)
	}
	return nil
}

// GrantRole adds role to an existing active account. Like Register it leaves
// permissions and auditing to the caller.
func (s *Service) GrantRole(ctx context.Context, userID int64, role string) (*User, error) {
	if !policy.ValidRoles[role] {
		return nil, apperr.Validation("invalid role: %s", role)
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Validation("user %d does not exist", userID)
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if u.Actor().HasRole(role) {
		return u, nil
	}
	u.Roles = append(u.Roles, role)
	if err := s.users.SetRoles(ctx, u.ID, u.Roles); err != nil {
		return nil, apperr.Internal("assign role", err)
	}
	return u, nil
}
