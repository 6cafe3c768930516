package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

type sessionStorePG struct {
	pool *pgxpool.Pool
}

// NewSessionStorePG stores sessions in the access_tokens table.
func NewSessionStorePG(pool *pgxpool.Pool) SessionStore {
	return &sessionStorePG{pool: pool}
}

func (s *sessionStorePG) Create(ctx context.Context, sessionID string, actorID int64) error {
	_, err := db.Conn(ctx, s.pool).Exec(ctx,
		`INSERT INTO access_tokens (id, user_id) VALUES ($1, $2)`, sessionID, actorID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *sessionStorePG) Lookup(ctx context.Context, sessionID string) (int64, bool, error) {
	var actorID int64
	err := db.Conn(ctx, s.pool).QueryRow(ctx,
		`UPDATE access_tokens SET last_used_at = NOW() WHERE id = $1 RETURNING user_id`, sessionID,
	).Scan(&actorID)
	if db.IsNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup session: %w", err)
	}
	return actorID, true, nil
}

func (s *sessionStorePG) RevokeAll(ctx context.Context, actorID int64) (int, error) {
	tag, err := db.Conn(ctx, s.pool).Exec(ctx, `DELETE FROM access_tokens WHERE user_id = $1`, actorID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
