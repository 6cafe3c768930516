package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type storePG struct {
	pool *pgxpool.Pool
}

// NewStorePG returns a Store backed by the audit_log table. It always uses
// the pool directly, never a transaction from the context.
func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) Insert(ctx context.Context, l *Log) error {
	const q = `
		INSERT INTO audit_log (user_id, action, description, affected, request_id, remote_ip, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
		RETURNING id`
	return s.pool.QueryRow(ctx, q,
		l.UserID, l.Action, l.Description, l.Affected, l.RequestID, l.RemoteIP, l.CreatedAt,
	).Scan(&l.ID)
}

func (s *storePG) List(ctx context.Context, f Filter, limit, offset int) ([]*Log, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit log: %w", err)
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`
		SELECT id, user_id, action, COALESCE(description, ''), COALESCE(affected, ''),
			COALESCE(request_id, ''), COALESCE(remote_ip, ''), created_at
		FROM audit_log%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	var out []*Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Description, &l.Affected,
			&l.RequestID, &l.RemoteIP, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &l)
	}
	return out, total, rows.Err()
}
