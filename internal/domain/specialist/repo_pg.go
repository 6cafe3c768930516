package specialist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

type specialistRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &specialistRepoPG{pool: pool} }

func (r *specialistRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const specialistCols = `s.id, s.user_id, s.specialty, s.phone, u.name, u.surnames, u.email, s.created_at, s.updated_at`

func (r *specialistRepoPG) scanSpecialist(row pgx.Row) (*Specialist, error) {
	var s Specialist
	err := row.Scan(&s.ID, &s.UserID, &s.Specialty, &s.Phone, &s.Name, &s.Surnames, &s.Email,
		&s.CreatedAt, &s.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *specialistRepoPG) Create(ctx context.Context, s *Specialist) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO specialists (user_id, specialty, phone)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		s.UserID, s.Specialty, s.Phone,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert specialist: %w", err)
	}
	return nil
}

func (r *specialistRepoPG) GetByID(ctx context.Context, id int64) (*Specialist, error) {
	return r.scanSpecialist(r.conn(ctx).QueryRow(ctx, `SELECT `+specialistCols+`
		FROM specialists s JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.deleted_at IS NULL`, id))
}

func (r *specialistRepoPG) Update(ctx context.Context, s *Specialist) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE specialists SET specialty = $2, phone = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, s.ID, s.Specialty, s.Phone)
	if err != nil {
		return fmt.Errorf("update specialist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *specialistRepoPG) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE specialists SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete specialist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *specialistRepoPG) List(ctx context.Context, limit, offset int) ([]*Specialist, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM specialists WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count specialists: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+specialistCols+`
		FROM specialists s JOIN users u ON u.id = s.user_id
		WHERE s.deleted_at IS NULL ORDER BY s.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list specialists: %w", err)
	}
	defer rows.Close()

	var out []*Specialist
	for rows.Next() {
		s, err := r.scanSpecialist(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
