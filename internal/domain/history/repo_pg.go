package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &historyRepoPG{pool: pool} }

func (r *historyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const historyCols = `h.id, h.patient_id, h.specialist_id, h.patient_comments, h.specialist_observations,
	h.recommendations, h.diet, h.shopping_list, h.created_at, h.updated_at, p.user_id, s.user_id`

const historyFrom = `FROM histories h
	JOIN patients p ON p.id = h.patient_id
	JOIN specialists s ON s.id = h.specialist_id`

func (r *historyRepoPG) scanHistory(row pgx.Row) (*History, error) {
	var h History
	err := row.Scan(&h.ID, &h.PatientID, &h.SpecialistID, &h.PatientComments, &h.SpecialistObservations,
		&h.Recommendations, &h.Diet, &h.ShoppingList, &h.CreatedAt, &h.UpdatedAt,
		&h.PatientActorID, &h.SpecialistActorID)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *historyRepoPG) Create(ctx context.Context, h *History) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO histories (patient_id, specialist_id, patient_comments, specialist_observations,
			recommendations, diet, shopping_list)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		h.PatientID, h.SpecialistID, h.PatientComments, h.SpecialistObservations,
		h.Recommendations, h.Diet, h.ShoppingList,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *historyRepoPG) GetByID(ctx context.Context, id int64) (*History, error) {
	return r.scanHistory(r.conn(ctx).QueryRow(ctx,
		`SELECT `+historyCols+` `+historyFrom+` WHERE h.id = $1 AND h.deleted_at IS NULL`, id))
}

func (r *historyRepoPG) Update(ctx context.Context, h *History) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE histories SET patient_comments = $2, specialist_observations = $3, recommendations = $4,
			diet = $5, shopping_list = $6, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`,
		h.ID, h.PatientComments, h.SpecialistObservations, h.Recommendations, h.Diet, h.ShoppingList,
	).Scan(&h.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	return nil
}

func (r *historyRepoPG) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE histories SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *historyRepoPG) List(ctx context.Context, limit, offset int) ([]*History, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM histories WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count histories: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+historyCols+` `+historyFrom+`
		WHERE h.deleted_at IS NULL ORDER BY h.created_at DESC, h.id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list histories: %w", err)
	}
	defer rows.Close()

	var out []*History
	for rows.Next() {
		h, err := r.scanHistory(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

func (r *historyRepoPG) PatientActive(ctx context.Context, patientID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND deleted_at IS NULL)`, patientID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return ok, nil
}

func (r *historyRepoPG) SpecialistActive(ctx context.Context, specialistID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM specialists WHERE id = $1 AND deleted_at IS NULL)`, specialistID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check specialist: %w", err)
	}
	return ok, nil
}
