package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &appointmentRepoPG{pool: pool} }

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const appointmentCols = `a.id, a.patient_id, a.specialist_id, a.scheduled_at, a.type, a.status,
	a.first_visit, a.comment, a.created_at, a.updated_at, p.user_id, s.user_id`

const appointmentFrom = `FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN specialists s ON s.id = a.specialist_id`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.SpecialistID, &a.ScheduledAt, &a.Type, &a.Status,
		&a.FirstVisit, &a.Comment, &a.CreatedAt, &a.UpdatedAt, &a.PatientActorID, &a.SpecialistActorID)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (patient_id, specialist_id, scheduled_at, type, status, first_visit, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		a.PatientID, a.SpecialistID, a.ScheduledAt, a.Type, a.Status, a.FirstVisit, a.Comment,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` `+appointmentFrom+` WHERE a.id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment, version time.Time) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET scheduled_at = $2, type = $3, status = $4, comment = $5, updated_at = clock_timestamp()
		WHERE id = $1 AND updated_at = $6
		RETURNING updated_at`,
		a.ID, a.ScheduledAt, a.Type, a.Status, a.Comment, version,
	).Scan(&a.UpdatedAt)
	if db.IsNoRows(err) {
		ok, xerr := r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, a.ID)
		if xerr != nil {
			return xerr
		}
		if ok {
			return ErrConflict
		}
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) Cancel(ctx context.Context, id int64) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET status = 'cancelled', updated_at = clock_timestamp()
		WHERE id = $1 AND status IN ('pending', 'confirmed')`, id)
	if err != nil {
		return false, fmt.Errorf("cancel appointment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+appointmentCols+` `+appointmentFrom+`
		ORDER BY a.scheduled_at DESC, a.id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *appointmentRepoPG) PatientActive(ctx context.Context, patientID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND deleted_at IS NULL)`, patientID)
}

func (r *appointmentRepoPG) SpecialistActive(ctx context.Context, specialistID int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM specialists WHERE id = $1 AND deleted_at IS NULL)`, specialistID)
}

func (r *appointmentRepoPG) exists(ctx context.Context, query string, id int64) (bool, error) {
	var ok bool
	if err := r.conn(ctx).QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return ok, nil
}
