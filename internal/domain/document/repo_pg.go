package document

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

type documentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &documentRepoPG{pool: pool} }

func (r *documentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const documentCols = `d.id, d.history_id, d.owner_id, d.name, d.path, COALESCE(d.mime_type, ''),
	COALESCE(d.size, 0), d.description, d.created_at, d.updated_at, h.patient_id`

const documentFrom = `FROM documents d LEFT JOIN histories h ON h.id = d.history_id`

func (r *documentRepoPG) scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.HistoryID, &d.OwnerID, &d.Name, &d.Path, &d.MimeType,
		&d.Size, &d.Description, &d.CreatedAt, &d.UpdatedAt, &d.HistoryPatientID)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepoPG) Create(ctx context.Context, d *Document) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO documents (history_id, owner_id, name, path, mime_type, size, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		d.HistoryID, d.OwnerID, d.Name, d.Path, d.MimeType, d.Size, d.Description,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *documentRepoPG) GetByID(ctx context.Context, id int64) (*Document, error) {
	return r.scanDocument(r.conn(ctx).QueryRow(ctx,
		`SELECT `+documentCols+` `+documentFrom+` WHERE d.id = $1 AND d.deleted_at IS NULL`, id))
}

func (r *documentRepoPG) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE documents SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// specialistAppointments joins appointments to the specialists still on
// staff; soft-deleted specialists grant no access.
const specialistAppointments = `appointments a JOIN specialists s ON s.id = a.specialist_id AND s.deleted_at IS NULL`

// visibilityClause returns the extra WHERE condition for f, using $1 for the actor.
func visibilityClause(f Filter) (string, []interface{}) {
	switch f.Visibility {
	case VisibleOwned:
		return ` AND d.owner_id = $1`, []interface{}{f.ActorID}
	case VisibleViaHistory:
		return ` AND EXISTS (
			SELECT 1 FROM ` + specialistAppointments + `
			WHERE a.patient_id = h.patient_id AND s.user_id = $1)`, []interface{}{f.ActorID}
	case VisibleViaOwner:
		return ` AND EXISTS (
			SELECT 1 FROM ` + specialistAppointments + `
			JOIN patients p ON p.id = a.patient_id
			WHERE p.user_id = d.owner_id AND s.user_id = $1)`, []interface{}{f.ActorID}
	default:
		return "", nil
	}
}

func (r *documentRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Document, int, error) {
	clause, args := visibilityClause(f)
	where := ` WHERE d.deleted_at IS NULL` + clause

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) `+documentFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY d.created_at DESC, d.id DESC LIMIT $%d OFFSET $%d`,
		documentCols, documentFrom, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d, err := r.scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *documentRepoPG) HistoryActive(ctx context.Context, historyID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM histories WHERE id = $1 AND deleted_at IS NULL)`, historyID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check history: %w", err)
	}
	return ok, nil
}

func (r *documentRepoPG) SpecialistHasPatient(ctx context.Context, specialistUserID, patientID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM `+specialistAppointments+`
			WHERE s.user_id = $1 AND a.patient_id = $2)`, specialistUserID, patientID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check specialist link: %w", err)
	}
	return ok, nil
}

func (r *documentRepoPG) SpecialistServesOwner(ctx context.Context, specialistUserID, ownerID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM `+specialistAppointments+`
			JOIN patients p ON p.id = a.patient_id
			WHERE s.user_id = $1 AND p.user_id = $2
			  AND a.status IN ('pending', 'confirmed', 'completed'))`, specialistUserID, ownerID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check specialist appointment: %w", err)
	}
	return ok, nil
}
