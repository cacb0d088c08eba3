package treatment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const logCols = `id, consulted_service_id, appointment_id, customer_id, clinic_id,
	treatment_date, treatment_status, notes, dentist_id, assistant1_id, assistant2_id,
	media_urls, created_by_id, updated_by_id, created_at, updated_at`

func scanLog(row pgx.Row) (*TreatmentLog, error) {
	var l TreatmentLog
	err := row.Scan(&l.ID, &l.ConsultedServiceID, &l.AppointmentID, &l.CustomerID, &l.ClinicID,
		&l.TreatmentDate, &l.TreatmentStatus, &l.Notes, &l.DentistID, &l.Assistant1ID, &l.Assistant2ID,
		&l.MediaURLs, &l.CreatedByID, &l.UpdatedByID, &l.CreatedAt, &l.UpdatedAt)
	if l.MediaURLs == nil {
		l.MediaURLs = []string{}
	}
	return &l, err
}

func scanLogs(rows pgx.Rows) ([]*TreatmentLog, error) {
	defer rows.Close()
	var items []*TreatmentLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, l *TreatmentLog) error {
	l.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatment_logs (id, consulted_service_id, appointment_id, customer_id, clinic_id,
			treatment_date, treatment_status, notes, dentist_id, assistant1_id, assistant2_id,
			media_urls, created_by_id, updated_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		l.ID, l.ConsultedServiceID, l.AppointmentID, l.CustomerID, l.ClinicID,
		l.TreatmentDate, l.TreatmentStatus, l.Notes, l.DentistID, l.Assistant1ID, l.Assistant2ID,
		l.MediaURLs, l.CreatedByID, l.UpdatedByID).
		Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert treatment log: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*TreatmentLog, error) {
	l, err := scanLog(r.conn(ctx).QueryRow(ctx, `SELECT `+logCols+` FROM treatment_logs WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, "treatment log")
	}
	return l, nil
}

func (r *repoPG) Update(ctx context.Context, l *TreatmentLog) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE treatment_logs SET treatment_status=$2, notes=$3, dentist_id=$4, assistant1_id=$5,
			assistant2_id=$6, media_urls=$7, updated_by_id=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		l.ID, l.TreatmentStatus, l.Notes, l.DentistID, l.Assistant1ID,
		l.Assistant2ID, l.MediaURLs, l.UpdatedByID).
		Scan(&l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("treatment log")
	}
	if err != nil {
		return fmt.Errorf("update treatment log: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM treatment_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete treatment log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("treatment log")
	}
	return nil
}

func (r *repoPG) ListByService(ctx context.Context, serviceID uuid.UUID) ([]*TreatmentLog, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+logCols+` FROM treatment_logs
		WHERE consulted_service_id = $1 ORDER BY treatment_date DESC, created_at DESC`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list treatment logs: %w", err)
	}
	return scanLogs(rows)
}

func (r *repoPG) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*TreatmentLog, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM treatment_logs WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count treatment logs: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+logCols+` FROM treatment_logs
		WHERE customer_id = $1 ORDER BY treatment_date DESC, created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list treatment logs: %w", err)
	}
	items, err := scanLogs(rows)
	return items, total, err
}
