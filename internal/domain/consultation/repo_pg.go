package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const serviceCols = `id, customer_id, clinic_id, appointment_id, dental_service_id,
	consulted_service_name, consulted_service_unit, price, min_price, quantity,
	preferential_price, final_price, amount_paid, debt, service_status, treatment_status,
	tooth_positions, consultation_date, service_confirm_date, consulting_doctor_id,
	consulting_sale_id, treating_doctor_id, stage, notes, created_by_id, updated_by_id,
	created_at, updated_at`

func scanService(row pgx.Row) (*ConsultedService, error) {
	var s ConsultedService
	err := row.Scan(&s.ID, &s.CustomerID, &s.ClinicID, &s.AppointmentID, &s.DentalServiceID,
		&s.Name, &s.Unit, &s.Price, &s.MinPrice, &s.Quantity,
		&s.PreferentialPrice, &s.FinalPrice, &s.AmountPaid, &s.Debt, &s.ServiceStatus, &s.TreatmentStatus,
		&s.ToothPositions, &s.ConsultationDate, &s.ServiceConfirmDate, &s.ConsultingDoctorID,
		&s.ConsultingSaleID, &s.TreatingDoctorID, &s.Stage, &s.Notes, &s.CreatedByID, &s.UpdatedByID,
		&s.CreatedAt, &s.UpdatedAt)
	if s.ToothPositions == nil {
		s.ToothPositions = []string{}
	}
	return &s, err
}

func scanServices(rows pgx.Rows) ([]*ConsultedService, error) {
	defer rows.Close()
	var items []*ConsultedService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, s *ConsultedService) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consulted_services (id, customer_id, clinic_id, appointment_id, dental_service_id,
			consulted_service_name, consulted_service_unit, price, min_price, quantity,
			preferential_price, final_price, amount_paid, debt, service_status, treatment_status,
			tooth_positions, consultation_date, service_confirm_date, consulting_doctor_id,
			consulting_sale_id, treating_doctor_id, stage, notes, created_by_id, updated_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
		RETURNING created_at, updated_at`,
		s.ID, s.CustomerID, s.ClinicID, s.AppointmentID, s.DentalServiceID,
		s.Name, s.Unit, s.Price, s.MinPrice, s.Quantity,
		s.PreferentialPrice, s.FinalPrice, s.AmountPaid, s.Debt, s.ServiceStatus, s.TreatmentStatus,
		s.ToothPositions, s.ConsultationDate, s.ServiceConfirmDate, s.ConsultingDoctorID,
		s.ConsultingSaleID, s.TreatingDoctorID, s.Stage, s.Notes, s.CreatedByID, s.UpdatedByID).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert consulted service: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ConsultedService, error) {
	s, err := scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+serviceCols+` FROM consulted_services WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, "consulted service")
	}
	return s, nil
}

// Update writes every mutable column except amount_paid, debt and
// treatment_status, which have their own writers.
func (r *repoPG) Update(ctx context.Context, s *ConsultedService) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE consulted_services SET clinic_id=$2, appointment_id=$3, dental_service_id=$4,
			consulted_service_name=$5, consulted_service_unit=$6, price=$7, min_price=$8, quantity=$9,
			preferential_price=$10, final_price=$11, debt=$11 - amount_paid, service_status=$12,
			tooth_positions=$13, consultation_date=$14, service_confirm_date=$15, consulting_doctor_id=$16,
			consulting_sale_id=$17, treating_doctor_id=$18, stage=$19, notes=$20, updated_by_id=$21,
			updated_at=NOW()
		WHERE id = $1
		RETURNING amount_paid, debt, updated_at`,
		s.ID, s.ClinicID, s.AppointmentID, s.DentalServiceID,
		s.Name, s.Unit, s.Price, s.MinPrice, s.Quantity,
		s.PreferentialPrice, s.FinalPrice, s.ServiceStatus,
		s.ToothPositions, s.ConsultationDate, s.ServiceConfirmDate, s.ConsultingDoctorID,
		s.ConsultingSaleID, s.TreatingDoctorID, s.Stage, s.Notes, s.UpdatedByID).
		Scan(&s.AmountPaid, &s.Debt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("consulted service")
	}
	if err != nil {
		return fmt.Errorf("update consulted service: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM consulted_services WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.New(apperr.CodeInUse, "service has recorded payments")
	}
	if err != nil {
		return fmt.Errorf("delete consulted service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("consulted service")
	}
	return nil
}

func (r *repoPG) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*ConsultedService, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM consulted_services WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count consulted services: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM consulted_services
		WHERE customer_id = $1 ORDER BY consultation_date DESC, created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list consulted services: %w", err)
	}
	items, err := scanServices(rows)
	return items, total, err
}

func (r *repoPG) ListUnpaidByCustomer(ctx context.Context, customerID uuid.UUID) ([]*ConsultedService, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM consulted_services
		WHERE customer_id = $1 AND debt > 0 ORDER BY consultation_date, created_at`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list unpaid services: %w", err)
	}
	return scanServices(rows)
}

func (r *repoPG) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*ConsultedService, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	// Ordered locking keeps concurrent vouchers from deadlocking on shared lines.
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM consulted_services
		WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock consulted services: %w", err)
	}
	return scanServices(rows)
}

func (r *repoPG) SetAmountPaid(ctx context.Context, id uuid.UUID, amountPaid decimal.Decimal) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consulted_services SET amount_paid = $2, debt = final_price - $2, updated_at = NOW()
		WHERE id = $1`, id, amountPaid)
	if err != nil {
		return fmt.Errorf("set amount paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("consulted service")
	}
	return nil
}

func (r *repoPG) SetTreatmentStatus(ctx context.Context, id uuid.UUID, status TreatmentStatus) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consulted_services SET treatment_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set treatment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("consulted service")
	}
	return nil
}
