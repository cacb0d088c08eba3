package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/db"
)

// customerDayIndex enforces one appointment per customer per local date.
const customerDayIndex = "appointments_customer_day_key"

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const apptCols = `id, customer_id, clinic_id, primary_dentist_id, secondary_dentist_id,
	appointment_date_time, appointment_date::text, duration, notes, status,
	check_in_time, check_out_time, created_by_id, updated_by_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.CustomerID, &a.ClinicID, &a.PrimaryDentistID, &a.SecondaryDentistID,
		&a.AppointmentDateTime, &a.AppointmentDate, &a.Duration, &a.Notes, &a.Status,
		&a.CheckInTime, &a.CheckOutTime, &a.CreatedByID, &a.UpdatedByID, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func scanAppointments(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func writeErr(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, customerDayIndex) {
		return apperr.New(apperr.CodeCustomerConflict, "customer already has an appointment on this day")
	}
	return fmt.Errorf("write appointment: %w", err)
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, customer_id, clinic_id, primary_dentist_id, secondary_dentist_id,
			appointment_date_time, appointment_date, duration, notes, status,
			check_in_time, check_out_time, created_by_id, updated_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7::date,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		a.ID, a.CustomerID, a.ClinicID, a.PrimaryDentistID, a.SecondaryDentistID,
		a.AppointmentDateTime, a.AppointmentDate, a.Duration, a.Notes, a.Status,
		a.CheckInTime, a.CheckOutTime, a.CreatedByID, a.UpdatedByID).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	return writeErr(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, "appointment")
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET customer_id=$2, clinic_id=$3, primary_dentist_id=$4, secondary_dentist_id=$5,
			appointment_date_time=$6, appointment_date=$7::date, duration=$8, notes=$9, status=$10,
			check_in_time=$11, check_out_time=$12, updated_by_id=$13, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.CustomerID, a.ClinicID, a.PrimaryDentistID, a.SecondaryDentistID,
		a.AppointmentDateTime, a.AppointmentDate, a.Duration, a.Notes, a.Status,
		a.CheckInTime, a.CheckOutTime, a.UpdatedByID).
		Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("appointment")
	}
	return writeErr(err)
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.New(apperr.CodeInUse, "appointment has consulted services or treatment logs")
	}
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func (r *appointmentRepoPG) FindByCustomerDate(ctx context.Context, customerID uuid.UUID, date string, excludeID uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE customer_id = $1 AND appointment_date = $2::date AND id <> $3
		LIMIT 1`, customerID, date, excludeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query appointment by customer day: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) ListOverlapping(ctx context.Context, dentistID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE (primary_dentist_id = $1 OR secondary_dentist_id = $1)
		  AND status <> $5
		  AND id <> $4
		  AND appointment_date_time < $3
		  AND appointment_date_time + make_interval(mins => duration) > $2
		ORDER BY appointment_date_time`,
		dentistID, start, end, excludeID, StatusNoShow)
	if err != nil {
		return nil, fmt.Errorf("query overlapping appointments: %w", err)
	}
	return scanAppointments(rows)
}

func (r *appointmentRepoPG) ListByCustomer(ctx context.Context, customerID uuid.UUID, clinicID *uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	where := `customer_id = $1 AND ($2::uuid IS NULL OR clinic_id = $2)`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+where, customerID, clinicID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments WHERE `+where+`
		ORDER BY appointment_date_time DESC LIMIT $3 OFFSET $4`, customerID, clinicID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := scanAppointments(rows)
	return items, total, err
}

func (r *appointmentRepoPG) ListByClinicRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time, limit, offset int) ([]*Appointment, int, error) {
	where := `clinic_id = $1 AND appointment_date_time >= $2 AND appointment_date_time < $3`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+where, clinicID, from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments WHERE `+where+`
		ORDER BY appointment_date_time LIMIT $4 OFFSET $5`, clinicID, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := scanAppointments(rows)
	return items, total, err
}
