package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const voucherCols = `id, customer_id, cashier_id, clinic_id, payment_date, notes, total_amount,
	created_by_id, updated_by_id, created_at, updated_at`

const detailCols = `id, voucher_id, consulted_service_id, amount, payment_method`

func scanVoucher(row pgx.Row) (*Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.CustomerID, &v.CashierID, &v.ClinicID, &v.PaymentDate, &v.Notes, &v.TotalAmount,
		&v.CreatedByID, &v.UpdatedByID, &v.CreatedAt, &v.UpdatedAt)
	v.Details = []Detail{}
	return &v, err
}

func (r *repoPG) insertDetails(ctx context.Context, voucherID uuid.UUID, details []Detail) ([]Detail, error) {
	out := make([]Detail, len(details))
	batch := &pgx.Batch{}
	for i, d := range details {
		d.ID = uuid.New()
		d.VoucherID = voucherID
		out[i] = d
		batch.Queue(`INSERT INTO payment_voucher_details (`+detailCols+`) VALUES ($1,$2,$3,$4,$5)`,
			d.ID, d.VoucherID, d.ConsultedServiceID, d.Amount, d.PaymentMethod)
	}
	res := r.conn(ctx).SendBatch(ctx, batch)
	defer res.Close()
	for range out {
		if _, err := res.Exec(); err != nil {
			return nil, fmt.Errorf("insert voucher detail: %w", err)
		}
	}
	return out, nil
}

func (r *repoPG) Create(ctx context.Context, v *Voucher) error {
	v.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payment_vouchers (id, customer_id, cashier_id, clinic_id, payment_date, notes,
			total_amount, created_by_id, updated_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		v.ID, v.CustomerID, v.CashierID, v.ClinicID, v.PaymentDate, v.Notes,
		v.TotalAmount, v.CreatedByID, v.UpdatedByID).
		Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment voucher: %w", err)
	}
	details, err := r.insertDetails(ctx, v.ID, v.Details)
	if err != nil {
		return err
	}
	v.Details = details
	return nil
}

func (r *repoPG) detailsFor(ctx context.Context, voucherIDs []uuid.UUID) (map[uuid.UUID][]Detail, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+detailCols+` FROM payment_voucher_details
		WHERE voucher_id = ANY($1) ORDER BY created_at, id`, voucherIDs)
	if err != nil {
		return nil, fmt.Errorf("query voucher details: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]Detail)
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.VoucherID, &d.ConsultedServiceID, &d.Amount, &d.PaymentMethod); err != nil {
			return nil, err
		}
		out[d.VoucherID] = append(out[d.VoucherID], d)
	}
	return out, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Voucher, error) {
	return r.get(ctx, `SELECT `+voucherCols+` FROM payment_vouchers WHERE id = $1`, id)
}

// LockByID takes the row lock before reading details, so ReplaceDetails from
// another transaction cannot interleave.
func (r *repoPG) LockByID(ctx context.Context, id uuid.UUID) (*Voucher, error) {
	return r.get(ctx, `SELECT `+voucherCols+` FROM payment_vouchers WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) get(ctx context.Context, query string, id uuid.UUID) (*Voucher, error) {
	v, err := scanVoucher(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.NotFound(err, "payment voucher")
	}
	details, err := r.detailsFor(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if d, ok := details[id]; ok {
		v.Details = d
	}
	return v, nil
}

func (r *repoPG) UpdateHeader(ctx context.Context, v *Voucher) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE payment_vouchers SET cashier_id=$2, payment_date=$3, notes=$4, total_amount=$5,
			updated_by_id=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		v.ID, v.CashierID, v.PaymentDate, v.Notes, v.TotalAmount, v.UpdatedByID).
		Scan(&v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("payment voucher")
	}
	if err != nil {
		return fmt.Errorf("update payment voucher: %w", err)
	}
	return nil
}

func (r *repoPG) ReplaceDetails(ctx context.Context, voucherID uuid.UUID, details []Detail) ([]Detail, error) {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM payment_voucher_details WHERE voucher_id = $1`, voucherID); err != nil {
		return nil, fmt.Errorf("clear voucher details: %w", err)
	}
	return r.insertDetails(ctx, voucherID, details)
}

func (r *repoPG) SetDetailMethod(ctx context.Context, voucherID, detailID uuid.UUID, method Method) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE payment_voucher_details SET payment_method = $3
		WHERE id = $1 AND voucher_id = $2`, detailID, voucherID, method)
	if err != nil {
		return fmt.Errorf("update voucher detail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment voucher detail")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM payment_vouchers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment voucher")
	}
	return nil
}

func (r *repoPG) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*Voucher, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payment_vouchers WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payment vouchers: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+voucherCols+` FROM payment_vouchers
		WHERE customer_id = $1 ORDER BY payment_date DESC LIMIT $2 OFFSET $3`, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payment vouchers: %w", err)
	}
	var items []*Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return items, total, nil
	}

	details, err := r.detailsFor(ctx, lo.Map(items, func(v *Voucher, _ int) uuid.UUID { return v.ID }))
	if err != nil {
		return nil, 0, err
	}
	for _, v := range items {
		if d, ok := details[v.ID]; ok {
			v.Details = d
		}
	}
	return items, total, nil
}

func (r *repoPG) SumAllocated(ctx context.Context, serviceIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT consulted_service_id, SUM(amount)
		FROM payment_voucher_details WHERE consulted_service_id = ANY($1)
		GROUP BY consulted_service_id`, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("sum allocations: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]decimal.Decimal, len(serviceIDs))
	for rows.Next() {
		var id uuid.UUID
		var sum decimal.Decimal
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		out[id] = sum
	}
	return out, rows.Err()
}
