package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const customerCols = `id, customer_code, full_name, phone, type, clinic_id, source_customer_id, created_at, updated_at`

func (r *repoPG) FindCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	var c Customer
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+customerCols+` FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.FullName, &c.Phone, &c.Type, &c.ClinicID, &c.SourceCustomerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err, "customer")
	}
	return &c, nil
}

const employeeCols = `id, full_name, email, role, clinic_id`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.FullName, &e.Email, &e.Role, &e.ClinicID)
	return &e, err
}

func (r *repoPG) FindEmployeeByID(ctx context.Context, id uuid.UUID) (*Employee, error) {
	e, err := scanEmployee(r.conn(ctx).QueryRow(ctx, `SELECT `+employeeCols+` FROM employees WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, "employee")
	}
	return e, nil
}

func (r *repoPG) ListEmployeesByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Employee, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE clinic_id = $1`, clinicID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+employeeCols+` FROM employees WHERE clinic_id = $1
		ORDER BY full_name LIMIT $2 OFFSET $3`, clinicID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *repoPG) FindClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	var c Clinic
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, clinic_code, name FROM clinics WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name)
	if err != nil {
		return nil, db.NotFound(err, "clinic")
	}
	return &c, nil
}

const catalogCols = `id, name, unit, price, min_price, requires_follow_up`

func scanCatalogItem(row pgx.Row) (*CatalogItem, error) {
	var c CatalogItem
	err := row.Scan(&c.ID, &c.Name, &c.Unit, &c.Price, &c.MinPrice, &c.FollowUp)
	return &c, err
}

func (r *repoPG) FindServiceByID(ctx context.Context, id uuid.UUID) (*CatalogItem, error) {
	c, err := scanCatalogItem(r.conn(ctx).QueryRow(ctx, `SELECT `+catalogCols+` FROM dental_services WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFound(err, "dental service")
	}
	return c, nil
}

func (r *repoPG) ListCatalog(ctx context.Context, limit, offset int) ([]*CatalogItem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM dental_services`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+catalogCols+` FROM dental_services
		ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*CatalogItem
	for rows.Next() {
		c, err := scanCatalogItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}
