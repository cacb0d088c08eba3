package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Create inserts the voucher and its details, assigning ids.
	Create(ctx context.Context, v *Voucher) error
	GetByID(ctx context.Context, id uuid.UUID) (*Voucher, error)
	// LockByID reads the voucher with its header row locked until the
	// surrounding transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*Voucher, error)
	// UpdateHeader writes notes, cashier, payment date and total.
	UpdateHeader(ctx context.Context, v *Voucher) error
	ReplaceDetails(ctx context.Context, voucherID uuid.UUID, details []Detail) ([]Detail, error)
	SetDetailMethod(ctx context.Context, voucherID, detailID uuid.UUID, method Method) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*Voucher, int, error)
	// SumAllocated returns the live sum of detail amounts per service. Services
	// with no details are absent.
	SumAllocated(ctx context.Context, serviceIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}
