package consultation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, s *ConsultedService) error
	GetByID(ctx context.Context, id uuid.UUID) (*ConsultedService, error)
	Update(ctx context.Context, s *ConsultedService) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*ConsultedService, int, error)
	// ListUnpaidByCustomer returns the customer's lines with debt > 0, oldest
	// consultation first.
	ListUnpaidByCustomer(ctx context.Context, customerID uuid.UUID) ([]*ConsultedService, error)
	// LockByIDs loads the given lines and, inside a transaction, holds a row
	// lock on each until commit. Unknown ids are simply absent from the result.
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*ConsultedService, error)
	// SetAmountPaid stores the materialized payment sum and the debt derived
	// from it.
	SetAmountPaid(ctx context.Context, id uuid.UUID, amountPaid decimal.Decimal) error
	SetTreatmentStatus(ctx context.Context, id uuid.UUID, status TreatmentStatus) error
}
