package treatment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, l *TreatmentLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*TreatmentLog, error)
	Update(ctx context.Context, l *TreatmentLog) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByService returns every log of the service, newest treatment first.
	ListByService(ctx context.Context, serviceID uuid.UUID) ([]*TreatmentLog, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*TreatmentLog, int, error)
}
