package directory

import (
	"context"

	"github.com/google/uuid"
)

// DirectoryPort is the read-only lookup surface workflow modules consume.
type DirectoryPort interface {
	FindCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindEmployeeByID(ctx context.Context, id uuid.UUID) (*Employee, error)
	FindClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
}

type CatalogPort interface {
	FindServiceByID(ctx context.Context, id uuid.UUID) (*CatalogItem, error)
}

// Repository is the directory storage consumed by this package's own reads.
type Repository interface {
	DirectoryPort
	CatalogPort
	ListCatalog(ctx context.Context, limit, offset int) ([]*CatalogItem, int, error)
	ListEmployeesByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Employee, int, error)
}
