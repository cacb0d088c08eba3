package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// FindByCustomerDate returns the customer's appointment on the local date,
	// ignoring excludeID, or nil when there is none.
	FindByCustomerDate(ctx context.Context, customerID uuid.UUID, date string, excludeID uuid.UUID) (*Appointment, error)
	// ListOverlapping returns non-NoShow appointments where dentistID is primary
	// or secondary and the booked window intersects [start, end).
	ListOverlapping(ctx context.Context, dentistID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error)
	// ListByCustomer lists newest first. A nil clinicID lists every clinic.
	ListByCustomer(ctx context.Context, customerID uuid.UUID, clinicID *uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByClinicRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time, limit, offset int) ([]*Appointment, int, error)
}
