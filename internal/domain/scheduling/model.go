package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/pkg/patch"
)

type Status string

const (
	StatusPending       Status = "Pending"
	StatusArrived       Status = "Arrived"
	StatusWalkInArrived Status = "WalkInArrived"
	StatusNoShow        Status = "NoShow"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusArrived: true, StatusWalkInArrived: true, StatusNoShow: true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// HasArrived treats a walk-in exactly like a booked arrival.
func (s Status) HasArrived() bool {
	return s == StatusArrived || s == StatusWalkInArrived
}

// DateLayout is the wire and storage format of AppointmentDate.
const DateLayout = "2006-01-02"

// Appointment is one scheduled or walk-in visit. AppointmentDate is the
// clinic-local calendar date of AppointmentDateTime and backs the
// one-visit-per-customer-per-day index.
type Appointment struct {
	ID                  uuid.UUID  `json:"id"`
	CustomerID          uuid.UUID  `json:"customerId"`
	ClinicID            uuid.UUID  `json:"clinicId"`
	PrimaryDentistID    uuid.UUID  `json:"primaryDentistId"`
	SecondaryDentistID  *uuid.UUID `json:"secondaryDentistId,omitempty"`
	AppointmentDateTime time.Time  `json:"appointmentDateTime"`
	AppointmentDate     string     `json:"appointmentDate"`
	Duration            int        `json:"duration"`
	Notes               *string    `json:"notes,omitempty"`
	Status              Status     `json:"status"`
	CheckInTime         *time.Time `json:"checkInTime,omitempty"`
	CheckOutTime        *time.Time `json:"checkOutTime,omitempty"`
	CreatedByID         uuid.UUID  `json:"createdById"`
	UpdatedByID         uuid.UUID  `json:"updatedById"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// End is the exclusive end of the booked window.
func (a *Appointment) End() time.Time {
	return a.AppointmentDateTime.Add(time.Duration(a.Duration) * time.Minute)
}

// CheckedIn reports whether the visit has a check-in and an arrived status.
func (a *Appointment) CheckedIn() bool {
	return a.CheckInTime != nil && a.Status.HasArrived()
}

func (a *Appointment) record() permission.AppointmentRecord {
	return permission.AppointmentRecord{
		ClinicID:            a.ClinicID,
		AppointmentDateTime: a.AppointmentDateTime,
		Pending:             a.Status == StatusPending,
	}
}

type BookRequest struct {
	CustomerID         uuid.UUID  `json:"customerId" validate:"required"`
	ClinicID           *uuid.UUID `json:"clinicId"`
	PrimaryDentistID   uuid.UUID  `json:"primaryDentistId" validate:"required"`
	SecondaryDentistID *uuid.UUID `json:"secondaryDentistId"`
	// AppointmentDateTime may be omitted for walk-ins, which start now.
	AppointmentDateTime time.Time `json:"appointmentDateTime"`
	Duration            int       `json:"duration" validate:"required,min=5,max=720"`
	Notes               *string   `json:"notes" validate:"omitempty,max=2000"`
	WalkIn              bool      `json:"walkIn"`
}

// UpdateRequest is a partial update. Absent keys are left alone; null clears
// nullable fields.
type UpdateRequest struct {
	CustomerID          patch.Field[uuid.UUID] `json:"customerId"`
	ClinicID            patch.Field[uuid.UUID] `json:"clinicId"`
	PrimaryDentistID    patch.Field[uuid.UUID] `json:"primaryDentistId"`
	SecondaryDentistID  patch.Field[uuid.UUID] `json:"secondaryDentistId"`
	AppointmentDateTime patch.Field[time.Time] `json:"appointmentDateTime"`
	Duration            patch.Field[int]       `json:"duration"`
	Notes               patch.Field[string]    `json:"notes"`
	Status              patch.Field[Status]    `json:"status"`
	CheckInTime         patch.Field[time.Time] `json:"checkInTime"`
	CheckOutTime        patch.Field[time.Time] `json:"checkOutTime"`
}

func (r *UpdateRequest) validate() error {
	required := []struct {
		field string
		null  bool
	}{
		{permission.FieldCustomerID, r.CustomerID.Null},
		{permission.FieldClinicID, r.ClinicID.Null},
		{permission.FieldPrimaryDentistID, r.PrimaryDentistID.Null},
		{permission.FieldAppointmentDateTime, r.AppointmentDateTime.Null},
		{permission.FieldDuration, r.Duration.Null},
		{permission.FieldStatus, r.Status.Null},
	}
	for _, f := range required {
		if f.null {
			return apperr.Validation("%s cannot be null", f.field)
		}
	}
	if r.CustomerID.HasValue() && r.CustomerID.Value == uuid.Nil {
		return apperr.Validation("customerId is required")
	}
	if r.PrimaryDentistID.HasValue() && r.PrimaryDentistID.Value == uuid.Nil {
		return apperr.Validation("primaryDentistId is required")
	}
	if r.AppointmentDateTime.HasValue() && r.AppointmentDateTime.Value.IsZero() {
		return apperr.Validation("appointmentDateTime is required")
	}
	if r.Duration.HasValue() && (r.Duration.Value < 5 || r.Duration.Value > 720) {
		return apperr.Validation("duration must be between 5 and 720 minutes")
	}
	if r.Status.HasValue() && !r.Status.Value.Valid() {
		return apperr.Validation("status must be one of [Pending Arrived WalkInArrived NoShow]")
	}
	if r.Notes.HasValue() && len(r.Notes.Value) > 2000 {
		return apperr.Validation("notes must be at most 2000")
	}
	return nil
}

// changedFields lists the supplied fields whose value differs from cur.
// Resending an unchanged admin-only field is not an edit of it.
func (r *UpdateRequest) changedFields(cur *Appointment) []string {
	var out []string
	add := func(changed bool, field string) {
		if changed {
			out = append(out, field)
		}
	}
	add(r.CustomerID.Set && r.CustomerID.Value != cur.CustomerID, permission.FieldCustomerID)
	add(r.ClinicID.Set && r.ClinicID.Value != cur.ClinicID, permission.FieldClinicID)
	add(r.PrimaryDentistID.Set && r.PrimaryDentistID.Value != cur.PrimaryDentistID, permission.FieldPrimaryDentistID)
	add(r.SecondaryDentistID.Set && !sameID(r.SecondaryDentistID.Ptr(), cur.SecondaryDentistID), permission.FieldSecondaryDentistID)
	add(r.AppointmentDateTime.Set && !r.AppointmentDateTime.Value.Equal(cur.AppointmentDateTime), permission.FieldAppointmentDateTime)
	add(r.Duration.Set && r.Duration.Value != cur.Duration, permission.FieldDuration)
	add(r.Notes.Set && !sameString(r.Notes.Ptr(), cur.Notes), permission.FieldNotes)
	add(r.Status.Set && r.Status.Value != cur.Status, permission.FieldStatus)
	add(r.CheckInTime.Set && !sameTime(r.CheckInTime.Ptr(), cur.CheckInTime), permission.FieldCheckInTime)
	add(r.CheckOutTime.Set && !sameTime(r.CheckOutTime.Ptr(), cur.CheckOutTime), permission.FieldCheckOutTime)
	return out
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
