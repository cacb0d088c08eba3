package consultation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/pkg/patch"
)

type ServiceStatus string

const (
	ServiceUnconfirmed ServiceStatus = "Unconfirmed"
	ServiceConfirmed   ServiceStatus = "Confirmed"
)

func (s ServiceStatus) Valid() bool {
	return s == ServiceUnconfirmed || s == ServiceConfirmed
}

type TreatmentStatus string

const (
	TreatmentNotStarted TreatmentStatus = "NotStarted"
	TreatmentInProgress TreatmentStatus = "InProgress"
	TreatmentCompleted  TreatmentStatus = "Completed"
)

func (s TreatmentStatus) Valid() bool {
	return s == TreatmentNotStarted || s == TreatmentInProgress || s == TreatmentCompleted
}

// ConsultedService is one priced line sold to a customer during a visit.
// Name, unit and prices are copied from the catalog when the line is created.
type ConsultedService struct {
	ID                 uuid.UUID       `json:"id"`
	CustomerID         uuid.UUID       `json:"customerId"`
	ClinicID           uuid.UUID       `json:"clinicId"`
	AppointmentID      uuid.UUID       `json:"appointmentId"`
	DentalServiceID    uuid.UUID       `json:"dentalServiceId"`
	Name               string          `json:"consultedServiceName"`
	Unit               string          `json:"consultedServiceUnit"`
	Price              decimal.Decimal `json:"price"`
	MinPrice           decimal.Decimal `json:"minPrice"`
	Quantity           int             `json:"quantity"`
	PreferentialPrice  decimal.Decimal `json:"preferentialPrice"`
	FinalPrice         decimal.Decimal `json:"finalPrice"`
	AmountPaid         decimal.Decimal `json:"amountPaid"`
	Debt               decimal.Decimal `json:"debt"`
	ServiceStatus      ServiceStatus   `json:"serviceStatus"`
	TreatmentStatus    TreatmentStatus `json:"treatmentStatus"`
	ToothPositions     []string        `json:"toothPositions"`
	ConsultationDate   time.Time       `json:"consultationDate"`
	ServiceConfirmDate *time.Time      `json:"serviceConfirmDate,omitempty"`
	ConsultingDoctorID *uuid.UUID      `json:"consultingDoctorId,omitempty"`
	ConsultingSaleID   *uuid.UUID      `json:"consultingSaleId,omitempty"`
	TreatingDoctorID   *uuid.UUID      `json:"treatingDoctorId,omitempty"`
	Stage              *string         `json:"stage,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
	CreatedByID        uuid.UUID       `json:"createdById"`
	UpdatedByID        uuid.UUID       `json:"updatedById"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func (s *ConsultedService) Confirmed() bool { return s.ServiceStatus == ServiceConfirmed }

// reprice recomputes the final price and debt from the current quantity,
// unit price and amount paid.
func (s *ConsultedService) reprice() {
	s.FinalPrice = s.PreferentialPrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
	s.Debt = s.FinalPrice.Sub(s.AmountPaid)
}

func (s *ConsultedService) record() permission.ServiceRecord {
	return permission.ServiceRecord{ClinicID: s.ClinicID, Confirmed: s.Confirmed()}
}

// checkPrice accepts zero (a free line) or a unit price within the catalog
// bounds.
func checkPrice(pref, minPrice, price decimal.Decimal) error {
	if pref.IsNegative() {
		return apperr.Validation("preferentialPrice must not be negative")
	}
	if pref.IsZero() {
		return nil
	}
	if pref.LessThan(minPrice) || pref.GreaterThan(price) {
		return apperr.New(apperr.CodeInvalidPrice,
			"preferentialPrice %s must be 0 or between %s and %s", pref, minPrice, price)
	}
	return nil
}

// normalizeTeeth trims, drops blanks and de-duplicates tooth positions,
// keeping the first occurrence order.
func normalizeTeeth(in []string) []string {
	out := lo.Uniq(lo.FilterMap(in, func(t string, _ int) (string, bool) {
		t = strings.TrimSpace(t)
		return t, t != ""
	}))
	if out == nil {
		return []string{}
	}
	return out
}

type CreateRequest struct {
	CustomerID      uuid.UUID  `json:"customerId" validate:"required"`
	ClinicID        *uuid.UUID `json:"clinicId"`
	DentalServiceID uuid.UUID  `json:"dentalServiceId" validate:"required"`
	Quantity        int        `json:"quantity" validate:"required,min=1,max=1000"`
	// PreferentialPrice defaults to the catalog list price when omitted.
	PreferentialPrice  *decimal.Decimal `json:"preferentialPrice"`
	ToothPositions     []string         `json:"toothPositions" validate:"omitempty,max=32,dive,max=8"`
	ConsultingDoctorID *uuid.UUID       `json:"consultingDoctorId"`
	ConsultingSaleID   *uuid.UUID       `json:"consultingSaleId"`
	TreatingDoctorID   *uuid.UUID       `json:"treatingDoctorId"`
	Stage              *string          `json:"stage" validate:"omitempty,max=100"`
	Notes              *string          `json:"notes" validate:"omitempty,max=2000"`
}

type UpdateRequest struct {
	DentalServiceID    patch.Field[uuid.UUID]       `json:"dentalServiceId"`
	ClinicID           patch.Field[uuid.UUID]       `json:"clinicId"`
	AppointmentID      patch.Field[uuid.UUID]       `json:"appointmentId"`
	Quantity           patch.Field[int]             `json:"quantity"`
	PreferentialPrice  patch.Field[decimal.Decimal] `json:"preferentialPrice"`
	ToothPositions     patch.Field[[]string]        `json:"toothPositions"`
	ServiceStatus      patch.Field[ServiceStatus]   `json:"serviceStatus"`
	ServiceConfirmDate patch.Field[time.Time]       `json:"serviceConfirmDate"`
	ConsultationDate   patch.Field[time.Time]       `json:"consultationDate"`
	ConsultingDoctorID patch.Field[uuid.UUID]       `json:"consultingDoctorId"`
	ConsultingSaleID   patch.Field[uuid.UUID]       `json:"consultingSaleId"`
	TreatingDoctorID   patch.Field[uuid.UUID]       `json:"treatingDoctorId"`
	Stage              patch.Field[string]          `json:"stage"`
	Notes              patch.Field[string]          `json:"notes"`
}

func (r *UpdateRequest) validate() error {
	required := []struct {
		field string
		null  bool
	}{
		{permission.FieldDentalServiceID, r.DentalServiceID.Null},
		{permission.FieldClinicID, r.ClinicID.Null},
		{permission.FieldAppointmentID, r.AppointmentID.Null},
		{permission.FieldQuantity, r.Quantity.Null},
		{permission.FieldPreferentialPrice, r.PreferentialPrice.Null},
		{permission.FieldServiceStatus, r.ServiceStatus.Null},
		{permission.FieldConsultationDate, r.ConsultationDate.Null},
	}
	for _, f := range required {
		if f.null {
			return apperr.Validation("%s cannot be null", f.field)
		}
	}
	if r.Quantity.HasValue() && (r.Quantity.Value < 1 || r.Quantity.Value > 1000) {
		return apperr.Validation("quantity must be between 1 and 1000")
	}
	if r.ServiceStatus.HasValue() && !r.ServiceStatus.Value.Valid() {
		return apperr.Validation("serviceStatus must be one of [Unconfirmed Confirmed]")
	}
	if r.DentalServiceID.HasValue() && r.DentalServiceID.Value == uuid.Nil {
		return apperr.Validation("dentalServiceId is required")
	}
	if r.Stage.HasValue() && len(r.Stage.Value) > 100 {
		return apperr.Validation("stage must be at most 100")
	}
	if r.Notes.HasValue() && len(r.Notes.Value) > 2000 {
		return apperr.Validation("notes must be at most 2000")
	}
	return nil
}

// changedFields lists the supplied fields whose value differs from cur.
func (r *UpdateRequest) changedFields(cur *ConsultedService) []string {
	var out []string
	add := func(changed bool, field string) {
		if changed {
			out = append(out, field)
		}
	}
	add(r.DentalServiceID.Set && r.DentalServiceID.Value != cur.DentalServiceID, permission.FieldDentalServiceID)
	add(r.ClinicID.Set && r.ClinicID.Value != cur.ClinicID, permission.FieldClinicID)
	add(r.AppointmentID.Set && r.AppointmentID.Value != cur.AppointmentID, permission.FieldAppointmentID)
	add(r.Quantity.Set && r.Quantity.Value != cur.Quantity, permission.FieldQuantity)
	add(r.PreferentialPrice.Set && !r.PreferentialPrice.Value.Equal(cur.PreferentialPrice), permission.FieldPreferentialPrice)
	add(r.ToothPositions.Set && !sameTeeth(normalizeTeeth(r.ToothPositions.Value), cur.ToothPositions), permission.FieldToothPositions)
	add(r.ServiceStatus.Set && r.ServiceStatus.Value != cur.ServiceStatus, permission.FieldServiceStatus)
	add(r.ServiceConfirmDate.Set && !sameTime(r.ServiceConfirmDate.Ptr(), cur.ServiceConfirmDate), permission.FieldServiceConfirmDate)
	add(r.ConsultationDate.Set && !r.ConsultationDate.Value.Equal(cur.ConsultationDate), permission.FieldConsultationDate)
	add(r.ConsultingDoctorID.Set && !sameID(r.ConsultingDoctorID.Ptr(), cur.ConsultingDoctorID), permission.FieldConsultingDoctorID)
	add(r.ConsultingSaleID.Set && !sameID(r.ConsultingSaleID.Ptr(), cur.ConsultingSaleID), permission.FieldConsultingSaleID)
	add(r.TreatingDoctorID.Set && !sameID(r.TreatingDoctorID.Ptr(), cur.TreatingDoctorID), permission.FieldTreatingDoctorID)
	add(r.Stage.Set && !sameString(r.Stage.Ptr(), cur.Stage), permission.FieldStage)
	add(r.Notes.Set && !sameString(r.Notes.Ptr(), cur.Notes), permission.FieldNotes)
	return out
}

func sameTeeth(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
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
