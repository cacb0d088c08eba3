package permission

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/calendar"
)

// -- Appointment --

// AppointmentRecord is the slice of an appointment the policy needs.
type AppointmentRecord struct {
	ClinicID            uuid.UUID
	AppointmentDateTime time.Time
	Pending             bool
}

const (
	FieldCustomerID          = "customerId"
	FieldClinicID            = "clinicId"
	FieldPrimaryDentistID    = "primaryDentistId"
	FieldSecondaryDentistID  = "secondaryDentistId"
	FieldAppointmentDateTime = "appointmentDateTime"
	FieldDuration            = "duration"
	FieldNotes               = "notes"
	FieldStatus              = "status"
	FieldCheckInTime         = "checkInTime"
	FieldCheckOutTime        = "checkOutTime"
)

var appointmentAdminOnly = map[string]bool{
	FieldCustomerID: true,
	FieldClinicID:   true,
}

type AppointmentPolicy struct {
	Calendar *calendar.Calendar
}

func (p *AppointmentPolicy) CanEdit(actor *auth.Actor, rec AppointmentRecord) Decision {
	if actor.IsAdmin() {
		return Allow()
	}
	if !actor.InClinic(rec.ClinicID) {
		return Deny("appointment belongs to another clinic")
	}
	if p.Calendar.BeforeToday(rec.AppointmentDateTime) {
		return Deny("past appointments can only be edited by admin")
	}
	return Allow()
}

func (p *AppointmentPolicy) CanEditField(actor *auth.Actor, rec AppointmentRecord, field string) Decision {
	if d := p.CanEdit(actor, rec); !d.Allowed || actor.IsAdmin() {
		return d
	}
	if appointmentAdminOnly[field] {
		return Deny("only admin can change " + field)
	}
	return Allow()
}

func (p *AppointmentPolicy) CanDelete(actor *auth.Actor, rec AppointmentRecord) Decision {
	if actor.IsAdmin() {
		return Allow()
	}
	if !actor.InClinic(rec.ClinicID) {
		return Deny("appointment belongs to another clinic")
	}
	if !rec.Pending {
		return Deny("only pending appointments can be deleted")
	}
	if p.Calendar.BeforeToday(rec.AppointmentDateTime) {
		return Deny("past appointments can only be deleted by admin")
	}
	return Allow()
}

func (p *AppointmentPolicy) CanView(actor *auth.Actor, rec AppointmentRecord) Decision {
	if actor.IsAdmin() || actor.InClinic(rec.ClinicID) {
		return Allow()
	}
	return Deny("appointment belongs to another clinic")
}

// -- Consulted service --

type ServiceRecord struct {
	ClinicID  uuid.UUID
	Confirmed bool
}

const (
	FieldDentalServiceID    = "dentalServiceId"
	FieldAppointmentID      = "appointmentId"
	FieldQuantity           = "quantity"
	FieldPreferentialPrice  = "preferentialPrice"
	FieldToothPositions     = "toothPositions"
	FieldServiceStatus      = "serviceStatus"
	FieldServiceConfirmDate = "serviceConfirmDate"
	FieldConsultationDate   = "consultationDate"
	FieldConsultingDoctorID = "consultingDoctorId"
	FieldConsultingSaleID   = "consultingSaleId"
	FieldTreatingDoctorID   = "treatingDoctorId"
	FieldStage              = "stage"
)

var serviceAdminOnly = map[string]bool{
	FieldDentalServiceID:    true,
	FieldCustomerID:         true,
	FieldClinicID:           true,
	FieldAppointmentID:      true,
	FieldConsultationDate:   true,
	FieldServiceConfirmDate: true,
}

// Fields an employee may still touch once a line is confirmed.
var serviceEditableWhenConfirmed = map[string]bool{
	FieldTreatingDoctorID: true,
	FieldStage:            true,
	FieldNotes:            true,
}

type ServicePolicy struct{}

func (p *ServicePolicy) CanEdit(actor *auth.Actor, rec ServiceRecord) Decision {
	if actor.IsAdmin() || actor.InClinic(rec.ClinicID) {
		return Allow()
	}
	return Deny("service belongs to another clinic")
}

func (p *ServicePolicy) CanEditField(actor *auth.Actor, rec ServiceRecord, field string) Decision {
	if d := p.CanEdit(actor, rec); !d.Allowed || actor.IsAdmin() {
		return d
	}
	if serviceAdminOnly[field] {
		return Deny("only admin can change " + field)
	}
	if rec.Confirmed && !serviceEditableWhenConfirmed[field] {
		return Deny("only admin can change " + field + " on a confirmed service")
	}
	return Allow()
}

func (p *ServicePolicy) CanDelete(actor *auth.Actor, rec ServiceRecord) Decision {
	if actor.IsAdmin() {
		return Allow()
	}
	if !actor.InClinic(rec.ClinicID) {
		return Deny("service belongs to another clinic")
	}
	if rec.Confirmed {
		return Deny("confirmed services can only be deleted by admin")
	}
	return Allow()
}

// CanView allows every provisioned actor: a customer's history spans clinics.
func (p *ServicePolicy) CanView(actor *auth.Actor, rec ServiceRecord) Decision {
	return Allow()
}

// -- Treatment log --

type TreatmentLogRecord struct {
	ClinicID    uuid.UUID
	CreatedByID uuid.UUID
}

type TreatmentLogPolicy struct{}

func (p *TreatmentLogPolicy) owns(actor *auth.Actor, rec TreatmentLogRecord) Decision {
	if actor.IsAdmin() {
		return Allow()
	}
	if actor.EmployeeID != rec.CreatedByID {
		return Deny("only the creator can modify this treatment log")
	}
	if !actor.InClinic(rec.ClinicID) {
		return Deny("treatment log belongs to another clinic")
	}
	return Allow()
}

func (p *TreatmentLogPolicy) CanEdit(actor *auth.Actor, rec TreatmentLogRecord) Decision {
	return p.owns(actor, rec)
}

func (p *TreatmentLogPolicy) CanEditField(actor *auth.Actor, rec TreatmentLogRecord, _ string) Decision {
	return p.owns(actor, rec)
}

func (p *TreatmentLogPolicy) CanDelete(actor *auth.Actor, rec TreatmentLogRecord) Decision {
	return p.owns(actor, rec)
}

func (p *TreatmentLogPolicy) CanView(actor *auth.Actor, rec TreatmentLogRecord) Decision {
	return Allow()
}

// -- Payment voucher --

type VoucherRecord struct {
	ClinicID    uuid.UUID
	CashierID   uuid.UUID
	PaymentDate time.Time
}

// Access is the edit tier an actor holds on a voucher.
type Access int

const (
	AccessNone Access = iota
	// AccessLimited may change notes and per-line payment methods only.
	AccessLimited
	AccessFull
)

const (
	FieldDetails       = "details"
	FieldCashierID     = "cashierId"
	FieldPaymentDate   = "paymentDate"
	FieldPaymentMethod = "paymentMethod"
)

var limitedVoucherFields = map[string]bool{
	FieldNotes:         true,
	FieldPaymentMethod: true,
}

type VoucherPolicy struct {
	Calendar *calendar.Calendar
}

func (p *VoucherPolicy) Access(actor *auth.Actor, rec VoucherRecord) Access {
	if actor.IsAdmin() {
		return AccessFull
	}
	if actor.InClinic(rec.ClinicID) && p.Calendar.IsToday(rec.PaymentDate) {
		return AccessLimited
	}
	return AccessNone
}

func (p *VoucherPolicy) CanEdit(actor *auth.Actor, rec VoucherRecord) Decision {
	if p.Access(actor, rec) == AccessNone {
		return Deny("vouchers can only be edited on the day of payment")
	}
	return Allow()
}

func (p *VoucherPolicy) CanEditField(actor *auth.Actor, rec VoucherRecord, field string) Decision {
	switch p.Access(actor, rec) {
	case AccessFull:
		return Allow()
	case AccessLimited:
		if limitedVoucherFields[field] {
			return Allow()
		}
		return Deny("only admin can change " + field)
	default:
		return Deny("vouchers can only be edited on the day of payment")
	}
}

func (p *VoucherPolicy) CanDelete(actor *auth.Actor, rec VoucherRecord) Decision {
	if actor.IsAdmin() {
		return Allow()
	}
	if actor.EmployeeID == rec.CashierID && actor.InClinic(rec.ClinicID) && p.Calendar.IsToday(rec.PaymentDate) {
		return Allow()
	}
	return Deny("only admin or the cashier on the day of payment can delete a voucher")
}

func (p *VoucherPolicy) CanView(actor *auth.Actor, rec VoucherRecord) Decision {
	return Allow()
}
