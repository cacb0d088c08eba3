// Package permission decides field-level editability of workflow records from
// the actor's role, clinic ownership and the record's age. Every function here
// is pure: records are passed in as small views, nothing is loaded.
package permission

import (
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/calendar"
)

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(reason string) Decision { return Decision{Reason: reason} }

// Err returns nil when allowed and a PermissionDenied error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.PermissionDenied(d.Reason)
}

// Policy is the per-entity strategy consulted by the workflow services.
type Policy[R any] interface {
	// CanEdit decides whether the actor may modify the record at all.
	CanEdit(actor *auth.Actor, record R) Decision
	CanEditField(actor *auth.Actor, record R, field string) Decision
	CanDelete(actor *auth.Actor, record R) Decision
	CanView(actor *auth.Actor, record R) Decision
}

// CheckFields returns the record-level denial, then the first denial among
// fields, or nil. An empty field list still requires CanEdit.
func CheckFields[R any](p Policy[R], actor *auth.Actor, record R, fields []string) error {
	if err := p.CanEdit(actor, record).Err(); err != nil {
		return err
	}
	for _, f := range fields {
		if err := p.CanEditField(actor, record, f).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Gate bundles the strategies for every workflow entity.
type Gate struct {
	Appointments  Policy[AppointmentRecord]
	Services      Policy[ServiceRecord]
	TreatmentLogs Policy[TreatmentLogRecord]
	Vouchers      *VoucherPolicy
}

// NewGate returns the default strategies evaluated against cal.
func NewGate(cal *calendar.Calendar) *Gate {
	return &Gate{
		Appointments:  &AppointmentPolicy{Calendar: cal},
		Services:      &ServicePolicy{},
		TreatmentLogs: &TreatmentLogPolicy{},
		Vouchers:      &VoucherPolicy{Calendar: cal},
	}
}
