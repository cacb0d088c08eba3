package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/pkg/patch"
)

type Method string

const (
	MethodCash         Method = "Cash"
	MethodBankTransfer Method = "BankTransfer"
	MethodCard         Method = "Card"
	MethodEWallet      Method = "EWallet"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCard, MethodEWallet:
		return true
	}
	return false
}

// Voucher is one receipt. TotalAmount is always the sum of its detail
// amounts.
type Voucher struct {
	ID          uuid.UUID       `json:"id"`
	CustomerID  uuid.UUID       `json:"customerId"`
	CashierID   uuid.UUID       `json:"cashierId"`
	ClinicID    uuid.UUID       `json:"clinicId"`
	PaymentDate time.Time       `json:"paymentDate"`
	Notes       *string         `json:"notes,omitempty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Details     []Detail        `json:"details"`
	CreatedByID uuid.UUID       `json:"createdById"`
	UpdatedByID uuid.UUID       `json:"updatedById"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Detail allocates part of a voucher to one consulted service.
type Detail struct {
	ID                 uuid.UUID       `json:"id"`
	VoucherID          uuid.UUID       `json:"voucherId"`
	ConsultedServiceID uuid.UUID       `json:"consultedServiceId"`
	Amount             decimal.Decimal `json:"amount"`
	PaymentMethod      Method          `json:"paymentMethod"`
}

func (v *Voucher) record() permission.VoucherRecord {
	return permission.VoucherRecord{ClinicID: v.ClinicID, CashierID: v.CashierID, PaymentDate: v.PaymentDate}
}

// allocations sums the voucher's amounts per service.
func (v *Voucher) allocations() map[uuid.UUID]decimal.Decimal {
	return allocate(lo.Map(v.Details, func(d Detail, _ int) DetailInput {
		return DetailInput{ConsultedServiceID: d.ConsultedServiceID, Amount: d.Amount}
	}))
}

type DetailInput struct {
	ConsultedServiceID uuid.UUID       `json:"consultedServiceId" validate:"required"`
	Amount             decimal.Decimal `json:"amount"`
	PaymentMethod      Method          `json:"paymentMethod" validate:"required,oneof=Cash BankTransfer Card EWallet"`
}

func checkAmounts(details []DetailInput) error {
	for i, d := range details {
		if !d.Amount.IsPositive() {
			return apperr.Validation("details[%d].amount must be greater than 0", i)
		}
	}
	return nil
}

func allocate(details []DetailInput) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(details))
	for _, d := range details {
		out[d.ConsultedServiceID] = out[d.ConsultedServiceID].Add(d.Amount)
	}
	return out
}

func total(details []DetailInput) decimal.Decimal {
	return lo.Reduce(details, func(acc decimal.Decimal, d DetailInput, _ int) decimal.Decimal {
		return acc.Add(d.Amount)
	}, decimal.Zero)
}

func serviceIDs(details []DetailInput) []uuid.UUID {
	return lo.Uniq(lo.Map(details, func(d DetailInput, _ int) uuid.UUID { return d.ConsultedServiceID }))
}

type CreateRequest struct {
	CustomerID uuid.UUID     `json:"customerId" validate:"required"`
	Notes      *string       `json:"notes" validate:"omitempty,max=2000"`
	Details    []DetailInput `json:"details" validate:"required,min=1,max=50,dive"`
}

// MethodChange re-labels the payment method of an existing detail line.
type MethodChange struct {
	DetailID      uuid.UUID `json:"detailId" validate:"required"`
	PaymentMethod Method    `json:"paymentMethod" validate:"required,oneof=Cash BankTransfer Card EWallet"`
}

// UpdateRequest edits a voucher. Details replaces the whole detail list;
// DetailMethods only re-labels existing lines. The two cannot be combined.
type UpdateRequest struct {
	Notes         patch.Field[string]        `json:"notes"`
	CashierID     patch.Field[uuid.UUID]     `json:"cashierId"`
	PaymentDate   patch.Field[time.Time]     `json:"paymentDate"`
	Details       patch.Field[[]DetailInput] `json:"details"`
	DetailMethods []MethodChange             `json:"detailMethods" validate:"omitempty,max=50,dive"`
}

func (r *UpdateRequest) validate() error {
	if r.CashierID.Null || (r.CashierID.HasValue() && r.CashierID.Value == uuid.Nil) {
		return apperr.Validation("cashierId is required")
	}
	if r.PaymentDate.Null || (r.PaymentDate.HasValue() && r.PaymentDate.Value.IsZero()) {
		return apperr.Validation("paymentDate is required")
	}
	if r.Details.Null || (r.Details.Set && len(r.Details.Value) == 0) {
		return apperr.Validation("details must contain at least 1 line")
	}
	if r.Details.Set && len(r.DetailMethods) > 0 {
		return apperr.Validation("details and detailMethods cannot be changed together")
	}
	if r.Notes.HasValue() && len(r.Notes.Value) > 2000 {
		return apperr.Validation("notes must be at most 2000")
	}
	if r.Details.Set {
		if len(r.Details.Value) > 50 {
			return apperr.Validation("details must be at most 50")
		}
		for i, d := range r.Details.Value {
			if d.ConsultedServiceID == uuid.Nil {
				return apperr.Validation("details[%d].consultedServiceId is required", i)
			}
			if !d.PaymentMethod.Valid() {
				return apperr.Validation("details[%d].paymentMethod must be one of [Cash BankTransfer Card EWallet]", i)
			}
		}
		return checkAmounts(r.Details.Value)
	}
	return nil
}

func (r *UpdateRequest) fields() []string {
	var out []string
	if r.Notes.Set {
		out = append(out, permission.FieldNotes)
	}
	if r.CashierID.Set {
		out = append(out, permission.FieldCashierID)
	}
	if r.PaymentDate.Set {
		out = append(out, permission.FieldPaymentDate)
	}
	if r.Details.Set {
		out = append(out, permission.FieldDetails)
	}
	if len(r.DetailMethods) > 0 {
		out = append(out, permission.FieldPaymentMethod)
	}
	return out
}
