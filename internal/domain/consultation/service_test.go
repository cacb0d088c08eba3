package consultation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/domain/consultation"
	"github.com/clinicops/clinic/internal/domain/consultation/consultationtest"
	"github.com/clinicops/clinic/internal/domain/directory"
	"github.com/clinicops/clinic/internal/domain/directory/directorytest"
	"github.com/clinicops/clinic/internal/domain/scheduling"
	"github.com/clinicops/clinic/internal/domain/scheduling/schedulingtest"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/calendar"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/pkg/patch"
)

var testNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *consultation.Service
	repo     *consultationtest.Memory
	visits   *schedulingtest.Memory
	dir      *directorytest.Memory
	clinic   *directory.Clinic
	customer *directory.Customer
	scaling  *directory.CatalogItem
	implant  *directory.CatalogItem
	staff    *directory.Employee
	admin    *directory.Employee
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cal := calendar.Fixed(time.UTC, testNow)
	dir := directorytest.New()
	repo := consultationtest.New()
	visits := schedulingtest.New()
	clinic := dir.AddClinic("Q1")
	return &fixture{
		svc:      consultation.NewService(repo, visits, dir, dir, permission.NewGate(cal), cal),
		repo:     repo,
		visits:   visits,
		dir:      dir,
		clinic:   clinic,
		customer: dir.AddCustomer("Nguyen Van A", clinic.ID),
		scaling:  dir.AddService("Scaling", "session", 1000000, 500000),
		implant:  dir.AddService("Implant", "tooth", 15000000, 12000000),
		staff:    dir.AddEmployee("Lan", "lan@clinic.example", auth.RoleEmployee, clinic.ID),
		admin:    dir.AddEmployee("Admin", "admin@clinic.example", auth.RoleAdmin, clinic.ID),
	}
}

func (f *fixture) as(e *directory.Employee) context.Context {
	return auth.WithActor(context.Background(), auth.Actor{EmployeeID: e.ID, Role: e.Role, ClinicID: *e.ClinicID})
}

func (f *fixture) visit(customerID, clinicID uuid.UUID, status scheduling.Status) *scheduling.Appointment {
	a := &scheduling.Appointment{
		CustomerID: customerID, ClinicID: clinicID, PrimaryDentistID: uuid.New(),
		AppointmentDateTime: testNow.Add(-30 * time.Minute), Duration: 30, Status: status,
	}
	if status.HasArrived() {
		in := testNow.Add(-25 * time.Minute)
		a.CheckInTime = &in
	}
	return f.visits.Seed(a)
}

func money(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func (f *fixture) createReq(item *directory.CatalogItem, qty int, pref int64) consultation.CreateRequest {
	return consultation.CreateRequest{
		CustomerID:        f.customer.ID,
		DentalServiceID:   item.ID,
		Quantity:          qty,
		PreferentialPrice: money(pref),
	}
}

func (f *fixture) seedLine(confirmed bool, qty int, pref, paid int64) *consultation.ConsultedService {
	status := consultation.ServiceUnconfirmed
	if confirmed {
		status = consultation.ServiceConfirmed
	}
	return f.repo.Seed(&consultation.ConsultedService{
		CustomerID: f.customer.ID, ClinicID: f.clinic.ID, AppointmentID: uuid.New(),
		DentalServiceID: f.scaling.ID, Name: f.scaling.Name, Unit: f.scaling.Unit,
		Price: f.scaling.Price, MinPrice: f.scaling.MinPrice,
		Quantity: qty, PreferentialPrice: decimal.NewFromInt(pref), AmountPaid: decimal.NewFromInt(paid),
		ServiceStatus: status, ToothPositions: []string{}, ConsultationDate: testNow,
	})
}

func TestCreate_RequiresCheckIn(t *testing.T) {
	f := newFixture(t)
	req := f.createReq(f.scaling, 1, 800000)

	if _, err := f.svc.Create(f.as(f.staff), req); !apperr.Is(err, apperr.CodeCheckinRequired) {
		t.Fatalf("no visit: expected CheckinRequired, got %v", err)
	}

	pending := f.visit(f.customer.ID, f.clinic.ID, scheduling.StatusPending)
	if _, err := f.svc.Create(f.as(f.staff), req); !apperr.Is(err, apperr.CodeCheckinRequired) {
		t.Fatalf("pending visit: expected CheckinRequired, got %v", err)
	}

	in := testNow.Add(-time.Minute)
	pending.Status, pending.CheckInTime = scheduling.StatusArrived, &in
	f.visits.Seed(pending)
	line, err := f.svc.Create(f.as(f.staff), req)
	if err != nil {
		t.Fatalf("after check-in: %v", err)
	}
	if line.AppointmentID != pending.ID {
		t.Errorf("expected originating appointment stamped, got %s", line.AppointmentID)
	}
}

func TestCreate_CheckInAtAnotherClinic(t *testing.T) {
	f := newFixture(t)
	elsewhere := f.dir.AddClinic("Q7")
	f.visit(f.customer.ID, elsewhere.ID, scheduling.StatusArrived)

	_, err := f.svc.Create(f.as(f.staff), f.createReq(f.scaling, 1, 800000))
	if !apperr.Is(err, apperr.CodeCheckinRequired) {
		t.Fatalf("expected CheckinRequired, got %v", err)
	}
}

func TestCreate_WalkInCountsAsCheckedIn(t *testing.T) {
	f := newFixture(t)
	f.visit(f.customer.ID, f.clinic.ID, scheduling.StatusWalkInArrived)

	if _, err := f.svc.Create(f.as(f.staff), f.createReq(f.scaling, 1, 800000)); err != nil {
		t.Fatalf("walk-in visit: %v", err)
	}
}

func TestCreate_PriceBounds(t *testing.T) {
	tests := []struct {
		name string
		pref int64
		want apperr.Code
	}{
		{"below minimum", 300000, apperr.CodeInvalidPrice},
		{"free", 0, ""},
		{"at minimum", 500000, ""},
		{"at list price", 1000000, ""},
		{"above list price", 1000001, apperr.CodeInvalidPrice},
		{"negative", -1, apperr.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.visit(f.customer.ID, f.clinic.ID, scheduling.StatusArrived)
			_, err := f.svc.Create(f.as(f.staff), f.createReq(f.scaling, 1, tt.pref))
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !apperr.Is(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
		})
	}
}

func TestCreate_Pricing(t *testing.T) {
	f := newFixture(t)
	f.visit(f.customer.ID, f.clinic.ID, scheduling.StatusArrived)

	line, err := f.svc.Create(f.as(f.staff), f.createReq(f.scaling, 2, 600000))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !line.FinalPrice.Equal(decimal.NewFromInt(1200000)) {
		t.Errorf("expected finalPrice 1200000, got %s", line.FinalPrice)
	}
	if !line.Debt.Equal(decimal.NewFromInt(1200000)) || !line.AmountPaid.IsZero() {
		t.Errorf("expected debt 1200000 and nothing paid, got debt=%s paid=%s", line.Debt, line.AmountPaid)
	}
	if line.ServiceStatus != consultation.ServiceUnconfirmed || line.TreatmentStatus != consultation.TreatmentNotStarted {
		t.Errorf("unexpected statuses %s / %s", line.ServiceStatus, line.TreatmentStatus)
	}
	if line.Name != "Scaling" || !line.Price.Equal(f.scaling.Price) || !line.MinPrice.Equal(f.scaling.MinPrice) {
		t.Errorf("expected catalog fields copied, got %+v", line)
	}
}

func TestCreate_DefaultsToListPrice(t *testing.T) {
	f := newFixture(t)
	f.visit(f.customer.ID, f.clinic.ID, scheduling.StatusArrived)
	req := f.createReq(f.scaling, 1, 0)
	req.PreferentialPrice = nil

	line, err := f.svc.Create(f.as(f.staff), req)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !line.PreferentialPrice.Equal(f.scaling.Price) {
		t.Errorf("expected list price, got %s", line.PreferentialPrice)
	}
}

func TestCreate_PerToothNeedsPositions(t *testing.T) {
	f := newFixture(t)
	f.visit(f.customer.ID, f.clinic.ID, scheduling.StatusArrived)
	req := f.createReq(f.implant, 2, 13000000)

	if _, err := f.svc.Create(f.as(f.staff), req); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected ValidationError without tooth positions, got %v", err)
	}

	req.ToothPositions = []string{" 11", "11", "", "12"}
	line, err := f.svc.Create(f.as(f.staff), req)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(line.ToothPositions) != 2 || line.ToothPositions[0] != "11" || line.ToothPositions[1] != "12" {
		t.Errorf("expected normalized [11 12], got %v", line.ToothPositions)
	}
}

func TestCreate_StructuralValidationFirst(t *testing.T) {
	f := newFixture(t)
	req := f.createReq(f.scaling, 0, 300000)
	if _, err := f.svc.Create(f.as(f.staff), req); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), req); !apperr.Is(err, apperr.CodeUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestUpdate_RepricePreservesAmountPaid(t *testing.T) {
	f := newFixture(t)
	line := f.seedLine(false, 2, 600000, 200000)

	got, err := f.svc.Update(f.as(f.staff), line.ID, consultation.UpdateRequest{Quantity: patch.Of(3)})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if !got.FinalPrice.Equal(decimal.NewFromInt(1800000)) {
		t.Errorf("expected finalPrice 1800000, got %s", got.FinalPrice)
	}
	if !got.AmountPaid.Equal(decimal.NewFromInt(200000)) || !got.Debt.Equal(decimal.NewFromInt(1600000)) {
		t.Errorf("expected paid 200000 debt 1600000, got paid=%s debt=%s", got.AmountPaid, got.Debt)
	}
}

func TestUpdate_PriceRules(t *testing.T) {
	f := newFixture(t)
	line := f.seedLine(false, 1, 800000, 700000)

	_, err := f.svc.Update(f.as(f.staff), line.ID, consultation.UpdateRequest{
		PreferentialPrice: patch.Of(decimal.NewFromInt(400000)),
	})
	if !apperr.Is(err, apperr.CodeInvalidPrice) {
		t.Fatalf("below minimum: expected InvalidPrice, got %v", err)
	}

	_, err = f.svc.Update(f.as(f.staff), line.ID, consultation.UpdateRequest{
		PreferentialPrice: patch.Of(decimal.NewFromInt(600000)),
	})
	if !apperr.Is(err, apperr.CodeInvalidPrice) {
		t.Fatalf("below amount paid: expected InvalidPrice, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	line := f.seedLine(false, 1, 800000, 0)

	got, err := f.svc.Confirm(f.as(f.staff), line.ID)
	if err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	if !got.Confirmed() {
		t.Fatalf("expected Confirmed, got %s", got.ServiceStatus)
	}
	if got.ServiceConfirmDate == nil || !got.ServiceConfirmDate.Equal(testNow) {
		t.Errorf("expected confirmation date stamped now, got %v", got.ServiceConfirmDate)
	}

	if _, err := f.svc.Confirm(f.as(f.staff), line.ID); !apperr.Is(err, apperr.CodeAlreadyConfirmed) {
		t.Fatalf("expected AlreadyConfirmed, got %v", err)
	}
	_, err = f.svc.Update(f.as(f.admin), line.ID, consultation.UpdateRequest{
		ServiceStatus: patch.Of(consultation.ServiceUnconfirmed),
	})
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected ValidationError for un-confirming, got %v", err)
	}
}

func TestUpdate_ConfirmedLineFieldGates(t *testing.T) {
	f := newFixture(t)
	line := f.seedLine(true, 1, 800000, 0)
	doctor := uuid.New()

	_, err := f.svc.Update(f.as(f.staff), line.ID, consultation.UpdateRequest{Quantity: patch.Of(2)})
	if !apperr.Is(err, apperr.CodePermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	got, err := f.svc.Update(f.as(f.staff), line.ID, consultation.UpdateRequest{TreatingDoctorID: patch.Of(doctor)})
	if err != nil {
		t.Fatalf("assigning treating doctor: %v", err)
	}
	if got.TreatingDoctorID == nil || *got.TreatingDoctorID != doctor {
		t.Errorf("expected treating doctor set")
	}
	if _, err := f.svc.Update(f.as(f.admin), line.ID, consultation.UpdateRequest{Quantity: patch.Of(2)}); err != nil {
		t.Fatalf("admin reprice of confirmed line: %v", err)
	}
}

func TestUpdate_AppointmentMustMatchCustomer(t *testing.T) {
	f := newFixture(t)
	line := f.seedLine(false, 1, 800000, 0)
	stranger := f.dir.AddCustomer("Tran Thi B", f.clinic.ID)
	theirs := f.visit(stranger.ID, f.clinic.ID, scheduling.StatusArrived)

	_, err := f.svc.Update(f.as(f.admin), line.ID, consultation.UpdateRequest{AppointmentID: patch.Of(theirs.ID)})
	if !apperr.Is(err, apperr.CodeAppointmentCustomerMismatch) {
		t.Fatalf("expected AppointmentCustomerMismatch, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	unconfirmed := f.seedLine(false, 1, 800000, 0)
	confirmed := f.seedLine(true, 1, 800000, 0)
	paid := f.seedLine(true, 1, 800000, 500000)

	if err := f.svc.Delete(f.as(f.staff), confirmed.ID); !apperr.Is(err, apperr.CodePermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if err := f.svc.Delete(f.as(f.staff), unconfirmed.ID); err != nil {
		t.Fatalf("employee delete of unconfirmed line: %v", err)
	}
	// Voucher details restrict deletion of the line they pay, admin or not.
	if err := f.svc.Delete(f.as(f.admin), paid.ID); !apperr.Is(err, apperr.CodeInUse) {
		t.Fatalf("expected InUse for a paid line, got %v", err)
	}
	if err := f.svc.Delete(f.as(f.admin), confirmed.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestUpdate_EmptyRequestFromOtherClinic(t *testing.T) {
	f := newFixture(t)
	line := f.seedLine(false, 1, 800000, 0)
	elsewhere := f.dir.AddClinic("Q9")
	outsider := f.dir.AddEmployee("Hoa", "hoa@clinic.example", auth.RoleEmployee, elsewhere.ID)

	if _, err := f.svc.Update(f.as(outsider), line.ID, consultation.UpdateRequest{}); !apperr.Is(err, apperr.CodePermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	// Resending the current price is not a change, but the clinic check still applies.
	same := consultation.UpdateRequest{PreferentialPrice: patch.Of(decimal.NewFromInt(800000))}
	if _, err := f.svc.Update(f.as(outsider), line.ID, same); !apperr.Is(err, apperr.CodePermissionDenied) {
		t.Fatalf("unchanged field: expected PermissionDenied, got %v", err)
	}
}
