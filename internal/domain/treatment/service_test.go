package treatment_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/domain/consultation"
	"github.com/clinicops/clinic/internal/domain/consultation/consultationtest"
	"github.com/clinicops/clinic/internal/domain/scheduling"
	"github.com/clinicops/clinic/internal/domain/scheduling/schedulingtest"
	"github.com/clinicops/clinic/internal/domain/treatment"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/calendar"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/pkg/patch"
)

type mockLogRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*treatment.TreatmentLog
	seq  int
}

func newMockLogRepo() *mockLogRepo {
	return &mockLogRepo{rows: make(map[uuid.UUID]*treatment.TreatmentLog)}
}

func (m *mockLogRepo) Create(_ context.Context, l *treatment.TreatmentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	l.ID = uuid.New()
	// Strictly increasing creation times keep tie-breaks deterministic.
	l.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	l.UpdatedAt = l.CreatedAt
	cp := *l
	m.rows[l.ID] = &cp
	return nil
}

func (m *mockLogRepo) GetByID(_ context.Context, id uuid.UUID) (*treatment.TreatmentLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("treatment log")
	}
	cp := *l
	return &cp, nil
}

func (m *mockLogRepo) Update(_ context.Context, l *treatment.TreatmentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[l.ID]; !ok {
		return apperr.NotFound("treatment log")
	}
	cp := *l
	m.rows[l.ID] = &cp
	return nil
}

func (m *mockLogRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return apperr.NotFound("treatment log")
	}
	delete(m.rows, id)
	return nil
}

// ListByService returns logs in map order; Project must not depend on it.
func (m *mockLogRepo) ListByService(_ context.Context, serviceID uuid.UUID) ([]*treatment.TreatmentLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*treatment.TreatmentLog
	for _, l := range m.rows {
		if l.ConsultedServiceID == serviceID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockLogRepo) ListByCustomer(_ context.Context, customerID uuid.UUID, limit, offset int) ([]*treatment.TreatmentLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*treatment.TreatmentLog
	for _, l := range m.rows {
		if l.CustomerID == customerID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TreatmentDate.After(out[j].TreatmentDate) })
	return out, len(out), nil
}

var (
	testNow = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	day1    = testNow.AddDate(0, 0, -7)
	day2    = testNow
)

type fixture struct {
	svc      *treatment.Service
	logs     *mockLogRepo
	visits   *schedulingtest.Memory
	ledger   *consultationtest.Memory
	clinic   uuid.UUID
	customer uuid.UUID
	dentist  uuid.UUID
	staff    auth.Actor
	admin    auth.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logs := newMockLogRepo()
	visits := schedulingtest.New()
	ledger := consultationtest.New()
	clinic := uuid.New()
	gate := permission.NewGate(calendar.Fixed(time.UTC, testNow))
	return &fixture{
		svc:      treatment.NewService(logs, visits, ledger, gate, db.NopTxRunner{}),
		logs:     logs,
		visits:   visits,
		ledger:   ledger,
		clinic:   clinic,
		customer: uuid.New(),
		dentist:  uuid.New(),
		staff:    auth.Actor{EmployeeID: uuid.New(), Role: auth.RoleEmployee, ClinicID: clinic},
		admin:    auth.Actor{EmployeeID: uuid.New(), Role: auth.RoleAdmin, ClinicID: clinic},
	}
}

func (f *fixture) as(a auth.Actor) context.Context {
	return auth.WithActor(context.Background(), a)
}

func (f *fixture) visit(at time.Time, status scheduling.Status) *scheduling.Appointment {
	a := &scheduling.Appointment{
		CustomerID: f.customer, ClinicID: f.clinic, PrimaryDentistID: f.dentist,
		AppointmentDateTime: at, Duration: 60, Status: status,
	}
	if status.HasArrived() {
		in := at
		a.CheckInTime = &in
	}
	return f.visits.Seed(a)
}

func (f *fixture) line(status consultation.ServiceStatus) *consultation.ConsultedService {
	return f.ledger.Seed(&consultation.ConsultedService{
		CustomerID: f.customer, ClinicID: f.clinic, Quantity: 1,
		PreferentialPrice: decimal.NewFromInt(1000000), ServiceStatus: status,
		ConsultationDate: day1,
	})
}

func (f *fixture) appendLog(t *testing.T, visit *scheduling.Appointment, line *consultation.ConsultedService, status consultation.TreatmentStatus) *treatment.TreatmentLog {
	t.Helper()
	l, err := f.svc.AppendLog(f.as(f.staff), treatment.CreateRequest{
		AppointmentID:      visit.ID,
		ConsultedServiceID: line.ID,
		TreatmentStatus:    status,
		DentistID:          f.dentist,
	})
	if err != nil {
		t.Fatalf("AppendLog() error: %v", err)
	}
	return l
}

func (f *fixture) status(t *testing.T, id uuid.UUID) consultation.TreatmentStatus {
	t.Helper()
	s, err := f.ledger.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	return s.TreatmentStatus
}

func TestTreatmentStatusFollowsLatestLog(t *testing.T) {
	f := newFixture(t)
	line := f.line(consultation.ServiceConfirmed)
	if got := f.status(t, line.ID); got != consultation.TreatmentNotStarted {
		t.Fatalf("expected NotStarted with no logs, got %s", got)
	}

	f.appendLog(t, f.visit(day1, scheduling.StatusArrived), line, consultation.TreatmentInProgress)
	if got := f.status(t, line.ID); got != consultation.TreatmentInProgress {
		t.Fatalf("after L1: expected InProgress, got %s", got)
	}

	l2 := f.appendLog(t, f.visit(day2, scheduling.StatusArrived), line, consultation.TreatmentCompleted)
	if got := f.status(t, line.ID); got != consultation.TreatmentCompleted {
		t.Fatalf("after L2: expected Completed, got %s", got)
	}

	if err := f.svc.DeleteLog(f.as(f.staff), l2.ID); err != nil {
		t.Fatalf("DeleteLog() error: %v", err)
	}
	if got := f.status(t, line.ID); got != consultation.TreatmentInProgress {
		t.Fatalf("after deleting L2: expected InProgress, got %s", got)
	}
}

func TestAppendLog_OutOfOrderDates(t *testing.T) {
	f := newFixture(t)
	line := f.line(consultation.ServiceConfirmed)

	f.appendLog(t, f.visit(day2, scheduling.StatusArrived), line, consultation.TreatmentCompleted)
	f.appendLog(t, f.visit(day1, scheduling.StatusArrived), line, consultation.TreatmentInProgress)

	if got := f.status(t, line.ID); got != consultation.TreatmentCompleted {
		t.Fatalf("expected the later treatment date to win, got %s", got)
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	f := newFixture(t)
	line := f.line(consultation.ServiceConfirmed)
	f.appendLog(t, f.visit(day1, scheduling.StatusArrived), line, consultation.TreatmentInProgress)

	first, err := f.svc.Recompute(context.Background(), line.ID)
	if err != nil {
		t.Fatalf("Recompute() error: %v", err)
	}
	second, err := f.svc.Recompute(context.Background(), line.ID)
	if err != nil {
		t.Fatalf("Recompute() error: %v", err)
	}
	if first != second || first != consultation.TreatmentInProgress {
		t.Fatalf("expected InProgress twice, got %s then %s", first, second)
	}
}

func TestAppendLog_StampsFromAppointment(t *testing.T) {
	f := newFixture(t)
	line := f.line(consultation.ServiceConfirmed)
	elsewhere := uuid.New()
	visit := f.visit(day1, scheduling.StatusWalkInArrived)
	visit.ClinicID = elsewhere
	f.visits.Seed(visit)

	l, err := f.svc.AppendLog(f.as(f.admin), treatment.CreateRequest{
		AppointmentID: visit.ID, ConsultedServiceID: line.ID,
		TreatmentStatus: consultation.TreatmentInProgress, DentistID: f.dentist,
	})
	if err != nil {
		t.Fatalf("AppendLog() error: %v", err)
	}
	if !l.TreatmentDate.Equal(day1) {
		t.Errorf("expected treatment date from the appointment, got %v", l.TreatmentDate)
	}
	if l.ClinicID != elsewhere {
		t.Errorf("expected clinic of the visit, got %s", l.ClinicID)
	}
	if l.MediaURLs == nil {
		t.Error("expected empty media list, got nil")
	}
}

func TestAppendLog_Rejections(t *testing.T) {
	f := newFixture(t)
	confirmed := f.line(consultation.ServiceConfirmed)
	unconfirmed := f.line(consultation.ServiceUnconfirmed)
	arrived := f.visit(day2, scheduling.StatusArrived)
	pending := f.visit(day1, scheduling.StatusPending)

	stranger := f.visits.Seed(&scheduling.Appointment{
		CustomerID: uuid.New(), ClinicID: f.clinic, PrimaryDentistID: f.dentist,
		AppointmentDateTime: day2, Duration: 30, Status: scheduling.StatusArrived, CheckInTime: &day2,
	})

	tests := []struct {
		name  string
		visit uuid.UUID
		line  uuid.UUID
		want  apperr.Code
	}{
		{"visit not checked in", pending.ID, confirmed.ID, apperr.CodeAppointmentNotCheckedIn},
		{"service not confirmed", arrived.ID, unconfirmed.ID, apperr.CodeServiceNotConfirmed},
		{"different customer", stranger.ID, confirmed.ID, apperr.CodeAppointmentCustomerMismatch},
		{"unknown appointment", uuid.New(), confirmed.ID, apperr.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AppendLog(f.as(f.staff), treatment.CreateRequest{
				AppointmentID: tt.visit, ConsultedServiceID: tt.line,
				TreatmentStatus: consultation.TreatmentInProgress, DentistID: f.dentist,
			})
			if !apperr.Is(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
		})
	}

	_, err := f.svc.AppendLog(f.as(f.staff), treatment.CreateRequest{
		AppointmentID: arrived.ID, ConsultedServiceID: confirmed.ID,
		TreatmentStatus: "Paused", DentistID: f.dentist,
	})
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected ValidationError for an unknown status, got %v", err)
	}
}

func TestUpdateDeleteLog_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	line := f.line(consultation.ServiceConfirmed)
	l := f.appendLog(t, f.visit(day2, scheduling.StatusArrived), line, consultation.TreatmentInProgress)
	colleague := auth.Actor{EmployeeID: uuid.New(), Role: auth.RoleEmployee, ClinicID: f.clinic}

	_, err := f.svc.UpdateLog(f.as(colleague), l.ID, treatment.UpdateRequest{
		TreatmentStatus: patch.Of(consultation.TreatmentCompleted),
	})
	if !apperr.Is(err, apperr.CodePermissionDenied) {
		t.Fatalf("expected PermissionDenied for a colleague, got %v", err)
	}
	if err := f.svc.DeleteLog(f.as(colleague), l.ID); !apperr.Is(err, apperr.CodePermissionDenied) {
		t.Fatalf("expected PermissionDenied for a colleague delete, got %v", err)
	}

	if _, err := f.svc.UpdateLog(f.as(f.staff), l.ID, treatment.UpdateRequest{
		TreatmentStatus: patch.Of(consultation.TreatmentCompleted),
	}); err != nil {
		t.Fatalf("creator update: %v", err)
	}
	if got := f.status(t, line.ID); got != consultation.TreatmentCompleted {
		t.Fatalf("expected update to re-project Completed, got %s", got)
	}
}

func TestUpdateLog_EmptyRequest(t *testing.T) {
	f := newFixture(t)
	line := f.line(consultation.ServiceConfirmed)
	l := f.appendLog(t, f.visit(day2, scheduling.StatusArrived), line, consultation.TreatmentInProgress)
	outsider := auth.Actor{EmployeeID: uuid.New(), Role: auth.RoleEmployee, ClinicID: uuid.New()}

	if _, err := f.svc.UpdateLog(f.as(outsider), l.ID, treatment.UpdateRequest{}); !apperr.Is(err, apperr.CodePermissionDenied) {
		t.Fatalf("expected PermissionDenied for a non-owner from another clinic, got %v", err)
	}
	stored, err := f.logs.GetByID(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if stored.UpdatedByID != f.staff.EmployeeID {
		t.Errorf("expected updatedBy untouched, got %s", stored.UpdatedByID)
	}

	got, err := f.svc.UpdateLog(f.as(f.staff), l.ID, treatment.UpdateRequest{})
	if err != nil {
		t.Fatalf("owner no-op update: %v", err)
	}
	if got.TreatmentStatus != consultation.TreatmentInProgress {
		t.Errorf("expected unchanged log, got %s", got.TreatmentStatus)
	}
}

func TestUpdateLog_MediaURLs(t *testing.T) {
	f := newFixture(t)
	line := f.line(consultation.ServiceConfirmed)
	l := f.appendLog(t, f.visit(day2, scheduling.StatusArrived), line, consultation.TreatmentInProgress)

	_, err := f.svc.UpdateLog(f.as(f.staff), l.ID, treatment.UpdateRequest{
		MediaURLs: patch.Of([]string{"https://cdn.clinic.example/xray/1.png", "xray-2"}),
	})
	if !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected ValidationError for a malformed url, got %v", err)
	}
	got, err := f.svc.UpdateLog(f.as(f.staff), l.ID, treatment.UpdateRequest{
		MediaURLs: patch.Of([]string{"https://cdn.clinic.example/xray/1.png"}),
	})
	if err != nil {
		t.Fatalf("UpdateLog() error: %v", err)
	}
	if len(got.MediaURLs) != 1 {
		t.Errorf("expected one media url, got %v", got.MediaURLs)
	}
}

func TestProject_TieBreak(t *testing.T) {
	at := day1
	older := &treatment.TreatmentLog{TreatmentDate: at, TreatmentStatus: consultation.TreatmentInProgress, CreatedAt: at}
	newer := &treatment.TreatmentLog{TreatmentDate: at, TreatmentStatus: consultation.TreatmentCompleted, CreatedAt: at.Add(time.Minute)}

	if got := treatment.Project([]*treatment.TreatmentLog{older, newer}); got != consultation.TreatmentCompleted {
		t.Errorf("expected later-created log to win a date tie, got %s", got)
	}
	if got := treatment.Project([]*treatment.TreatmentLog{newer, older}); got != consultation.TreatmentCompleted {
		t.Errorf("expected order-independent result, got %s", got)
	}
	if got := treatment.Project(nil); got != consultation.TreatmentNotStarted {
		t.Errorf("expected NotStarted for no logs, got %s", got)
	}
}
