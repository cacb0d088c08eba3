package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/domain/directory"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/calendar"
	"github.com/clinicops/clinic/internal/platform/metrics"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/internal/platform/validation"
	"github.com/clinicops/clinic/pkg/patch"
)

// DefaultPastGrace is how far in the past a booking may start.
const DefaultPastGrace = 2 * time.Minute

type Service struct {
	appointments AppointmentRepository
	directory    directory.DirectoryPort
	policy       permission.Policy[permission.AppointmentRecord]
	cal          *calendar.Calendar
	pastGrace    time.Duration
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

type Option func(*Service)

func WithPastGrace(d time.Duration) Option { return func(s *Service) { s.pastGrace = d } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l.With().Str("component", "scheduling").Logger() }
}

func NewService(repo AppointmentRepository, dir directory.DirectoryPort, gate *permission.Gate, cal *calendar.Calendar, opts ...Option) *Service {
	s := &Service{
		appointments: repo,
		directory:    dir,
		policy:       gate.Appointments,
		cal:          cal,
		pastGrace:    DefaultPastGrace,
		logger:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) localDate(t time.Time) string {
	return s.cal.DateOf(t).Format(DateLayout)
}

func (s *Service) ensureNoConflict(ctx context.Context, customerID uuid.UUID, at time.Time, excludeID uuid.UUID) error {
	existing, err := s.appointments.FindByCustomerDate(ctx, customerID, s.localDate(at), excludeID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperr.New(apperr.CodeCustomerConflict,
			"customer already has an appointment on %s", existing.AppointmentDate)
	}
	return nil
}

// Book creates a visit. Walk-ins start now unless a time is given, must be
// today, and arrive already checked in.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := s.cal.Now()
	start := req.AppointmentDateTime
	if start.IsZero() {
		if !req.WalkIn {
			return nil, apperr.Validation("appointmentDateTime is required")
		}
		start = now
	}
	if req.WalkIn && !s.cal.IsToday(start) {
		return nil, apperr.Validation("walk-in appointments must be for today")
	}
	if start.Before(now.Add(-s.pastGrace)) {
		return nil, apperr.New(apperr.CodePastAppointmentNotAllowed, "appointment time is in the past")
	}

	clinicID := actor.ClinicID
	if req.ClinicID != nil && *req.ClinicID != actor.ClinicID {
		if !actor.IsAdmin() {
			return nil, apperr.PermissionDenied("only admin can book for another clinic")
		}
		clinicID = *req.ClinicID
	}

	if _, err := s.directory.FindCustomerByID(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	if _, err := s.directory.FindClinicByID(ctx, clinicID); err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, req.CustomerID, start, uuid.Nil); err != nil {
		return nil, err
	}

	a := &Appointment{
		CustomerID:          req.CustomerID,
		ClinicID:            clinicID,
		PrimaryDentistID:    req.PrimaryDentistID,
		SecondaryDentistID:  req.SecondaryDentistID,
		AppointmentDateTime: start,
		AppointmentDate:     s.localDate(start),
		Duration:            req.Duration,
		Notes:               req.Notes,
		Status:              StatusPending,
		CreatedByID:         actor.EmployeeID,
		UpdatedByID:         actor.EmployeeID,
	}
	if req.WalkIn {
		a.Status = StatusWalkInArrived
		checkIn := now
		a.CheckInTime = &checkIn
	}

	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, err
	}

	s.metrics.AppointmentBooked(string(a.Status))
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("customer_id", a.CustomerID.String()).
		Str("date", a.AppointmentDate).
		Str("status", string(a.Status)).
		Msg("appointment booked")
	return a, nil
}

// CheckDentistAvailability lists the dentist's appointments overlapping
// [start, start+duration). It never blocks a booking.
func (s *Service) CheckDentistAvailability(ctx context.Context, dentistID uuid.UUID, start time.Time, duration int, excludeID *uuid.UUID) ([]*Appointment, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	if dentistID == uuid.Nil {
		return nil, apperr.Validation("dentistId is required")
	}
	if start.IsZero() {
		return nil, apperr.Validation("start is required")
	}
	if duration <= 0 {
		return nil, apperr.Validation("duration must be at least 1")
	}
	exclude := uuid.Nil
	if excludeID != nil {
		exclude = *excludeID
	}
	end := start.Add(time.Duration(duration) * time.Minute)
	return s.appointments.ListOverlapping(ctx, dentistID, start, end, exclude)
}

// Update applies a partial update. A change of calendar date resets the
// visit to Pending with no check-in or check-out, whatever else the request
// carries.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	cur, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permission.CheckFields(s.policy, actor, cur.record(), req.changedFields(cur)); err != nil {
		return nil, err
	}

	next := *cur
	if req.CustomerID.Set {
		next.CustomerID = req.CustomerID.Value
	}
	if req.ClinicID.Set {
		next.ClinicID = req.ClinicID.Value
	}
	if req.PrimaryDentistID.Set {
		next.PrimaryDentistID = req.PrimaryDentistID.Value
	}
	req.SecondaryDentistID.Apply(&next.SecondaryDentistID)
	if req.AppointmentDateTime.Set {
		next.AppointmentDateTime = req.AppointmentDateTime.Value
	}
	if req.Duration.Set {
		next.Duration = req.Duration.Value
	}
	req.Notes.Apply(&next.Notes)
	if req.Status.Set {
		next.Status = req.Status.Value
	}
	req.CheckInTime.Apply(&next.CheckInTime)
	req.CheckOutTime.Apply(&next.CheckOutTime)

	rescheduled := !s.cal.SameDay(cur.AppointmentDateTime, next.AppointmentDateTime)
	switch {
	case rescheduled:
		next.Status = StatusPending
		next.CheckInTime = nil
		next.CheckOutTime = nil
	default:
		if req.CheckInTime.HasValue() && !req.Status.Set {
			next.Status = StatusArrived
		}
		if next.Status == StatusNoShow {
			next.CheckInTime = nil
			next.CheckOutTime = nil
		}
	}

	if next.CheckInTime != nil && next.CheckOutTime != nil && !next.CheckInTime.Before(*next.CheckOutTime) {
		return nil, apperr.New(apperr.CodeInvalidTimeOrder, "checkInTime must be before checkOutTime")
	}

	if rescheduled && !actor.IsAdmin() && next.AppointmentDateTime.Before(s.cal.Now().Add(-s.pastGrace)) {
		return nil, apperr.New(apperr.CodePastAppointmentNotAllowed, "cannot reschedule into the past")
	}
	if next.CustomerID != cur.CustomerID {
		if _, err := s.directory.FindCustomerByID(ctx, next.CustomerID); err != nil {
			return nil, err
		}
	}
	if rescheduled || next.CustomerID != cur.CustomerID {
		if err := s.ensureNoConflict(ctx, next.CustomerID, next.AppointmentDateTime, cur.ID); err != nil {
			return nil, err
		}
	}

	next.AppointmentDate = s.localDate(next.AppointmentDateTime)
	next.UpdatedByID = actor.EmployeeID
	if err := s.appointments.Update(ctx, &next); err != nil {
		return nil, err
	}

	evt := s.logger.Info().
		Str("appointment_id", next.ID.String()).
		Str("status", string(next.Status))
	if rescheduled {
		evt.Str("from", cur.AppointmentDate).Str("to", next.AppointmentDate).Msg("appointment rescheduled")
	} else {
		evt.Msg("appointment updated")
	}
	return &next, nil
}

// CheckIn stamps check-in now and marks the visit arrived.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID, walkIn bool) (*Appointment, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	cur, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.cal.IsToday(cur.AppointmentDateTime) {
		return nil, apperr.Validation("check-in is only allowed on the day of the appointment")
	}
	status := StatusArrived
	if walkIn {
		status = StatusWalkInArrived
	}
	now := s.cal.Now()
	return s.Update(ctx, id, UpdateRequest{
		Status:      patch.Of(status),
		CheckInTime: patch.Of(now),
	})
}

// CheckOut stamps check-out now on a checked-in visit.
func (s *Service) CheckOut(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	cur, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.CheckedIn() {
		return nil, apperr.New(apperr.CodeAppointmentNotCheckedIn, "appointment is not checked in")
	}
	return s.Update(ctx, id, UpdateRequest{CheckOutTime: patch.Of(s.cal.Now())})
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	actor, err := auth.Current(ctx)
	if err != nil {
		return err
	}
	cur, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanDelete(actor, cur.record()).Err(); err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("by", actor.EmployeeID.String()).
		Msg("appointment deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanView(actor, a.record()).Err(); err != nil {
		return nil, err
	}
	return a, nil
}

// ListByCustomer returns the customer's visits, newest first. Employees see
// their own clinic's visits only.
func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, 0, err
	}
	var clinic *uuid.UUID
	if !actor.IsAdmin() {
		clinic = &actor.ClinicID
	}
	return s.appointments.ListByCustomer(ctx, customerID, clinic, limit, offset)
}

// ListByClinicDay returns a clinic's visits on the local day containing day.
func (s *Service) ListByClinicDay(ctx context.Context, clinicID uuid.UUID, day time.Time, limit, offset int) ([]*Appointment, int, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !actor.IsAdmin() && !actor.InClinic(clinicID) {
		return nil, 0, apperr.PermissionDenied("appointment belongs to another clinic")
	}
	from, to := s.cal.DayBounds(day)
	return s.appointments.ListByClinicRange(ctx, clinicID, from, to, limit, offset)
}

// ParseDay parses a YYYY-MM-DD date in the clinic zone; empty means today.
func (s *Service) ParseDay(raw string) (time.Time, error) {
	if raw == "" {
		return s.cal.Today(), nil
	}
	t, err := time.ParseInLocation(DateLayout, raw, s.cal.Location())
	if err != nil {
		return time.Time{}, apperr.Validation("date must be YYYY-MM-DD")
	}
	return t, nil
}
