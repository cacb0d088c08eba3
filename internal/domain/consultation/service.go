package consultation

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/domain/directory"
	"github.com/clinicops/clinic/internal/domain/scheduling"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/calendar"
	"github.com/clinicops/clinic/internal/platform/metrics"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/internal/platform/validation"
	"github.com/clinicops/clinic/pkg/patch"
)

// Visits is the part of the appointment store the ledger reads.
type Visits interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	FindByCustomerDate(ctx context.Context, customerID uuid.UUID, date string, excludeID uuid.UUID) (*scheduling.Appointment, error)
}

type Service struct {
	services  Repository
	visits    Visits
	directory directory.DirectoryPort
	catalog   directory.CatalogPort
	policy    permission.Policy[permission.ServiceRecord]
	cal       *calendar.Calendar
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l.With().Str("component", "consultation").Logger() }
}

func NewService(repo Repository, visits Visits, dir directory.DirectoryPort, catalog directory.CatalogPort,
	gate *permission.Gate, cal *calendar.Calendar, opts ...Option) *Service {
	s := &Service{
		services:  repo,
		visits:    visits,
		directory: dir,
		catalog:   catalog,
		policy:    gate.Services,
		cal:       cal,
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// checkedInVisit returns today's checked-in appointment of the customer at
// the clinic.
func (s *Service) checkedInVisit(ctx context.Context, customerID, clinicID uuid.UUID) (*scheduling.Appointment, error) {
	today := s.cal.Today().Format(scheduling.DateLayout)
	visit, err := s.visits.FindByCustomerDate(ctx, customerID, today, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if visit == nil || visit.ClinicID != clinicID || !visit.CheckedIn() {
		return nil, apperr.New(apperr.CodeCheckinRequired,
			"customer must be checked in at this clinic today before services can be added")
	}
	return visit, nil
}

func requireTeeth(unit string, teeth []string) error {
	item := directory.CatalogItem{Unit: unit}
	if item.IsPerTooth() && len(teeth) == 0 {
		return apperr.Validation("toothPositions is required for services billed per tooth")
	}
	return nil
}

// Create adds a priced line for a customer who is checked in today.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*ConsultedService, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	clinicID := actor.ClinicID
	if req.ClinicID != nil && *req.ClinicID != actor.ClinicID {
		if !actor.IsAdmin() {
			return nil, apperr.PermissionDenied("only admin can add services for another clinic")
		}
		clinicID = *req.ClinicID
	}

	if _, err := s.directory.FindCustomerByID(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	visit, err := s.checkedInVisit(ctx, req.CustomerID, clinicID)
	if err != nil {
		return nil, err
	}
	item, err := s.catalog.FindServiceByID(ctx, req.DentalServiceID)
	if err != nil {
		return nil, err
	}

	pref := item.Price
	if req.PreferentialPrice != nil {
		pref = *req.PreferentialPrice
	}
	if err := checkPrice(pref, item.MinPrice, item.Price); err != nil {
		return nil, err
	}
	teeth := normalizeTeeth(req.ToothPositions)
	if err := requireTeeth(item.Unit, teeth); err != nil {
		return nil, err
	}

	line := &ConsultedService{
		CustomerID:         req.CustomerID,
		ClinicID:           clinicID,
		AppointmentID:      visit.ID,
		DentalServiceID:    item.ID,
		Name:               item.Name,
		Unit:               item.Unit,
		Price:              item.Price,
		MinPrice:           item.MinPrice,
		Quantity:           req.Quantity,
		PreferentialPrice:  pref,
		AmountPaid:         decimal.Zero,
		ServiceStatus:      ServiceUnconfirmed,
		TreatmentStatus:    TreatmentNotStarted,
		ToothPositions:     teeth,
		ConsultationDate:   s.cal.Now(),
		ConsultingDoctorID: req.ConsultingDoctorID,
		ConsultingSaleID:   req.ConsultingSaleID,
		TreatingDoctorID:   req.TreatingDoctorID,
		Stage:              req.Stage,
		Notes:              req.Notes,
		CreatedByID:        actor.EmployeeID,
		UpdatedByID:        actor.EmployeeID,
	}
	line.reprice()

	if err := s.services.Create(ctx, line); err != nil {
		return nil, err
	}

	s.metrics.ServiceCreated()
	s.logger.Info().
		Str("consulted_service_id", line.ID.String()).
		Str("customer_id", line.CustomerID.String()).
		Str("appointment_id", line.AppointmentID.String()).
		Str("final_price", line.FinalPrice.String()).
		Msg("consulted service created")
	return line, nil
}

// Update applies a partial update and reprices the line when its quantity,
// unit price or catalog entry changes. The amount already paid is kept.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*ConsultedService, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	cur, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed := req.changedFields(cur)
	if err := permission.CheckFields(s.policy, actor, cur.record(), changed); err != nil {
		return nil, err
	}

	next := *cur
	next.ToothPositions = append([]string{}, cur.ToothPositions...)

	catalogChanged := req.DentalServiceID.Set && req.DentalServiceID.Value != cur.DentalServiceID
	if catalogChanged {
		item, err := s.catalog.FindServiceByID(ctx, req.DentalServiceID.Value)
		if err != nil {
			return nil, err
		}
		next.DentalServiceID = item.ID
		next.Name, next.Unit = item.Name, item.Unit
		next.Price, next.MinPrice = item.Price, item.MinPrice
	}
	if req.AppointmentID.Set && req.AppointmentID.Value != cur.AppointmentID {
		visit, err := s.visits.GetByID(ctx, req.AppointmentID.Value)
		if err != nil {
			return nil, err
		}
		if visit.CustomerID != cur.CustomerID {
			return nil, apperr.New(apperr.CodeAppointmentCustomerMismatch, "appointment belongs to another customer")
		}
		next.AppointmentID = visit.ID
	}
	if req.ClinicID.Set {
		next.ClinicID = req.ClinicID.Value
	}
	if req.Quantity.Set {
		next.Quantity = req.Quantity.Value
	}
	if req.PreferentialPrice.Set {
		next.PreferentialPrice = req.PreferentialPrice.Value
	}
	if catalogChanged || !next.PreferentialPrice.Equal(cur.PreferentialPrice) {
		if err := checkPrice(next.PreferentialPrice, next.MinPrice, next.Price); err != nil {
			return nil, err
		}
	}
	if req.ToothPositions.Set {
		next.ToothPositions = normalizeTeeth(req.ToothPositions.Value)
	}
	if catalogChanged || req.ToothPositions.Set {
		if err := requireTeeth(next.Unit, next.ToothPositions); err != nil {
			return nil, err
		}
	}

	confirming := false
	if req.ServiceStatus.Set && req.ServiceStatus.Value != cur.ServiceStatus {
		if cur.Confirmed() {
			return nil, apperr.Validation("a confirmed service cannot return to Unconfirmed")
		}
		next.ServiceStatus = req.ServiceStatus.Value
		confirming = next.Confirmed()
	}
	req.ServiceConfirmDate.Apply(&next.ServiceConfirmDate)
	if confirming && !req.ServiceConfirmDate.HasValue() {
		now := s.cal.Now()
		next.ServiceConfirmDate = &now
	}
	if req.ConsultationDate.Set {
		next.ConsultationDate = req.ConsultationDate.Value
	}
	req.ConsultingDoctorID.Apply(&next.ConsultingDoctorID)
	req.ConsultingSaleID.Apply(&next.ConsultingSaleID)
	req.TreatingDoctorID.Apply(&next.TreatingDoctorID)
	req.Stage.Apply(&next.Stage)
	req.Notes.Apply(&next.Notes)

	next.reprice()
	if next.Debt.IsNegative() {
		return nil, apperr.New(apperr.CodeInvalidPrice,
			"final price %s is below the amount already paid %s", next.FinalPrice, next.AmountPaid)
	}

	next.UpdatedByID = actor.EmployeeID
	if err := s.services.Update(ctx, &next); err != nil {
		return nil, err
	}

	if confirming {
		s.metrics.ServiceConfirmed()
		s.logger.Info().
			Str("consulted_service_id", next.ID.String()).
			Str("by", actor.EmployeeID.String()).
			Msg("consulted service confirmed")
	} else if len(changed) > 0 {
		s.logger.Info().
			Str("consulted_service_id", next.ID.String()).
			Strs("fields", changed).
			Msg("consulted service updated")
	}
	return &next, nil
}

// Confirm moves an Unconfirmed line to Confirmed, stamping the confirmation
// date.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*ConsultedService, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	cur, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Confirmed() {
		return nil, apperr.New(apperr.CodeAlreadyConfirmed, "service is already confirmed")
	}
	return s.Update(ctx, id, UpdateRequest{ServiceStatus: patch.Of(ServiceConfirmed)})
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	actor, err := auth.Current(ctx)
	if err != nil {
		return err
	}
	cur, err := s.services.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanDelete(actor, cur.record()).Err(); err != nil {
		return err
	}
	if cur.AmountPaid.IsPositive() {
		return apperr.New(apperr.CodeInUse, "service has recorded payments; remove them first")
	}
	if err := s.services.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().
		Str("consulted_service_id", id.String()).
		Str("by", actor.EmployeeID.String()).
		Msg("consulted service deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ConsultedService, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	line, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanView(actor, line.record()).Err(); err != nil {
		return nil, err
	}
	return line, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*ConsultedService, int, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, 0, err
	}
	return s.services.ListByCustomer(ctx, customerID, limit, offset)
}
