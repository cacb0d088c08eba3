package treatment

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/domain/consultation"
	"github.com/clinicops/clinic/internal/domain/scheduling"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/internal/platform/metrics"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/internal/platform/validation"
)

// Visits is the part of the appointment store the aggregator reads.
type Visits interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

// Ledger is the part of the consulted-service store the aggregator reads and
// projects onto.
type Ledger interface {
	GetByID(ctx context.Context, id uuid.UUID) (*consultation.ConsultedService, error)
	SetTreatmentStatus(ctx context.Context, id uuid.UUID, status consultation.TreatmentStatus) error
}

type Service struct {
	logs    Repository
	visits  Visits
	ledger  Ledger
	policy  permission.Policy[permission.TreatmentLogRecord]
	tx      db.TxRunner
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l.With().Str("component", "treatment").Logger() }
}

func NewService(repo Repository, visits Visits, ledger Ledger, gate *permission.Gate, tx db.TxRunner, opts ...Option) *Service {
	s := &Service{
		logs:   repo,
		visits: visits,
		ledger: ledger,
		policy: gate.TreatmentLogs,
		tx:     tx,
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recompute re-derives the service's treatment status from its full log
// history and stores it. Running it twice without a log change is a no-op.
func (s *Service) Recompute(ctx context.Context, serviceID uuid.UUID) (consultation.TreatmentStatus, error) {
	logs, err := s.logs.ListByService(ctx, serviceID)
	if err != nil {
		return "", err
	}
	status := Project(logs)
	if err := s.ledger.SetTreatmentStatus(ctx, serviceID, status); err != nil {
		return "", err
	}
	s.logger.Info().
		Str("consulted_service_id", serviceID.String()).
		Str("treatment_status", string(status)).
		Int("logs", len(logs)).
		Msg("treatment status recomputed")
	return status, nil
}

// AppendLog records a session for a confirmed service during a checked-in
// visit of the same customer.
func (s *Service) AppendLog(ctx context.Context, req CreateRequest) (*TreatmentLog, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	visit, err := s.visits.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if !visit.CheckedIn() {
		return nil, apperr.New(apperr.CodeAppointmentNotCheckedIn, "appointment is not checked in")
	}
	if !actor.IsAdmin() && !actor.InClinic(visit.ClinicID) {
		return nil, apperr.PermissionDenied("appointment belongs to another clinic")
	}
	line, err := s.ledger.GetByID(ctx, req.ConsultedServiceID)
	if err != nil {
		return nil, err
	}
	if !line.Confirmed() {
		return nil, apperr.New(apperr.CodeServiceNotConfirmed, "service must be confirmed before treatment")
	}
	if visit.CustomerID != line.CustomerID {
		return nil, apperr.New(apperr.CodeAppointmentCustomerMismatch, "appointment and service belong to different customers")
	}

	media := req.MediaURLs
	if media == nil {
		media = []string{}
	}
	log := &TreatmentLog{
		ConsultedServiceID: line.ID,
		AppointmentID:      visit.ID,
		CustomerID:         visit.CustomerID,
		ClinicID:           visit.ClinicID,
		TreatmentDate:      visit.AppointmentDateTime,
		TreatmentStatus:    req.TreatmentStatus,
		Notes:              req.Notes,
		DentistID:          req.DentistID,
		Assistant1ID:       req.Assistant1ID,
		Assistant2ID:       req.Assistant2ID,
		MediaURLs:          media,
		CreatedByID:        actor.EmployeeID,
		UpdatedByID:        actor.EmployeeID,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.logs.Create(ctx, log); err != nil {
			return err
		}
		_, err := s.Recompute(ctx, line.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TreatmentLogCreated()
	return log, nil
}

func (s *Service) UpdateLog(ctx context.Context, id uuid.UUID, req UpdateRequest) (*TreatmentLog, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	cur, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := req.fields()
	if err := permission.CheckFields(s.policy, actor, cur.record(), fields); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return cur, nil
	}

	next := *cur
	if req.TreatmentStatus.Set {
		next.TreatmentStatus = req.TreatmentStatus.Value
	}
	req.Notes.Apply(&next.Notes)
	if req.DentistID.Set {
		next.DentistID = req.DentistID.Value
	}
	req.Assistant1ID.Apply(&next.Assistant1ID)
	req.Assistant2ID.Apply(&next.Assistant2ID)
	if req.MediaURLs.Set {
		next.MediaURLs = append([]string{}, req.MediaURLs.Value...)
	}
	next.UpdatedByID = actor.EmployeeID

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.logs.Update(ctx, &next); err != nil {
			return err
		}
		_, err := s.Recompute(ctx, next.ConsultedServiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteLog removes a log; the service falls back to the status of the next
// most recent log.
func (s *Service) DeleteLog(ctx context.Context, id uuid.UUID) error {
	actor, err := auth.Current(ctx)
	if err != nil {
		return err
	}
	cur, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanDelete(actor, cur.record()).Err(); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.logs.Delete(ctx, id); err != nil {
			return err
		}
		_, err := s.Recompute(ctx, cur.ConsultedServiceID)
		return err
	})
}

func (s *Service) ListByService(ctx context.Context, serviceID uuid.UUID) ([]*TreatmentLog, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	if _, err := s.ledger.GetByID(ctx, serviceID); err != nil {
		return nil, err
	}
	return s.logs.ListByService(ctx, serviceID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*TreatmentLog, int, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, 0, err
	}
	return s.logs.ListByCustomer(ctx, customerID, limit, offset)
}
