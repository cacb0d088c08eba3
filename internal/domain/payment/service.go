package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/domain/consultation"
	"github.com/clinicops/clinic/internal/domain/directory"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/calendar"
	"github.com/clinicops/clinic/internal/platform/db"
	"github.com/clinicops/clinic/internal/platform/metrics"
	"github.com/clinicops/clinic/internal/platform/permission"
	"github.com/clinicops/clinic/internal/platform/validation"
)

// Ledger is the part of the consulted-service store allocations read and
// re-materialize.
type Ledger interface {
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*consultation.ConsultedService, error)
	SetAmountPaid(ctx context.Context, id uuid.UUID, amountPaid decimal.Decimal) error
	ListUnpaidByCustomer(ctx context.Context, customerID uuid.UUID) ([]*consultation.ConsultedService, error)
}

type Service struct {
	vouchers  Repository
	ledger    Ledger
	directory directory.DirectoryPort
	policy    *permission.VoucherPolicy
	tx        db.TxRunner
	cal       *calendar.Calendar
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l.With().Str("component", "payment").Logger() }
}

func NewService(repo Repository, ledger Ledger, dir directory.DirectoryPort, gate *permission.Gate,
	tx db.TxRunner, cal *calendar.Calendar, opts ...Option) *Service {
	s := &Service{
		vouchers:  repo,
		ledger:    ledger,
		directory: dir,
		policy:    gate.Vouchers,
		tx:        tx,
		cal:       cal,
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// checkDebt locks the referenced services and verifies each requested
// allocation fits its available debt. prior holds what the voucher being
// edited already allocated, which is available again.
func (s *Service) checkDebt(ctx context.Context, customerID uuid.UUID, want, prior map[uuid.UUID]decimal.Decimal) error {
	ids := lo.Uniq(append(lo.Keys(want), lo.Keys(prior)...))
	lines, err := s.ledger.LockByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := lo.KeyBy(lines, func(l *consultation.ConsultedService) uuid.UUID { return l.ID })

	for id, amount := range want {
		line, ok := byID[id]
		if !ok || line.CustomerID != customerID {
			return apperr.New(apperr.CodeInvalidService, "service %s does not belong to this customer", id)
		}
		available := line.Debt.Add(prior[id])
		if amount.GreaterThan(available) {
			return apperr.New(apperr.CodeAmountExceedsDebt,
				"amount %s for %s exceeds outstanding debt %s", amount, line.Name, available)
		}
	}
	return nil
}

// rematerialize rewrites amountPaid and debt of each service from the live
// detail sum.
func (s *Service) rematerialize(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	sums, err := s.vouchers.SumAllocated(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.ledger.SetAmountPaid(ctx, id, sums[id]); err != nil {
			return err
		}
	}
	return nil
}

func toDetails(in []DetailInput) []Detail {
	return lo.Map(in, func(d DetailInput, _ int) Detail {
		return Detail{ConsultedServiceID: d.ConsultedServiceID, Amount: d.Amount, PaymentMethod: d.PaymentMethod}
	})
}

// Create records a payment across one or more of the customer's services.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Voucher, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := checkAmounts(req.Details); err != nil {
		return nil, err
	}
	if _, err := s.directory.FindCustomerByID(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	v := &Voucher{
		CustomerID:  req.CustomerID,
		CashierID:   actor.EmployeeID,
		ClinicID:    actor.ClinicID,
		PaymentDate: s.cal.Now(),
		Notes:       req.Notes,
		TotalAmount: total(req.Details),
		Details:     toDetails(req.Details),
		CreatedByID: actor.EmployeeID,
		UpdatedByID: actor.EmployeeID,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.checkDebt(ctx, req.CustomerID, allocate(req.Details), nil); err != nil {
			return err
		}
		if err := s.vouchers.Create(ctx, v); err != nil {
			return err
		}
		return s.rematerialize(ctx, serviceIDs(req.Details))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.VoucherCreated(v.TotalAmount)
	s.logger.Info().
		Str("voucher_id", v.ID.String()).
		Str("customer_id", v.CustomerID.String()).
		Str("total", v.TotalAmount.String()).
		Int("lines", len(v.Details)).
		Msg("payment voucher created")
	return v, nil
}

// Update edits a voucher within the actor's access tier. Replacing details
// re-validates each amount against the service's debt plus what this voucher
// had allocated to it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Voucher, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Allocations must come from the locked row: a concurrent edit may
		// have moved them since any earlier read.
		cur, err := s.vouchers.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if err := permission.CheckFields[permission.VoucherRecord](s.policy, actor, cur.record(), req.fields()); err != nil {
			return err
		}
		if req.CashierID.Set && req.CashierID.Value != cur.CashierID {
			if _, err := s.directory.FindEmployeeByID(ctx, req.CashierID.Value); err != nil {
				return err
			}
		}
		known := lo.SliceToMap(cur.Details, func(d Detail) (uuid.UUID, bool) { return d.ID, true })
		for _, mc := range req.DetailMethods {
			if !known[mc.DetailID] {
				return apperr.NotFound("payment voucher detail")
			}
		}

		next := *cur
		req.Notes.Apply(&next.Notes)
		if req.CashierID.Set {
			next.CashierID = req.CashierID.Value
		}
		if req.PaymentDate.Set {
			next.PaymentDate = req.PaymentDate.Value
		}
		next.UpdatedByID = actor.EmployeeID

		prior := cur.allocations()
		if req.Details.Set {
			if err := s.checkDebt(ctx, cur.CustomerID, allocate(req.Details.Value), prior); err != nil {
				return err
			}
			details, err := s.vouchers.ReplaceDetails(ctx, cur.ID, toDetails(req.Details.Value))
			if err != nil {
				return err
			}
			next.Details = details
			next.TotalAmount = total(req.Details.Value)
		}
		for _, mc := range req.DetailMethods {
			if err := s.vouchers.SetDetailMethod(ctx, cur.ID, mc.DetailID, mc.PaymentMethod); err != nil {
				return err
			}
		}
		if err := s.vouchers.UpdateHeader(ctx, &next); err != nil {
			return err
		}
		if req.Details.Set {
			affected := lo.Uniq(append(lo.Keys(prior), serviceIDs(req.Details.Value)...))
			return s.rematerialize(ctx, affected)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.vouchers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("voucher_id", id.String()).
		Strs("fields", req.fields()).
		Str("total", updated.TotalAmount.String()).
		Msg("payment voucher updated")
	return updated, nil
}

// Delete removes the voucher and its details, restoring the debt they
// covered.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	actor, err := auth.Current(ctx)
	if err != nil {
		return err
	}
	var removed decimal.Decimal
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.vouchers.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.CanDelete(actor, cur.record()).Err(); err != nil {
			return err
		}
		affected := lo.Keys(cur.allocations())
		if _, err := s.ledger.LockByIDs(ctx, affected); err != nil {
			return err
		}
		if err := s.vouchers.Delete(ctx, id); err != nil {
			return err
		}
		removed = cur.TotalAmount
		return s.rematerialize(ctx, affected)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("voucher_id", id.String()).
		Str("by", actor.EmployeeID.String()).
		Str("total", removed.String()).
		Msg("payment voucher deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Voucher, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.vouchers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanView(actor, v.record()).Err(); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*Voucher, int, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, 0, err
	}
	return s.vouchers.ListByCustomer(ctx, customerID, limit, offset)
}

// GetUnpaidServices lists the customer's services that still carry debt.
func (s *Service) GetUnpaidServices(ctx context.Context, customerID uuid.UUID) ([]*consultation.ConsultedService, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	lines, err := s.ledger.ListUnpaidByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []*consultation.ConsultedService{}
	}
	return lines, nil
}
