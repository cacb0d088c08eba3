package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/internal/platform/idp"
	"github.com/clinicops/clinic/internal/platform/validation"
)

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type SetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// Service serves directory reads and the admin-only employee account
// operations. Account state lives in the identity provider only.
type Service struct {
	repo     Repository
	accounts idp.AuthProvider
	logger   zerolog.Logger
}

func NewService(repo Repository, accounts idp.AuthProvider, logger zerolog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, logger: logger.With().Str("component", "directory").Logger()}
}

func (s *Service) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	return s.repo.FindCustomerByID(ctx, id)
}

// GetCustomerSource resolves the referring customer, or nil when none is set.
func (s *Service) GetCustomerSource(ctx context.Context, id uuid.UUID) (*Customer, error) {
	c, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.SourceCustomerID == nil {
		return nil, nil
	}
	return s.repo.FindCustomerByID(ctx, *c.SourceCustomerID)
}

func (s *Service) GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	return s.repo.FindEmployeeByID(ctx, id)
}

func (s *Service) ListClinicEmployees(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Employee, int, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, 0, err
	}
	return s.repo.ListEmployeesByClinic(ctx, clinicID, limit, offset)
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	return s.repo.FindClinicByID(ctx, id)
}

func (s *Service) GetCatalogItem(ctx context.Context, id uuid.UUID) (*CatalogItem, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, err
	}
	return s.repo.FindServiceByID(ctx, id)
}

func (s *Service) ListCatalog(ctx context.Context, limit, offset int) ([]*CatalogItem, int, error) {
	if _, err := auth.Current(ctx); err != nil {
		return nil, 0, err
	}
	return s.repo.ListCatalog(ctx, limit, offset)
}

// -- Employee accounts --

func (s *Service) adminTarget(ctx context.Context, employeeID uuid.UUID) (*auth.Actor, *Employee, error) {
	actor, err := auth.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsAdmin() {
		return nil, nil, apperr.PermissionDenied("only admin can manage employee accounts")
	}
	emp, err := s.repo.FindEmployeeByID(ctx, employeeID)
	if err != nil {
		return nil, nil, err
	}
	if emp.Email == "" {
		return nil, nil, apperr.Validation("employee has no email address")
	}
	return actor, emp, nil
}

func (s *Service) InviteEmployee(ctx context.Context, employeeID uuid.UUID) (*idp.Invitation, error) {
	actor, emp, err := s.adminTarget(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	inv, err := s.accounts.Invite(ctx, emp.Email, emp.FullName)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("employee_id", emp.ID.String()).
		Str("by", actor.EmployeeID.String()).
		Bool("existing", inv.Existing).
		Msg("employee invited")
	return inv, nil
}

func (s *Service) SetEmployeeEnabled(ctx context.Context, employeeID uuid.UUID, req SetEnabledRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	actor, emp, err := s.adminTarget(ctx, employeeID)
	if err != nil {
		return err
	}
	if emp.ID == actor.EmployeeID && !*req.Enabled {
		return apperr.Validation("an admin cannot disable their own account")
	}
	if err := s.accounts.SetEnabled(ctx, emp.Email, *req.Enabled); err != nil {
		return accountErr(err)
	}
	s.logger.Info().
		Str("employee_id", emp.ID.String()).
		Bool("enabled", *req.Enabled).
		Msg("employee account state changed")
	return nil
}

func (s *Service) SetEmployeePassword(ctx context.Context, employeeID uuid.UUID, req SetPasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	_, emp, err := s.adminTarget(ctx, employeeID)
	if err != nil {
		return err
	}
	if err := s.accounts.SetPassword(ctx, emp.Email, req.Password); err != nil {
		return accountErr(err)
	}
	s.logger.Info().Str("employee_id", emp.ID.String()).Msg("employee password set")
	return nil
}

func accountErr(err error) error {
	if errors.Is(err, idp.ErrAccountNotFound) {
		return apperr.NotFound("employee account")
	}
	return err
}
