package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicops/clinic/internal/platform/apperr"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Actor is the resolved identity behind a request.
type Actor struct {
	EmployeeID uuid.UUID `json:"employeeId"`
	Role       Role      `json:"role"`
	ClinicID   uuid.UUID `json:"clinicId"`
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// InClinic reports whether the actor works at clinicID.
func (a *Actor) InClinic(clinicID uuid.UUID) bool {
	return a != nil && a.ClinicID == clinicID
}

// Require rejects an absent or partially provisioned actor.
func Require(a *Actor) error {
	if a == nil {
		return apperr.Unauthorized()
	}
	if a.EmployeeID == uuid.Nil {
		return apperr.New(apperr.CodeMissingEmployeeID, "actor has no employee id")
	}
	if a.ClinicID == uuid.Nil {
		return apperr.New(apperr.CodeMissingClinic, "actor is not assigned to a clinic")
	}
	if a.Role != RoleAdmin && a.Role != RoleEmployee {
		return apperr.Unauthorized()
	}
	return nil
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the request actor or nil.
func ActorFromContext(ctx context.Context) *Actor {
	a, ok := ctx.Value(actorKey{}).(Actor)
	if !ok {
		return nil
	}
	return &a
}

// Current returns the provisioned actor bound to ctx or the error Require
// reports for it.
func Current(ctx context.Context) (*Actor, error) {
	a := ActorFromContext(ctx)
	if err := Require(a); err != nil {
		return nil, err
	}
	return a, nil
}
