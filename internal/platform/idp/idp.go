// Package idp is the AuthProviderPort: the identity provider that owns
// employee sign-in accounts. The workflow only calls the port; provider
// specifics live in the adapters.
package idp

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrAccountNotFound is returned when no account exists for an email.
var ErrAccountNotFound = errors.New("identity account not found")

// Invitation is the result of inviting an employee.
type Invitation struct {
	UID string `json:"uid"`
	// SetupLink lets the employee choose a password. Delivery is the caller's concern.
	SetupLink string `json:"setupLink,omitempty"`
	Existing  bool   `json:"existing"`
}

type AuthProvider interface {
	Invite(ctx context.Context, email, displayName string) (*Invitation, error)
	SetPassword(ctx context.Context, email, password string) error
	SetEnabled(ctx context.Context, email string, enabled bool) error
}

// LogProvider records account operations without an external provider.
// Used in development when Firebase is not configured.
type LogProvider struct {
	Logger zerolog.Logger
}

func (p *LogProvider) Invite(_ context.Context, email, displayName string) (*Invitation, error) {
	p.Logger.Info().Str("email", email).Str("display_name", displayName).Msg("idp invite (log only)")
	return &Invitation{UID: email}, nil
}

func (p *LogProvider) SetPassword(_ context.Context, email, _ string) error {
	p.Logger.Info().Str("email", email).Msg("idp set password (log only)")
	return nil
}

func (p *LogProvider) SetEnabled(_ context.Context, email string, enabled bool) error {
	p.Logger.Info().Str("email", email).Bool("enabled", enabled).Msg("idp set enabled (log only)")
	return nil
}
