package idp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// authClient is the subset of *auth.Client used by FirebaseProvider.
type authClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

type FirebaseProvider struct {
	client authClient
}

// NewFirebaseProvider initialises a Firebase app for projectID. credentials
// may be a file path, inline JSON, or base64-encoded JSON; empty uses
// application default credentials.
func NewFirebaseProvider(ctx context.Context, projectID, credentials string) (*FirebaseProvider, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, credentialOptions(credentials)...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseProvider{client: client}, nil
}

func credentialOptions(cred string) []option.ClientOption {
	if cred == "" {
		return nil
	}
	if strings.HasPrefix(strings.TrimSpace(cred), "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cred))}
	}
	if decoded, err := base64.StdEncoding.DecodeString(cred); err == nil && strings.HasPrefix(strings.TrimSpace(string(decoded)), "{") {
		return []option.ClientOption{option.WithCredentialsJSON(decoded)}
	}
	return []option.ClientOption{option.WithCredentialsFile(cred)}
}

// Invite creates an account without a password and returns a
// password setup link. Re-inviting an existing email returns the existing
// account with a fresh link.
func (p *FirebaseProvider) Invite(ctx context.Context, email, displayName string) (*Invitation, error) {
	inv := &Invitation{}
	user, err := p.client.CreateUser(ctx, (&auth.UserToCreate{}).
		Email(email).
		DisplayName(displayName).
		EmailVerified(false))
	switch {
	case err == nil:
		inv.UID = user.UID
	case auth.IsEmailAlreadyExists(err):
		existing, err := p.client.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("lookup existing account: %w", err)
		}
		inv.UID = existing.UID
		inv.Existing = true
	default:
		return nil, fmt.Errorf("create account: %w", err)
	}

	link, err := p.client.PasswordResetLink(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("generate setup link: %w", err)
	}
	inv.SetupLink = link
	return inv, nil
}

func (p *FirebaseProvider) SetPassword(ctx context.Context, email, password string) error {
	uid, err := p.uid(ctx, email)
	if err != nil {
		return err
	}
	if _, err := p.client.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Password(password)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (p *FirebaseProvider) SetEnabled(ctx context.Context, email string, enabled bool) error {
	uid, err := p.uid(ctx, email)
	if err != nil {
		return err
	}
	if _, err := p.client.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Disabled(!enabled)); err != nil {
		return fmt.Errorf("update account state: %w", err)
	}
	return nil
}

func (p *FirebaseProvider) uid(ctx context.Context, email string) (string, error) {
	user, err := p.client.GetUserByEmail(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}
	return user.UID, nil
}
