// Package identity is the authentication provider of the client: password and
// federated sign-in, reauthentication before sensitive operations, identity
// deletion and email verification. Identity records live in the document
// store next to (but separate from) the public profile records.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
)

// ProviderKind is the primary sign-in method of an account.
type ProviderKind string

const (
	ProviderPassword  ProviderKind = "password"
	ProviderFederated ProviderKind = "federated"
)

// Federated identity providers accepted for sign-in and reauthentication.
const (
	ProviderGoogle = "google.com"
	ProviderGitHub = "github.com"
)

// Record is the stored identity. Subject is the federated provider's user id.
type Record struct {
	ID                string
	Email             string
	PasswordHash      string
	Provider          ProviderKind
	FederatedProvider string
	Subject           string
	EmailVerified     bool
	CreatedAt         time.Time
}

// Repository stores identity records. Lookups of missing records return an
// error wrapping common.ErrNotFound; duplicate emails wrap common.ErrAlreadyExists.
type Repository interface {
	Create(ctx context.Context, r Record) error
	FindByID(ctx context.Context, id string) (Record, error)
	FindByEmail(ctx context.Context, email string) (Record, error)
	FindBySubject(ctx context.Context, provider, subject string) (Record, error)
	MarkEmailVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Session is the signed-in state. AuthTime is when the user last proved
// their identity; it is also embedded in Token.
type Session struct {
	UserID            string
	Email             string
	Provider          ProviderKind
	FederatedProvider string
	Token             string
	AuthTime          time.Time
}

// Active reports whether s still carries a token.
func (s *Session) Active() bool {
	return s != nil && s.Token != ""
}

// Challenger runs the federated challenge with the user (a browser popup in a
// GUI, a pasted token in the CLI) and returns the provider's ID token.
type Challenger interface {
	Challenge(ctx context.Context, provider string) (string, error)
}

// VerificationSender delivers an email-verification token to the user.
type VerificationSender interface {
	SendVerification(ctx context.Context, email, token string) error
}

var (
	ErrInvalidCredential   = fmt.Errorf("%w: invalid credential", common.ErrUnauthorized)
	ErrWrongPassword       = fmt.Errorf("%w: wrong password", common.ErrUnauthorized)
	ErrUserMismatch        = fmt.Errorf("%w: credential belongs to another user", common.ErrUnauthorized)
	ErrEmailNotVerified    = fmt.Errorf("%w: email not verified", common.ErrUnauthorized)
	ErrSignedOut           = fmt.Errorf("%w: no active session", common.ErrUnauthorized)
	ErrChallengeFailed     = fmt.Errorf("%w: federated challenge failed", common.ErrUnauthorized)
	ErrRequiresRecentLogin = fmt.Errorf("%w: recent login required", common.ErrRequiresReauth)
	ErrUserNotFound        = fmt.Errorf("%w: user not found", common.ErrNotFound)
	ErrEmailAlreadyInUse   = fmt.Errorf("%w: email already in use", common.ErrValidation)
	ErrInvalidEmail        = fmt.Errorf("%w: invalid email", common.ErrValidation)
	ErrWeakPassword        = fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinPasswordLen)
	ErrUnsupportedProvider = fmt.Errorf("%w: unsupported identity provider", common.ErrValidation)
)

// RateLimitError is returned after too many failed attempts.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return common.ErrTooManyRequests
}

func (e *RateLimitError) RetryAfterHint() time.Duration {
	return e.RetryAfter
}
