// Package services contains the application services the CLI drives.
// This file defines the session service: sign-up, sign-in (password and
// federated), email confirmation, sign-out and the locally remembered account.
package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophchat/internal/client/tasks"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

const MinNameLen = 2

var ErrInvalidName = fmt.Errorf("%w: name must be at least %d characters", common.ErrValidation, MinNameLen)

// SessionService defines the account session operations for the CLI.
//
// Contract:
//   - SignUp: create the identity and the public profile, send the
//     verification token, and leave the user signed out until verified.
//   - SignIn: authenticate; unverified accounts are signed out again and
//     get identity.ErrEmailNotVerified.
//   - SignInFederated: run the provider challenge; first use creates the profile.
//   - ConfirmEmail: consume a verification token.
//   - ResendVerification: issue a fresh token for an unverified account;
//     the credentials are checked and the user stays signed out.
//   - SignOut: mark the user offline (best effort) and end the session.
//   - LastEmail: the email of the last successful sign-in on this device.
//   - Forget: drop the remembered account from this device.
type SessionService interface {
	SignUp(ctx context.Context, name, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	SignInFederated(ctx context.Context, provider string) (*identity.Session, error)
	ConfirmEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email, password string) error
	SignOut(ctx context.Context, sess *identity.Session) error
	LastEmail(ctx context.Context) (string, error)
	Forget(ctx context.Context) error
}

// Authenticator is the part of the identity provider the session flows use.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (*identity.Session, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	SignInFederated(ctx context.Context, provider string) (*identity.Session, bool, error)
	SendEmailVerification(ctx context.Context, sess *identity.Session) error
	ConfirmEmail(ctx context.Context, token string) error
	EmailVerified(ctx context.Context, sess *identity.Session) (bool, error)
	SignOut(ctx context.Context, sess *identity.Session) error
}

type ProfileStore interface {
	CreateProfile(ctx context.Context, u models.User) error
	SetOnline(ctx context.Context, id string, online bool) error
	UpdateAvatar(ctx context.Context, id, url string) error
}

type sessionService struct {
	auth     Authenticator
	profiles *backend.Handle[ProfileStore]
	meta     metadata.Repository
	runner   *tasks.Runner
	avatars  []string
	logger   logging.Logger
}

// NewSessionService constructs a SessionService. avatars is the pool a new
// profile's picture is drawn from; it may be empty.
func NewSessionService(auth Authenticator, profiles *backend.Handle[ProfileStore], meta metadata.Repository,
	runner *tasks.Runner, avatars []string, logger logging.Logger) SessionService {
	return &sessionService{
		auth:     auth,
		profiles: profiles,
		meta:     meta,
		runner:   runner,
		avatars:  avatars,
		logger:   logger.With("component", "session"),
	}
}

func (s *sessionService) randomAvatar() string {
	if len(s.avatars) == 0 {
		return ""
	}
	return s.avatars[rand.IntN(len(s.avatars))]
}

func (s *sessionService) createProfile(ctx context.Context, u models.User) {
	s.runner.Go(ctx, "Create profile", func(ctx context.Context) error {
		p, err := s.profiles.Get()
		if err != nil {
			return err
		}
		return p.CreateProfile(ctx, u)
	})
}

func (s *sessionService) setOnline(ctx context.Context, userID string, online bool) error {
	p, err := s.profiles.Get()
	if err != nil {
		return err
	}
	return p.SetOnline(ctx, userID, online)
}

// SignUp returns the new user's id.
func (s *sessionService) SignUp(ctx context.Context, name, email, password string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < MinNameLen {
		return "", ErrInvalidName
	}

	sess, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return "", err
	}

	s.createProfile(ctx, models.User{
		ID:        sess.UserID,
		Name:      name,
		Email:     sess.Email,
		AvatarURL: s.randomAvatar(),
		Online:    true,
	})
	verify := *sess
	s.runner.Go(ctx, "Send verification email", func(ctx context.Context) error {
		return s.auth.SendEmailVerification(ctx, &verify)
	})

	if err := s.auth.SignOut(ctx, sess); err != nil {
		s.logger.Warn(ctx, "sign out after sign-up failed", "error", err)
	}
	s.remember(ctx, sess)
	return sess.UserID, nil
}

func (s *sessionService) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	verified, err := s.auth.EmailVerified(ctx, sess)
	if err != nil {
		_ = s.auth.SignOut(ctx, sess)
		return nil, fmt.Errorf("check email verification: %w", err)
	}
	if !verified {
		_ = s.auth.SignOut(ctx, sess)
		return nil, identity.ErrEmailNotVerified
	}

	s.signedIn(ctx, sess)
	return sess, nil
}

func (s *sessionService) SignInFederated(ctx context.Context, provider string) (*identity.Session, error) {
	sess, created, err := s.auth.SignInFederated(ctx, provider)
	if err != nil {
		return nil, err
	}
	if created {
		s.createProfile(ctx, models.User{
			ID:        sess.UserID,
			Name:      models.User{Email: sess.Email}.DisplayName("New user"),
			Email:     sess.Email,
			AvatarURL: s.randomAvatar(),
			Online:    true,
		})
	}
	s.signedIn(ctx, sess)
	return sess, nil
}

func (s *sessionService) signedIn(ctx context.Context, sess *identity.Session) {
	s.remember(ctx, sess)
	userID := sess.UserID
	s.runner.Quiet(ctx, "mark online", func(ctx context.Context) error {
		return s.setOnline(ctx, userID, true)
	})
	s.logger.Info(ctx, "signed in", "user", sess.UserID, "provider", sess.Provider)
}

func (s *sessionService) remember(ctx context.Context, sess *identity.Session) {
	provider := string(sess.Provider)
	if sess.FederatedProvider != "" {
		provider = sess.FederatedProvider
	}
	err := s.meta.Update(ctx, func(ctx context.Context, tx metadata.Repository) error {
		if sess.Email == "" {
			if err := tx.Delete(ctx, common.LastEmailKey); err != nil {
				return err
			}
			return tx.Set(ctx, common.LastProviderKey, provider)
		}
		return tx.SetMany(ctx, map[string]string{
			common.LastEmailKey:    sess.Email,
			common.LastProviderKey: provider,
		})
	})
	if err != nil {
		s.logger.Warn(ctx, "failed to remember account", "error", err)
	}
}

func (s *sessionService) ConfirmEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty token", common.ErrValidation)
	}
	return s.auth.ConfirmEmail(ctx, token)
}

func (s *sessionService) ResendVerification(ctx context.Context, email, password string) error {
	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	defer func() { _ = s.auth.SignOut(ctx, sess) }()

	verified, err := s.auth.EmailVerified(ctx, sess)
	if err != nil {
		return fmt.Errorf("check email verification: %w", err)
	}
	if verified {
		return nil
	}
	return s.auth.SendEmailVerification(ctx, sess)
}

// SignOut tolerates an already ended session.
func (s *sessionService) SignOut(ctx context.Context, sess *identity.Session) error {
	if !sess.Active() {
		return nil
	}
	if err := s.setOnline(ctx, sess.UserID, false); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.logger.Warn(ctx, "failed to mark user offline", "user", sess.UserID, "error", err)
	}
	return s.auth.SignOut(ctx, sess)
}

func (s *sessionService) LastEmail(ctx context.Context) (string, error) {
	v, _, err := s.meta.Get(ctx, common.LastEmailKey)
	return v, err
}

func (s *sessionService) Forget(ctx context.Context) error {
	return s.meta.Update(ctx, func(ctx context.Context, tx metadata.Repository) error {
		return tx.Delete(ctx, common.LastEmailKey, common.LastProviderKey)
	})
}
