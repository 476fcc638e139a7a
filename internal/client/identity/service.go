package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Options struct {
	Secret      []byte
	SessionTTL  time.Duration
	RecentLogin time.Duration

	// FederatedSecrets maps provider name (google.com, github.com) to the
	// secret its ID tokens are signed with.
	FederatedSecrets map[string]string

	MaxFailedAttempts int
	AttemptRefill     time.Duration

	Challenger Challenger
	Sender     VerificationSender
	Now        func() time.Time
}

type Service struct {
	repo        *backend.Handle[Repository]
	tokens      *TokenIssuer
	federated   *FederatedVerifier
	challenger  Challenger
	sender      VerificationSender
	limiter     *attemptLimiter
	recentLogin time.Duration
	now         func() time.Time
	newID       func() string
	logger      logging.Logger
}

func NewService(repo *backend.Handle[Repository], opts Options, logger logging.Logger) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	recent := opts.RecentLogin
	if recent <= 0 {
		recent = 5 * time.Minute
	}
	return &Service{
		repo:        repo,
		tokens:      NewTokenIssuer(opts.Secret, opts.SessionTTL, now),
		federated:   NewFederatedVerifier(opts.FederatedSecrets, now),
		challenger:  opts.Challenger,
		sender:      opts.Sender,
		limiter:     newAttemptLimiter(opts.MaxFailedAttempts, opts.AttemptRefill, now),
		recentLogin: recent,
		now:         now,
		newID:       uuid.NewString,
		logger:      logger,
	}
}

// SupportsProvider reports whether federated sign-in with provider is configured.
func (s *Service) SupportsProvider(provider string) bool {
	return s.federated.Supports(provider)
}

func (s *Service) newSession(r Record, authTime time.Time) (*Session, error) {
	tok, err := s.tokens.IssueSession(r.ID, r.Provider, authTime)
	if err != nil {
		return nil, err
	}
	return &Session{
		UserID:            r.ID,
		Email:             r.Email,
		Provider:          r.Provider,
		FederatedProvider: r.FederatedProvider,
		Token:             tok,
		AuthTime:          authTime.Truncate(time.Second),
	}, nil
}

// SignUp creates a password identity and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	repo, err := s.repo.Get()
	if err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	r := Record{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		Provider:     ProviderPassword,
		CreatedAt:    s.now(),
	}
	if err := repo.Create(ctx, r); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, ErrEmailAlreadyInUse
		}
		return nil, err
	}
	s.logger.Info(ctx, "identity created", "user", r.ID)
	return s.newSession(r, s.now())
}

// SignIn authenticates with email and password. Unknown emails and wrong
// passwords both return ErrInvalidCredential and count against the limiter.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	repo, err := s.repo.Get()
	if err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	key := "signin:" + email
	if err := s.limiter.check(key); err != nil {
		return nil, err
	}

	r, err := repo.FindByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		s.limiter.fail(key)
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if r.Provider != ProviderPassword {
		return nil, ErrInvalidCredential
	}
	ok, err := checkPassword(r.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		s.limiter.fail(key)
		return nil, ErrInvalidCredential
	}
	s.limiter.reset(key)
	return s.newSession(r, s.now())
}

// SignInFederated runs the provider challenge and signs in, creating the
// identity on first use. created reports whether a new identity was made.
func (s *Service) SignInFederated(ctx context.Context, provider string) (sess *Session, created bool, err error) {
	repo, err := s.repo.Get()
	if err != nil {
		return nil, false, err
	}
	claims, err := s.challenge(ctx, provider)
	if err != nil {
		return nil, false, err
	}

	r, err := repo.FindBySubject(ctx, provider, claims.Subject)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrNotFound):
		r = Record{
			ID:                s.newID(),
			Email:             NormalizeEmail(claims.Email),
			Provider:          ProviderFederated,
			FederatedProvider: provider,
			Subject:           claims.Subject,
			EmailVerified:     true,
			CreatedAt:         s.now(),
		}
		if err := repo.Create(ctx, r); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				return nil, false, ErrEmailAlreadyInUse
			}
			return nil, false, err
		}
		created = true
		s.logger.Info(ctx, "federated identity created", "user", r.ID, "provider", provider)
	default:
		return nil, false, err
	}

	sess, err = s.newSession(r, s.now())
	return sess, created, err
}

func (s *Service) challenge(ctx context.Context, provider string) (*FederatedClaims, error) {
	if !s.federated.Supports(provider) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	if s.challenger == nil {
		return nil, ErrChallengeFailed
	}
	idToken, err := s.challenger.Challenge(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChallengeFailed, err)
	}
	return s.federated.Verify(provider, idToken)
}

// EmailVerified reloads the identity and reports its verification flag.
func (s *Service) EmailVerified(ctx context.Context, sess *Session) (bool, error) {
	r, err := s.record(ctx, sess)
	if err != nil {
		return false, err
	}
	return r.EmailVerified, nil
}

// SendEmailVerification issues a verification token and hands it to the sender.
func (s *Service) SendEmailVerification(ctx context.Context, sess *Session) error {
	if !sess.Active() {
		return ErrSignedOut
	}
	if s.sender == nil {
		return errors.New("no verification sender configured")
	}
	tok, err := s.tokens.IssueVerification(sess.UserID)
	if err != nil {
		return err
	}
	return s.sender.SendVerification(ctx, sess.Email, tok)
}

// ConfirmEmail marks the identity named by a verification token as verified.
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	repo, err := s.repo.Get()
	if err != nil {
		return err
	}
	claims, err := s.tokens.Parse(token, purposeVerifyMail)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if err := repo.MarkEmailVerified(ctx, claims.Subject); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, sess *Session) (Record, error) {
	if !sess.Active() {
		return Record{}, ErrSignedOut
	}
	repo, err := s.repo.Get()
	if err != nil {
		return Record{}, err
	}
	r, err := repo.FindByID(ctx, sess.UserID)
	if errors.Is(err, common.ErrNotFound) {
		return Record{}, ErrUserNotFound
	}
	return r, err
}

// ReauthenticateWithPassword proves the session owner knows the password and
// refreshes the session's auth time.
func (s *Service) ReauthenticateWithPassword(ctx context.Context, sess *Session, password string) error {
	r, err := s.record(ctx, sess)
	if err != nil {
		return err
	}
	key := "reauth:" + r.ID
	if err := s.limiter.check(key); err != nil {
		return err
	}
	if r.Provider != ProviderPassword {
		return ErrInvalidCredential
	}
	if r.Email != sess.Email {
		return ErrUserMismatch
	}
	ok, err := checkPassword(r.PasswordHash, password)
	if err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	if !ok {
		s.limiter.fail(key)
		return ErrWrongPassword
	}
	s.limiter.reset(key)
	return s.refresh(sess, r)
}

// ReauthenticateFederated repeats the provider challenge for the session's
// federated identity.
func (s *Service) ReauthenticateFederated(ctx context.Context, sess *Session) error {
	r, err := s.record(ctx, sess)
	if err != nil {
		return err
	}
	if r.Provider != ProviderFederated {
		return ErrInvalidCredential
	}
	claims, err := s.challenge(ctx, r.FederatedProvider)
	if err != nil {
		return err
	}
	if claims.Subject != r.Subject {
		return ErrUserMismatch
	}
	return s.refresh(sess, r)
}

func (s *Service) refresh(sess *Session, r Record) error {
	fresh, err := s.newSession(r, s.now())
	if err != nil {
		return err
	}
	*sess = *fresh
	return nil
}

// DeleteIdentity removes the session's identity. It requires the session to
// have authenticated within the recent-login window.
func (s *Service) DeleteIdentity(ctx context.Context, sess *Session) error {
	if !sess.Active() {
		return ErrSignedOut
	}
	repo, err := s.repo.Get()
	if err != nil {
		return err
	}
	claims, err := s.tokens.Parse(sess.Token, purposeSession)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrRequiresRecentLogin
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if claims.Subject != sess.UserID {
		return ErrUserMismatch
	}
	if s.now().Sub(time.Unix(claims.AuthTime, 0)) > s.recentLogin {
		return ErrRequiresRecentLogin
	}

	if err := repo.Delete(ctx, sess.UserID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info(ctx, "identity deleted", "user", sess.UserID)
	return nil
}

// SignOut clears the session token.
func (s *Service) SignOut(_ context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	sess.Token = ""
	return nil
}

// LogSender writes verification tokens to the log. It stands in for a mail
// gateway in local setups.
type LogSender struct {
	Logger logging.Logger
}

func (l LogSender) SendVerification(ctx context.Context, email, token string) error {
	l.Logger.Info(ctx, "email verification token issued", "email", email, "token", token)
	return nil
}
