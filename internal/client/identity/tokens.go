package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer            = "gophchat"
	purposeSession    = "session"
	purposeVerifyMail = "verify_email"
)

type sessionClaims struct {
	Purpose  string `json:"purpose"`
	Provider string `json:"provider,omitempty"`
	AuthTime int64  `json:"auth_time"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session and verification tokens (HS256).
type TokenIssuer struct {
	secret     []byte
	sessionTTL time.Duration
	verifyTTL  time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret []byte, sessionTTL time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, sessionTTL: sessionTTL, verifyTTL: 24 * time.Hour, now: now}
}

func (t *TokenIssuer) sign(c sessionClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	s, err := tok.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// IssueSession returns a session token for userID authenticated at authTime.
func (t *TokenIssuer) IssueSession(userID string, provider ProviderKind, authTime time.Time) (string, error) {
	now := t.now()
	return t.sign(sessionClaims{
		Purpose:  purposeSession,
		Provider: string(provider),
		AuthTime: authTime.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.sessionTTL)),
		},
	})
}

// IssueVerification returns a short-lived email-verification token.
func (t *TokenIssuer) IssueVerification(userID string) (string, error) {
	now := t.now()
	return t.sign(sessionClaims{
		Purpose: purposeVerifyMail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.verifyTTL)),
		},
	})
}

// Parse verifies the token and its purpose. An expired token returns an
// error wrapping jwt.ErrTokenExpired.
func (t *TokenIssuer) Parse(token, purpose string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("unexpected token purpose %q", claims.Purpose)
	}
	return claims, nil
}

// FederatedClaims are the fields read from a provider's ID token.
type FederatedClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// FederatedVerifier checks ID tokens issued by known providers. Each provider
// signs with its own shared secret; the iss claim must name the provider.
type FederatedVerifier struct {
	secrets map[string][]byte
	now     func() time.Time
}

func NewFederatedVerifier(secrets map[string]string, now func() time.Time) *FederatedVerifier {
	if now == nil {
		now = time.Now
	}
	m := make(map[string][]byte, len(secrets))
	for p, s := range secrets {
		if s != "" {
			m[p] = []byte(s)
		}
	}
	return &FederatedVerifier{secrets: m, now: now}
}

// Supports reports whether provider is configured.
func (v *FederatedVerifier) Supports(provider string) bool {
	if v == nil {
		return false
	}
	_, ok := v.secrets[provider]
	return ok
}

// Verify returns the claims of a valid ID token from provider.
func (v *FederatedVerifier) Verify(provider, idToken string) (*FederatedClaims, error) {
	secret, ok := v.secrets[provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	claims := &FederatedClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(provider),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, errors.New("missing subject"))
	}
	return claims, nil
}

// SignFederated mints an ID token as provider would. Used by local tooling
// and tests that stand in for a real provider.
func SignFederated(provider, secret, subject, email string, now time.Time, ttl time.Duration) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, FederatedClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    provider,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return tok.SignedString([]byte(secret))
}
