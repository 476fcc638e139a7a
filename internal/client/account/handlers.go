package account

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/client/identity"
)

// reauthHandler is the provider-specific part of the flow.
type reauthHandler interface {
	kind() identity.ProviderKind
	// upfront reports whether to reauthenticate before the first delete.
	upfront() bool
	needsSecret() bool
	reauthenticate(ctx context.Context, auth Authenticator, sess *identity.Session, secret string) error
	// rejected places d after the provider refused the credential.
	// Called with d.mu held.
	rejected(d *Deletion, countAttempt bool)
}

var handlers = map[identity.ProviderKind]reauthHandler{
	identity.ProviderPassword:  passwordHandler{},
	identity.ProviderFederated: federatedHandler{},
}

// passwordHandler always asks for the password again before deleting.
// A rejected password keeps the machine in StateReauthenticating.
type passwordHandler struct{}

func (passwordHandler) kind() identity.ProviderKind { return identity.ProviderPassword }
func (passwordHandler) upfront() bool               { return true }
func (passwordHandler) needsSecret() bool           { return true }

func (passwordHandler) reauthenticate(ctx context.Context, auth Authenticator, sess *identity.Session, secret string) error {
	if secret == "" {
		return ErrPasswordRequired
	}
	return auth.ReauthenticateWithPassword(ctx, sess, secret)
}

func (passwordHandler) rejected(d *Deletion, countAttempt bool) {
	d.state = StateReauthenticating
	if countAttempt {
		d.attempts++
	}
}

// federatedHandler tries the deletion first and only runs the provider
// challenge when the session is too old. A failed challenge ends the flow;
// trying again needs a fresh request.
type federatedHandler struct{}

func (federatedHandler) kind() identity.ProviderKind { return identity.ProviderFederated }
func (federatedHandler) upfront() bool               { return false }
func (federatedHandler) needsSecret() bool           { return false }

func (federatedHandler) reauthenticate(ctx context.Context, auth Authenticator, sess *identity.Session, _ string) error {
	return auth.ReauthenticateFederated(ctx, sess)
}

func (federatedHandler) rejected(d *Deletion, countAttempt bool) {
	d.state = StateIdle
	if countAttempt {
		d.attempts++
	}
}
