// Package account runs the account deletion flow: confirm intent,
// reauthenticate with the account's provider, delete the profile record and
// then the identity, and finally sign out.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

type State int

const (
	StateIdle State = iota
	StateConfirmIntent
	StateReauthenticating
	StateDeleting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfirmIntent:
		return "confirm-intent"
	case StateReauthenticating:
		return "reauthenticating"
	case StateDeleting:
		return "deleting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrInvalidTransition = errors.New("invalid account deletion transition")
	ErrPasswordRequired  = fmt.Errorf("%w: password is required", common.ErrValidation)
)

const notifyTitle = "Delete account"

// Failure describes a terminal failure. RetryAfter is set for rate limits.
type Failure struct {
	Kind       common.Kind
	Message    string
	RetryAfter time.Duration
}

// Status is a point-in-time view of a deletion.
type Status struct {
	State          State
	Provider       identity.ProviderKind
	Attempts       int
	ReauthRequired bool
	Failure        *Failure
	Err            error
}

type Authenticator interface {
	ReauthenticateWithPassword(ctx context.Context, sess *identity.Session, password string) error
	ReauthenticateFederated(ctx context.Context, sess *identity.Session) error
	DeleteIdentity(ctx context.Context, sess *identity.Session) error
	SignOut(ctx context.Context, sess *identity.Session) error
}

type ProfileStore interface {
	DeleteProfile(ctx context.Context, id string) error
}

type Deps struct {
	Auth     Authenticator
	Profiles *backend.Handle[ProfileStore]
	Sink     notify.Sink
	// OnDone runs after the session was ended, to leave authenticated views.
	OnDone func(ctx context.Context)
	Logger logging.Logger
}

// Deletion is one account deletion attempt for the signed-in user.
type Deletion struct {
	sess    *identity.Session
	auth    Authenticator
	profile *backend.Handle[ProfileStore]
	handler reauthHandler
	sink    notify.Sink
	onDone  func(ctx context.Context)
	logger  logging.Logger

	mu             sync.Mutex
	state          State
	attempts       int
	reauthRequired bool
	busy           bool
	failure        *Failure
	lastErr        error
}

// Start creates a deletion in StateIdle for sess.
func Start(sess *identity.Session, d Deps) (*Deletion, error) {
	if !sess.Active() {
		return nil, identity.ErrSignedOut
	}
	h, ok := handlers[sess.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", identity.ErrUnsupportedProvider, sess.Provider)
	}
	onDone := d.OnDone
	if onDone == nil {
		onDone = func(context.Context) {}
	}
	return &Deletion{
		sess:    sess,
		auth:    d.Auth,
		profile: d.Profiles,
		handler: h,
		sink:    d.Sink,
		onDone:  onDone,
		logger:  d.Logger.With("component", "account", "user", sess.UserID),
		state:   StateIdle,
	}, nil
}

func (d *Deletion) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	var f *Failure
	if d.failure != nil {
		c := *d.failure
		f = &c
	}
	return Status{
		State:          d.state,
		Provider:       d.handler.kind(),
		Attempts:       d.attempts,
		ReauthRequired: d.reauthRequired,
		Failure:        f,
		Err:            d.lastErr,
	}
}

func (d *Deletion) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// NeedsSecret reports whether Confirm expects a password.
func (d *Deletion) NeedsSecret() bool {
	return d.handler.needsSecret()
}

// Request moves to StateConfirmIntent. It is allowed from Idle and Failed.
func (d *Deletion) Request() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy || (d.state != StateIdle && d.state != StateFailed) {
		return fmt.Errorf("%w: request in state %s", ErrInvalidTransition, d.state)
	}
	d.state = StateConfirmIntent
	d.failure = nil
	return nil
}

// Cancel abandons the flow. A deletion already under way cannot be cancelled.
func (d *Deletion) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy || d.state == StateDeleting || d.state == StateDone {
		return fmt.Errorf("%w: cancel in state %s", ErrInvalidTransition, d.state)
	}
	d.state = StateIdle
	return nil
}

// Confirm proceeds from StateConfirmIntent or StateReauthenticating. secret
// is the password for password accounts and ignored otherwise. The returned
// error is the classified failure of this step; Status tells where the
// machine landed.
func (d *Deletion) Confirm(ctx context.Context, secret string) error {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return fmt.Errorf("%w: deletion already in progress", ErrInvalidTransition)
	}
	switch d.state {
	case StateConfirmIntent:
		if d.handler.upfront() {
			d.state = StateReauthenticating
			d.reauthRequired = true
		}
	case StateReauthenticating:
	default:
		st := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: confirm in state %s", ErrInvalidTransition, st)
	}
	reauth := d.state == StateReauthenticating
	d.busy = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.busy = false
		d.mu.Unlock()
	}()

	if reauth {
		if err := d.reauthenticate(ctx, secret); err != nil {
			return err
		}
	}
	err := d.delete(ctx)
	if err != nil && common.KindOf(err) == common.KindRequiresReauth && !d.handler.needsSecret() {
		// The challenge needs no input from here, run it right away.
		if err := d.reauthenticate(ctx, secret); err != nil {
			return err
		}
		return d.delete(ctx)
	}
	return err
}

func (d *Deletion) reauthenticate(ctx context.Context, secret string) error {
	err := d.handler.reauthenticate(ctx, d.auth, d.sess, secret)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		d.lastErr = nil
		d.logger.Info(ctx, "reauthenticated")
		return nil
	}
	d.lastErr = err

	switch common.KindOf(err) {
	case common.KindValidation:
		d.handler.rejected(d, false)
	case common.KindUnauthorized:
		d.handler.rejected(d, true)
	case common.KindRequiresReauth:
		d.state = StateReauthenticating
	default:
		d.fail(ctx, err)
		return err
	}
	d.logger.Warn(ctx, "reauthentication rejected", "attempts", d.attempts, "error", err)
	d.notify(ctx, err)
	return err
}

func (d *Deletion) delete(ctx context.Context) error {
	d.mu.Lock()
	d.state = StateDeleting
	d.mu.Unlock()

	if err := d.deleteProfile(ctx); err != nil {
		return d.deleteFailed(ctx, "profile", err)
	}
	d.logger.Info(ctx, "profile deleted")

	err := d.auth.DeleteIdentity(ctx, d.sess)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return d.deleteFailed(ctx, "identity", err)
	}

	d.mu.Lock()
	d.state = StateDone
	d.lastErr = nil
	d.mu.Unlock()
	d.logger.Info(ctx, "account deleted")

	if err := d.auth.SignOut(ctx, d.sess); err != nil {
		d.logger.Warn(ctx, "sign out after deletion failed", "error", err)
	}
	if d.sink != nil {
		d.sink.Notify(ctx, notify.Notification{Level: notify.LevelInfo, Title: notifyTitle, Message: "your account has been deleted"})
	}
	d.onDone(ctx)
	return nil
}

func (d *Deletion) deleteProfile(ctx context.Context) error {
	store, err := d.profile.Get()
	if err != nil {
		return err
	}
	err = store.DeleteProfile(ctx, d.sess.UserID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	return err
}

func (d *Deletion) deleteFailed(ctx context.Context, step string, err error) error {
	err = fmt.Errorf("delete %s: %w", step, err)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = err

	switch common.KindOf(err) {
	case common.KindRequiresReauth:
		d.state = StateReauthenticating
		d.reauthRequired = true
		d.logger.Info(ctx, "deletion needs a recent login", "step", step)
		if d.handler.needsSecret() {
			d.notify(ctx, err)
		}
	case common.KindUnauthorized:
		d.state = StateReauthenticating
		d.attempts++
		d.logger.Warn(ctx, "deletion rejected", "step", step, "attempts", d.attempts, "error", err)
		d.notify(ctx, err)
	default:
		d.fail(ctx, err)
	}
	return err
}

// fail moves to StateFailed. Callers hold d.mu.
func (d *Deletion) fail(ctx context.Context, err error) {
	n := notify.FromError(notifyTitle, err)
	d.state = StateFailed
	d.failure = &Failure{Kind: n.Kind, Message: n.Message, RetryAfter: n.RetryAfter}
	if n.Kind == common.KindUnknown {
		d.logger.Error(ctx, "account deletion failed", "error", err)
	} else {
		d.logger.Warn(ctx, "account deletion failed", "kind", n.Kind, "error", err)
	}
	if d.sink != nil {
		d.sink.Notify(ctx, n)
	}
}

func (d *Deletion) notify(ctx context.Context, err error) {
	if d.sink != nil {
		d.sink.Notify(ctx, notify.FromError(notifyTitle, err))
	}
}
