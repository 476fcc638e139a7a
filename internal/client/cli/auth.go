package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// credentials asks for an email, offering the last used one as the
// default, and a password. The caller wipes the password.
func (a *App) credentials(ctx context.Context) (string, []byte, error) {
	prompt := "Enter email"
	last, err := a.deps.Session.LastEmail(ctx)
	if err != nil {
		a.logger.Warn(ctx, "failed to read last email", "error", err)
	}
	if last != "" {
		prompt += fmt.Sprintf(" [%s]", last)
	}
	email, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", nil, err
	}
	if email == "" {
		email = last
	}
	pw, err := getPassword("Enter password", a.out)
	if err != nil {
		return "", nil, err
	}
	return email, pw, nil
}

// SignUp creates an account. The user has to confirm the email before the
// first login.
func (a *App) SignUp(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter display name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	pw, err := getPassword("Choose a password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if _, err := a.deps.Session.SignUp(ctx, name, email, string(pw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account created. Check your email for the verification token, then run: confirm <token>")
	return nil
}

func (a *App) SignIn(ctx context.Context) error {
	email, pw, err := a.credentials(ctx)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	sess, err := a.deps.Session.SignIn(ctx, email, string(pw))
	if err != nil {
		if errors.Is(err, identity.ErrEmailNotVerified) {
			fmt.Fprintln(a.out, "Your email is not confirmed yet. Run: confirm <token>, or resend for a new token")
		}
		return err
	}
	a.signedIn(ctx, sess)
	fmt.Fprintf(a.out, "Welcome back, %s!\n", sess.Email)
	return nil
}

// SignInWith runs the federated challenge for provider.
func (a *App) SignInWith(ctx context.Context, provider string) error {
	sess, err := a.deps.Session.SignInFederated(ctx, provider)
	if err != nil {
		return err
	}
	a.signedIn(ctx, sess)
	fmt.Fprintf(a.out, "Signed in with %s as %s\n", provider, sess.Email)
	return nil
}

func (a *App) Confirm(ctx context.Context, token string) error {
	if token == "" {
		t, err := getSimpleText(a.reader, "Paste the verification token", a.out)
		if err != nil {
			return err
		}
		token = t
	}
	if err := a.deps.Session.ConfirmEmail(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Email confirmed, you can login now")
	return nil
}

func (a *App) Resend(ctx context.Context) error {
	email, pw, err := a.credentials(ctx)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.deps.Session.ResendVerification(ctx, email, string(pw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the email was not confirmed yet, a new token is on its way")
	return nil
}

func (a *App) SignOut(ctx context.Context) error {
	sess := a.currentSession()
	a.endSession()
	if err := a.deps.Session.SignOut(ctx, sess); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}
