package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/client/account"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

const deleteConfirmWord = "delete"

// DeleteAccount walks the user through account deletion. Password accounts
// are asked for the password until it is accepted or the user enters an
// empty one. Outcomes are reported through the notification channel.
func (a *App) DeleteAccount(ctx context.Context) error {
	d, err := account.Start(a.currentSession(), account.Deps{
		Auth:     a.deps.Auth,
		Profiles: a.deps.Profiles,
		Sink:     a.deps.Notes,
		OnDone:   a.accountDeleted,
		Logger:   a.deps.Logger,
	})
	if err != nil {
		return err
	}
	if err := d.Request(); err != nil {
		return err
	}

	answer, err := getSimpleText(a.reader,
		fmt.Sprintf("This permanently deletes your account and profile. Type %q to confirm", deleteConfirmWord), a.out)
	if err != nil || !strings.EqualFold(answer, deleteConfirmWord) {
		_ = d.Cancel()
		fmt.Fprintln(a.out, "Cancelled")
		return err
	}

	for {
		var secret string
		if d.NeedsSecret() {
			pw, err := getPassword("Enter your password to continue", a.out)
			if err != nil {
				_ = d.Cancel()
				return err
			}
			secret = string(pw)
			common.WipeByteArray(pw)
			if secret == "" {
				_ = d.Cancel()
				fmt.Fprintln(a.out, "Cancelled")
				return nil
			}
		}

		_ = d.Confirm(ctx, secret)
		st := d.Status()
		a.flushNotes()

		switch {
		case st.State == account.StateDone:
			fmt.Fprintln(a.out, "Your account has been deleted. Goodbye!")
			return nil
		case st.State == account.StateReauthenticating && d.NeedsSecret():
			if st.Attempts > 0 {
				fmt.Fprintf(a.out, "Attempt %d failed, try again or press Enter to cancel\n", st.Attempts)
			}
		default:
			return nil
		}
	}
}

// accountDeleted leaves the authenticated views and drops the remembered
// email, which no longer belongs to an account.
func (a *App) accountDeleted(ctx context.Context) {
	a.endSession()
	if err := a.deps.Session.Forget(ctx); err != nil {
		a.logger.Warn(ctx, "failed to forget deleted account", "error", err)
	}
}
