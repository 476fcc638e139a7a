package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/client/attachments"
	"github.com/dmitrijs2005/gophchat/internal/client/feed"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/client/projector"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

// Show prints the current message window and resets the new-message count.
func (a *App) Show(ctx context.Context) error {
	a.mu.Lock()
	msgs, users, sess := a.messages, a.users, a.session
	a.unseen = 0
	a.mu.Unlock()

	switch msgs.Status {
	case feed.StatusNotReady:
		fmt.Fprintln(a.out, "Connecting to the chat backend...")
	case feed.StatusLoading:
		fmt.Fprintln(a.out, "Loading messages...")
	case feed.StatusFailed:
		fmt.Fprintf(a.out, "Messages are unavailable (%s), retrying\n", notify.Describe(common.KindOf(msgs.Err)))
	case feed.StatusReady:
		if len(msgs.Items) == 0 {
			fmt.Fprintln(a.out, "No messages yet. Say hello!")
			return nil
		}
		renderFeed(a.out, projector.Project(msgs.Items, users.Items, sess.UserID, a.deps.Format))
	}
	return nil
}

func (a *App) Users(ctx context.Context) error {
	a.mu.Lock()
	users, sess := a.users, a.session
	a.mu.Unlock()

	if users.Status != feed.StatusReady {
		fmt.Fprintf(a.out, "Users directory is %s\n", users.Status)
		return nil
	}
	fallback := a.deps.Format.FallbackName
	if fallback == "" {
		fallback = projector.DefaultFallback
	}
	renderUsers(a.out, users.Items, sess.UserID, fallback)
	return nil
}

// Send posts a text message. Without text a multi-line prompt is shown.
func (a *App) Send(ctx context.Context, text string) error {
	if text == "" {
		t, err := GetMultiline(a.reader, "Type your message", a.out)
		if err != nil {
			return err
		}
		text = t
	}
	return a.deps.Chat.SendText(ctx, a.currentSession(), text)
}

// Attach starts uploading the file at path in the background. Only one
// upload runs at a time; the outcome is reported as a notification.
func (a *App) Attach(ctx context.Context, kind models.MediaKind, path string) error {
	if a.deps.Uploads.Busy() {
		return attachments.ErrBusy
	}
	if path == "" {
		p, err := getSimpleText(a.reader, fmt.Sprintf("Path to the %s", kind), a.out)
		if err != nil {
			return err
		}
		path = p
	}
	f, fh, err := attachments.OpenFile(path)
	if err != nil {
		return err
	}
	if _, err := attachments.Validate(f, kind, a.limits()); err != nil {
		_ = fh.Close()
		return err
	}

	userID := a.currentSession().UserID
	fmt.Fprintf(a.out, "Uploading %s...\n", f.Name)
	a.uploads.Add(1)
	go func() {
		defer a.uploads.Done()
		defer fh.Close()
		job, err := a.deps.Uploads.Send(ctx, userID, f, kind)
		if err != nil {
			a.deps.Notes.Notify(ctx, notify.FromError("Upload "+f.Name, err))
			return
		}
		a.deps.Notes.Notify(ctx, notify.Notification{
			Level:   notify.LevelInfo,
			Title:   "Upload " + job.FileName,
			Message: fmt.Sprintf("sent %s (%d bytes)", job.Kind, job.SizeBytes),
		})
	}()
	return nil
}

func (a *App) limits() attachments.Limits {
	if a.deps.Limits == (attachments.Limits{}) {
		return attachments.DefaultLimits
	}
	return a.deps.Limits
}

func (a *App) Avatar(ctx context.Context, url string) error {
	if url == "" {
		u, err := getSimpleText(a.reader, "Avatar URL", a.out)
		if err != nil {
			return err
		}
		url = u
	}
	if err := a.deps.Chat.ChangeAvatar(ctx, a.currentSession(), url); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Avatar updated")
	return nil
}
