package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophchat/internal/client/account"
	"github.com/dmitrijs2005/gophchat/internal/client/attachments"
	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/client/feed"
	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/client/projector"
	"github.com/dmitrijs2005/gophchat/internal/client/services"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

type Uploader interface {
	Send(ctx context.Context, userID string, f attachments.File, kind models.MediaKind) (models.UploadJob, error)
	Busy() bool
}

type CleanupStarter interface {
	Start(ctx context.Context, userID string) bool
}

// Deps are the collaborators of an App.
type Deps struct {
	Session  services.SessionService
	Chat     services.ChatService
	Feed     *feed.Manager
	Uploads  Uploader
	Limits   attachments.Limits
	Cleanup  CleanupStarter
	Auth     account.Authenticator
	Profiles *backend.Handle[account.ProfileStore]
	Notes    *notify.ChanSink
	Format   projector.Format
	Logger   logging.Logger
}

type App struct {
	deps   Deps
	reader *bufio.Reader
	out    io.Writer
	logger logging.Logger

	uploads sync.WaitGroup

	mu       sync.Mutex
	session  *identity.Session
	messages feed.Snapshot[models.Message]
	users    feed.Snapshot[models.User]
	seen     map[string]struct{}
	loaded   bool
	unseen   int
	stopFeed func()
}

// NewApp builds an App reading commands from in and writing to out. in is
// shared with any PromptChallenger so both consume the same buffered input.
func NewApp(d Deps, in *bufio.Reader, out io.Writer) *App {
	return &App{
		deps:   d,
		reader: in,
		out:    out,
		logger: d.Logger.With("component", "cli"),
	}
}

// Run shows the REPL until the user exits or input ends, then closes the App.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to gophchat (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
	a.Close(ctx)
}

// Close signs out a signed-in user and waits for running uploads. It is
// safe to call more than once.
func (a *App) Close(ctx context.Context) {
	if a.isSignedIn() {
		if err := a.SignOut(ctx); err != nil {
			a.logger.Warn(ctx, "sign out on exit failed", "error", err)
		}
	}
	a.uploads.Wait()
	a.flushNotes()
}

func (a *App) isSignedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Active()
}

func (a *App) currentSession() *identity.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// status is shown in the prompt: the signed-in email, the feed state and
// the number of messages that arrived since the feed was last shown.
func (a *App) status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.session.Active() {
		return ""
	}
	s := a.session.Email
	if a.messages.Status != feed.StatusReady {
		s += " " + a.messages.Status.String()
	}
	if a.unseen > 0 {
		s += fmt.Sprintf(" %d new", a.unseen)
	}
	return "(" + s + ")"
}

func (a *App) flushNotes() {
	if a.deps.Notes == nil {
		return
	}
	for _, n := range a.deps.Notes.Drain() {
		fmt.Fprintf(a.out, "[%s] %s\n", n.Level, n)
	}
}

// signedIn opens the live feeds for sess and kicks off the retention pass.
func (a *App) signedIn(ctx context.Context, sess *identity.Session) {
	a.mu.Lock()
	a.session = sess
	a.seen = map[string]struct{}{}
	a.loaded = false
	a.unseen = 0
	a.mu.Unlock()

	a.startFeeds(ctx)
	if a.deps.Cleanup != nil {
		a.deps.Cleanup.Start(ctx, sess.UserID)
	}
}

// endSession leaves the authenticated views. It does not talk to the
// identity provider.
func (a *App) endSession() {
	a.mu.Lock()
	stop := a.stopFeed
	a.stopFeed = nil
	a.session = nil
	a.messages = feed.Snapshot[models.Message]{}
	a.users = feed.Snapshot[models.User]{}
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (a *App) startFeeds(ctx context.Context) {
	if a.deps.Feed == nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	msgs := a.deps.Feed.Messages(ctx)
	users := a.deps.Feed.Users(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for snap := range msgs.Updates() {
			a.setMessages(snap)
		}
	}()
	go func() {
		defer wg.Done()
		for snap := range users.Updates() {
			a.mu.Lock()
			a.users = snap
			a.mu.Unlock()
		}
	}()

	a.mu.Lock()
	a.stopFeed = func() {
		cancel()
		msgs.Unsubscribe()
		users.Unsubscribe()
		wg.Wait()
	}
	a.mu.Unlock()
}

// setMessages stores snap and counts messages by others that were not in the
// previous ready snapshot. The first ready snapshot is the backlog.
func (a *App) setMessages(snap feed.Snapshot[models.Message]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = snap
	if snap.Status != feed.StatusReady || a.session == nil {
		return
	}

	seen := make(map[string]struct{}, len(snap.Items))
	for _, m := range snap.Items {
		seen[m.ID] = struct{}{}
		if _, ok := a.seen[m.ID]; ok || !a.loaded || m.IsOwnedBy(a.session.UserID) {
			continue
		}
		a.unseen++
	}
	a.seen = seen
	a.loaded = true
}
