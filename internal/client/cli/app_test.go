package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/account"
	"github.com/dmitrijs2005/gophchat/internal/client/attachments"
	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/client/feed"
	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/client/projector"
	"github.com/dmitrijs2005/gophchat/internal/client/retention"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeSession struct {
	SignInErr  error
	Remembered string

	SignedInEmail string
	SignedInPass  string
	Provider      string
	Token         string
	SignOuts      int
	Resent        int
	Forgotten     int
}

func (f *fakeSession) SignUp(_ context.Context, name, email, password string) (string, error) {
	f.SignedInEmail, f.SignedInPass = email, password
	return "u-new", nil
}

func (f *fakeSession) SignIn(_ context.Context, email, password string) (*identity.Session, error) {
	f.SignedInEmail, f.SignedInPass = email, password
	if f.SignInErr != nil {
		return nil, f.SignInErr
	}
	return &identity.Session{UserID: "u1", Email: email, Provider: identity.ProviderPassword, Token: "t"}, nil
}

func (f *fakeSession) SignInFederated(_ context.Context, provider string) (*identity.Session, error) {
	f.Provider = provider
	return &identity.Session{UserID: "u1", Email: "fed@example.com", Provider: identity.ProviderFederated,
		FederatedProvider: provider, Token: "t"}, nil
}

func (f *fakeSession) ConfirmEmail(_ context.Context, token string) error {
	f.Token = token
	return nil
}

func (f *fakeSession) ResendVerification(_ context.Context, email, password string) error {
	f.Resent++
	return nil
}

func (f *fakeSession) SignOut(_ context.Context, sess *identity.Session) error {
	f.SignOuts++
	return nil
}

func (f *fakeSession) LastEmail(context.Context) (string, error) { return f.Remembered, nil }

func (f *fakeSession) Forget(context.Context) error {
	f.Forgotten++
	f.Remembered = ""
	return nil
}

type fakeChat struct {
	Texts   []string
	Avatars []string
}

func (f *fakeChat) SendText(_ context.Context, _ *identity.Session, text string) error {
	f.Texts = append(f.Texts, text)
	return nil
}

func (f *fakeChat) ChangeAvatar(_ context.Context, _ *identity.Session, url string) error {
	f.Avatars = append(f.Avatars, url)
	return nil
}

type fakeUploader struct {
	mu     sync.Mutex
	busy   bool
	err    error
	UserID string
	Files  []attachments.File
}

func (f *fakeUploader) Send(_ context.Context, userID string, file attachments.File, kind models.MediaKind) (models.UploadJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UserID = userID
	f.Files = append(f.Files, file)
	return models.UploadJob{FileName: file.Name, Kind: kind, SizeBytes: file.Size, Valid: f.err == nil}, f.err
}

func (f *fakeUploader) Busy() bool { return f.busy }

type fakeCleanup struct{ Users []string }

func (f *fakeCleanup) Start(_ context.Context, userID string) bool {
	f.Users = append(f.Users, userID)
	return true
}

type fakeSource struct {
	msgs  []models.Message
	users []models.User
}

func (f *fakeSource) FindSince(context.Context, retention.Window) ([]models.Message, error) {
	return append([]models.Message(nil), f.msgs...), nil
}

func (f *fakeSource) FindAll(context.Context) ([]models.User, error) { return f.users, nil }

func (f *fakeSource) Watch(context.Context) (<-chan struct{}, error) {
	return make(chan struct{}), nil
}

type fakeAccountAuth struct {
	Password  string
	Passwords []string
	SignOuts  int
	Deleted   bool
}

func (f *fakeAccountAuth) ReauthenticateWithPassword(_ context.Context, _ *identity.Session, password string) error {
	f.Passwords = append(f.Passwords, password)
	if password != f.Password {
		return identity.ErrWrongPassword
	}
	return nil
}

func (f *fakeAccountAuth) ReauthenticateFederated(context.Context, *identity.Session) error { return nil }

func (f *fakeAccountAuth) DeleteIdentity(context.Context, *identity.Session) error {
	f.Deleted = true
	return nil
}

func (f *fakeAccountAuth) SignOut(_ context.Context, sess *identity.Session) error {
	f.SignOuts++
	sess.Token = ""
	return nil
}

type fakeProfiles struct{ Deleted []string }

func (f *fakeProfiles) DeleteProfile(_ context.Context, id string) error {
	f.Deleted = append(f.Deleted, id)
	return nil
}

// ---- helpers ----

type fixture struct {
	app      *App
	out      *bytes.Buffer
	session  *fakeSession
	chat     *fakeChat
	uploads  *fakeUploader
	cleanup  *fakeCleanup
	source   *fakeSource
	auth     *fakeAccountAuth
	profiles *fakeProfiles
	notes    *notify.ChanSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Now()
	fx := &fixture{
		out:     &bytes.Buffer{},
		session: &fakeSession{},
		chat:    &fakeChat{},
		uploads: &fakeUploader{},
		cleanup: &fakeCleanup{},
		source: &fakeSource{
			msgs: []models.Message{
				{ID: "m1", AuthorID: "u2", Text: "hi all", Timestamp: now.Add(-time.Minute)},
				{ID: "m2", AuthorID: "u1", Text: "hello", Timestamp: now},
			},
			users: []models.User{
				{ID: "u1", Name: "Ann", Online: true},
				{ID: "u2", Name: "Bob"},
			},
		},
		auth:     &fakeAccountAuth{Password: "right"},
		profiles: &fakeProfiles{},
		notes:    notify.NewChanSink(16),
	}
	mgr := feed.NewManager(
		backend.Ready[feed.MessageSource]("messages", fx.source),
		backend.Ready[feed.UserSource]("users", fx.source),
		feed.Options{}, logging.Nop())

	fx.app = NewApp(Deps{
		Session:  fx.session,
		Chat:     fx.chat,
		Feed:     mgr,
		Uploads:  fx.uploads,
		Cleanup:  fx.cleanup,
		Auth:     fx.auth,
		Profiles: backend.Ready[account.ProfileStore]("profiles", fx.profiles),
		Notes:    fx.notes,
		Format:   projector.Format{Location: time.UTC},
		Logger:   logging.Nop(),
	}, bufio.NewReader(bytes.NewReader(nil)), fx.out)
	t.Cleanup(fx.app.endSession)
	return fx
}

func stubInputs(t *testing.T, texts []string, passwords []string) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if len(texts) == 0 {
			return "", io.EOF
		}
		s := texts[0]
		texts = texts[1:]
		return s, nil
	}
	getPassword = func(string, io.Writer) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, io.EOF
		}
		p := passwords[0]
		passwords = passwords[1:]
		return []byte(p), nil
	}
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

func (fx *fixture) signIn(t *testing.T) {
	t.Helper()
	stubInputs(t, []string{"ann@example.com"}, []string{"pw"})
	require.NoError(t, fx.app.SignIn(context.Background()))
	require.Eventually(t, func() bool {
		fx.app.mu.Lock()
		defer fx.app.mu.Unlock()
		return fx.app.messages.Status == feed.StatusReady && fx.app.users.Status == feed.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

// ---- tests ----

func TestSignIn_OpensFeedsAndStartsCleanup(t *testing.T) {
	fx := newFixture(t)
	fx.signIn(t)

	assert.True(t, fx.app.isSignedIn())
	assert.Equal(t, "ann@example.com", fx.session.SignedInEmail)
	assert.Equal(t, "pw", fx.session.SignedInPass)
	assert.Equal(t, []string{"u1"}, fx.cleanup.Users)
	assert.Equal(t, "(ann@example.com)", fx.app.status())

	fx.out.Reset()
	require.NoError(t, fx.app.Show(context.Background()))
	out := fx.out.String()
	assert.Contains(t, out, "Bob\n")
	assert.Contains(t, out, "hi all")
	assert.Contains(t, out, "Ann (you) *\n")
	assert.Contains(t, out, "hello")

	fx.out.Reset()
	require.NoError(t, fx.app.Users(context.Background()))
	assert.Equal(t, "* Ann (you)\n  Bob\n", fx.out.String())
}

func TestSignIn_DefaultsToLastEmail(t *testing.T) {
	fx := newFixture(t)
	fx.session.Remembered = "last@example.com"
	stubInputs(t, []string{""}, []string{"pw"})

	require.NoError(t, fx.app.SignIn(context.Background()))
	assert.Equal(t, "last@example.com", fx.session.SignedInEmail)
}

func TestSignIn_UnverifiedShowsHint(t *testing.T) {
	fx := newFixture(t)
	fx.session.SignInErr = identity.ErrEmailNotVerified
	stubInputs(t, []string{"ann@example.com"}, []string{"pw"})

	err := fx.app.SignIn(context.Background())
	assert.ErrorIs(t, err, identity.ErrEmailNotVerified)
	assert.False(t, fx.app.isSignedIn())
	assert.Contains(t, fx.out.String(), "confirm <token>")
	assert.Empty(t, fx.cleanup.Users)
}

func TestSignInWith_Federated(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.app.SignInWith(context.Background(), "github.com"))
	assert.Equal(t, "github.com", fx.session.Provider)
	assert.True(t, fx.app.isSignedIn())
}

func TestSignUpConfirmResend(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	stubInputs(t, []string{"Ann", "ann@example.com", "tok-1", "ann@example.com"}, []string{"long password", "long password"})
	require.NoError(t, fx.app.SignUp(ctx))
	assert.False(t, fx.app.isSignedIn())

	require.NoError(t, fx.app.Confirm(ctx, ""))
	assert.Equal(t, "tok-1", fx.session.Token)

	require.NoError(t, fx.app.Resend(ctx))
	assert.Equal(t, 1, fx.session.Resent)
}

func TestSetMessages_CountsNewMessagesByOthers(t *testing.T) {
	fx := newFixture(t)
	fx.signIn(t)

	base := []models.Message{{ID: "m1", AuthorID: "u2", Text: "a"}}
	fx.app.setMessages(feed.Snapshot[models.Message]{Status: feed.StatusReady, Items: base})
	assert.Equal(t, "(ann@example.com)", fx.app.status())

	more := append(base,
		models.Message{ID: "m3", AuthorID: "u2", Text: "b"},
		models.Message{ID: "m4", AuthorID: "u1", Text: "mine"},
	)
	fx.app.setMessages(feed.Snapshot[models.Message]{Status: feed.StatusReady, Items: more})
	assert.Equal(t, "(ann@example.com 1 new)", fx.app.status())

	fx.app.setMessages(feed.Snapshot[models.Message]{Status: feed.StatusLoading})
	assert.Equal(t, "(ann@example.com loading 1 new)", fx.app.status())

	require.NoError(t, fx.app.Show(context.Background()))
	assert.Equal(t, "(ann@example.com loading)", fx.app.status())
}

func TestShow_States(t *testing.T) {
	fx := newFixture(t)
	fx.signIn(t)

	tests := []struct {
		snap feed.Snapshot[models.Message]
		want string
	}{
		{feed.Snapshot[models.Message]{Status: feed.StatusNotReady}, "Connecting to the chat backend...\n"},
		{feed.Snapshot[models.Message]{Status: feed.StatusLoading}, "Loading messages...\n"},
		{feed.Snapshot[models.Message]{Status: feed.StatusReady}, "No messages yet. Say hello!\n"},
	}
	for _, tt := range tests {
		fx.app.setMessages(tt.snap)
		fx.out.Reset()
		require.NoError(t, fx.app.Show(context.Background()))
		assert.Equal(t, tt.want, fx.out.String())
	}
}

func TestSendAndAvatar(t *testing.T) {
	fx := newFixture(t)
	fx.signIn(t)
	ctx := context.Background()

	require.NoError(t, fx.app.Send(ctx, "hey"))
	require.NoError(t, fx.app.Avatar(ctx, "https://a.example.com/me.png"))
	assert.Equal(t, []string{"hey"}, fx.chat.Texts)
	assert.Equal(t, []string{"https://a.example.com/me.png"}, fx.chat.Avatars)
}

func writePNG(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "beach photo.png")
	require.NoError(t, os.WriteFile(p, []byte("\x89PNG\r\n\x1a\nrest"), 0o600))
	return p
}

func TestAttach_UploadsInBackground(t *testing.T) {
	fx := newFixture(t)
	fx.signIn(t)

	require.NoError(t, fx.app.Attach(context.Background(), models.MediaImage, writePNG(t)))
	fx.app.uploads.Wait()

	require.Len(t, fx.uploads.Files, 1)
	assert.Equal(t, "u1", fx.uploads.UserID)
	assert.Equal(t, "beach photo.png", fx.uploads.Files[0].Name)

	notes := fx.notes.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelInfo, notes[0].Level)
	assert.Equal(t, "Upload beach photo.png", notes[0].Title)
}

func TestAttach_FailureIsNotified(t *testing.T) {
	fx := newFixture(t)
	fx.signIn(t)
	fx.uploads.err = attachments.ErrUploadQuotaExceeded

	require.NoError(t, fx.app.Attach(context.Background(), models.MediaImage, writePNG(t)))
	fx.app.uploads.Wait()

	notes := fx.notes.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelError, notes[0].Level)
}

func TestAttach_Rejections(t *testing.T) {
	fx := newFixture(t)
	fx.signIn(t)
	ctx := context.Background()

	assert.ErrorIs(t, fx.app.Attach(ctx, models.MediaVideo, writePNG(t)), attachments.ErrUnsupportedFormat)

	fx.uploads.busy = true
	assert.ErrorIs(t, fx.app.Attach(ctx, models.MediaImage, writePNG(t)), attachments.ErrBusy)
	assert.Empty(t, fx.uploads.Files)
}

func TestDeleteAccount_WrongPasswordThenDone(t *testing.T) {
	fx := newFixture(t)
	fx.signIn(t)
	stubInputs(t, []string{"DELETE"}, []string{"wrong", "right"})

	require.NoError(t, fx.app.DeleteAccount(context.Background()))

	assert.Equal(t, []string{"wrong", "right"}, fx.auth.Passwords)
	assert.Equal(t, []string{"u1"}, fx.profiles.Deleted)
	assert.True(t, fx.auth.Deleted)
	assert.False(t, fx.app.isSignedIn())
	assert.Equal(t, 1, fx.session.Forgotten)
	out := fx.out.String()
	assert.Contains(t, out, "Attempt 1 failed")
	assert.Contains(t, out, "Your account has been deleted")
}

func TestDeleteAccount_Cancelled(t *testing.T) {
	t.Run("wrong word", func(t *testing.T) {
		fx := newFixture(t)
		fx.signIn(t)
		stubInputs(t, []string{"no"}, nil)

		require.NoError(t, fx.app.DeleteAccount(context.Background()))
		assert.Contains(t, fx.out.String(), "Cancelled")
		assert.True(t, fx.app.isSignedIn())
		assert.Empty(t, fx.profiles.Deleted)
		assert.Zero(t, fx.session.Forgotten)
	})

	t.Run("empty password", func(t *testing.T) {
		fx := newFixture(t)
		fx.signIn(t)
		stubInputs(t, []string{"delete"}, []string{""})

		require.NoError(t, fx.app.DeleteAccount(context.Background()))
		assert.Empty(t, fx.auth.Passwords)
		assert.True(t, fx.app.isSignedIn())
	})
}

func TestSignOut_StopsFeeds(t *testing.T) {
	fx := newFixture(t)
	fx.signIn(t)

	require.NoError(t, fx.app.SignOut(context.Background()))
	assert.False(t, fx.app.isSignedIn())
	assert.Equal(t, 1, fx.session.SignOuts)
	assert.Equal(t, "", fx.app.status())
}

func TestRun_SignsOutOnExit(t *testing.T) {
	capturePrints(t)
	fx := newFixture(t)
	fx.signIn(t)
	fx.app.reader = rdr("exit\n")

	fx.app.Run(context.Background())
	assert.Equal(t, 1, fx.session.SignOuts)
}
