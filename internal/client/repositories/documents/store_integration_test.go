package documents

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/retention"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// nopFeed counts publishes and never signals.
type nopFeed struct{ published []string }

func (f *nopFeed) Watch(ctx context.Context, topic string) (<-chan struct{}, error) {
	return make(chan struct{}), nil
}

func (f *nopFeed) Publish(_ context.Context, topic string) error {
	f.published = append(f.published, topic)
	return nil
}

func connect(t *testing.T) *Client {
	t.Helper()
	// require MONGODB_URI set externally for integration tests
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := Connect(ctx, uri, "gophchat_test")
	require.NoError(t, err)
	require.NoError(t, c.Drop(ctx))
	require.NoError(t, c.EnsureIndexes(ctx))
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestMessagesStore_AppendWindowStaleDelete(t *testing.T) {
	c := connect(t)
	ctx := context.Background()
	feed := &nopFeed{}
	s := NewMessagesStore(c.Messages(), feed, logging.Nop())

	saved, err := s.Append(ctx, models.Message{AuthorID: "me", Text: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.False(t, saved.Timestamp.IsZero(), "server must assign timestamp")

	_, err = s.Append(ctx, models.Message{AuthorID: "me"})
	require.ErrorIs(t, err, common.ErrValidation)

	// back-date one own and one foreign message past the boundary
	old := time.Now().AddDate(-1, 0, 0)
	_, err = c.Messages().InsertMany(ctx, []any{
		messageDoc{ID: "old-own", AuthorID: "me", Text: "ancient", Timestamp: old},
		messageDoc{ID: "old-other", AuthorID: "you", Text: "ancient", Timestamp: old},
	})
	require.NoError(t, err)

	now := time.Now()
	visible, err := s.FindSince(ctx, retention.FeedWindow(now))
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, saved.ID, visible[0].ID)

	stale, err := s.FindStale(ctx, retention.StaleFor("me", now))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old-own", stale[0].ID)

	require.ErrorIs(t, s.DeleteOwned(ctx, "old-other", "me"), common.ErrNotFound)
	require.NoError(t, s.DeleteOwned(ctx, "old-own", "me"))

	stale, err = s.FindStale(ctx, retention.StaleFor("me", now))
	require.NoError(t, err)
	assert.Empty(t, stale)

	n, err := c.Messages().CountDocuments(ctx, bson.D{{Key: "_id", Value: "old-other"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "foreign message must survive")
	assert.NotEmpty(t, feed.published)
}

func TestUsersStore_ProfileLifecycle(t *testing.T) {
	c := connect(t)
	ctx := context.Background()
	s := NewUsersStore(c.Users(), &nopFeed{}, logging.Nop())

	require.NoError(t, s.CreateProfile(ctx, models.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Online: true}))
	require.NoError(t, s.UpdateAvatar(ctx, "u1", "https://cdn/a.png"))
	require.NoError(t, s.SetOnline(ctx, "u1", false))

	u, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", u.AvatarURL)
	assert.False(t, u.Online)

	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteProfile(ctx, "u1"))
	require.ErrorIs(t, s.DeleteProfile(ctx, "u1"), common.ErrNotFound)
	require.ErrorIs(t, s.UpdateAvatar(ctx, "u1", "x"), common.ErrNotFound)
}

func TestIdentitiesStore(t *testing.T) {
	c := connect(t)
	ctx := context.Background()
	s := NewIdentitiesStore(c.Identities())

	rec := identity.Record{ID: "i1", Email: "a@example.com", PasswordHash: "h", Provider: identity.ProviderPassword, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}
	require.NoError(t, s.Create(ctx, rec))
	require.ErrorIs(t, s.Create(ctx, identity.Record{ID: "i2", Email: "a@example.com"}), common.ErrAlreadyExists)

	got, err := s.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "i1", got.ID)

	require.NoError(t, s.MarkEmailVerified(ctx, "i1"))
	got, err = s.FindByID(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)

	require.NoError(t, s.Delete(ctx, "i1"))
	_, err = s.FindByID(ctx, "i1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestStreamFeed_SignalsOnInsert(t *testing.T) {
	c := connect(t)
	if os.Getenv("MONGODB_CHANGE_STREAMS") == "" {
		t.Skip("MONGODB_CHANGE_STREAMS not set; change streams need a replica set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	feed := NewStreamFeed(c.Database(), logging.Nop())
	ch, err := feed.Watch(ctx, common.MessagesCollection)
	require.NoError(t, err)

	s := NewMessagesStore(c.Messages(), feed, logging.Nop())
	_, err = s.Append(ctx, models.Message{AuthorID: "me", Text: "ping"})
	require.NoError(t, err)

	select {
	case <-ch:
	case <-ctx.Done():
		t.Fatal("no change signal received")
	}
}
