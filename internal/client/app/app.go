// Package app wires the gophchat client: local storage, the identity
// provider, the document backend, object storage, and the interactive CLI.
// The CLI starts at once; the backend connects in the background and every
// component reports "not ready" until it does.
package app

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/account"
	"github.com/dmitrijs2005/gophchat/internal/client/attachments"
	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/client/cleanup"
	"github.com/dmitrijs2005/gophchat/internal/client/cli"
	"github.com/dmitrijs2005/gophchat/internal/client/config"
	"github.com/dmitrijs2005/gophchat/internal/client/feed"
	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/client/localdb"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/client/projector"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/documents"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/marker"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/signals"
	"github.com/dmitrijs2005/gophchat/internal/client/services"
	"github.com/dmitrijs2005/gophchat/internal/client/storage"
	"github.com/dmitrijs2005/gophchat/internal/client/tasks"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

const maxConnectBackoff = time.Minute

// exitFn is a test seam for os.Exit.
var exitFn = os.Exit

// handles are the backend services, one per consumer interface. All of them
// are set together once the backend is connected.
type handles struct {
	identities *backend.Handle[identity.Repository]
	messages   *backend.Handle[feed.MessageSource]
	users      *backend.Handle[feed.UserSource]
	stale      *backend.Handle[cleanup.MessageStore]
	appender   *backend.Handle[attachments.Appender]
	chat       *backend.Handle[services.MessageAppender]
	profiles   *backend.Handle[services.ProfileStore]
	deletions  *backend.Handle[account.ProfileStore]
	objects    *backend.Handle[attachments.ObjectStore]
}

func newHandles() handles {
	return handles{
		identities: backend.NewHandle[identity.Repository]("identities"),
		messages:   backend.NewHandle[feed.MessageSource]("messages"),
		users:      backend.NewHandle[feed.UserSource]("users"),
		stale:      backend.NewHandle[cleanup.MessageStore]("messages"),
		appender:   backend.NewHandle[attachments.Appender]("messages"),
		chat:       backend.NewHandle[services.MessageAppender]("messages"),
		profiles:   backend.NewHandle[services.ProfileStore]("users"),
		deletions:  backend.NewHandle[account.ProfileStore]("users"),
		objects:    backend.NewHandle[attachments.ObjectStore]("object store"),
	}
}

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	notes  *notify.ChanSink
	runner *tasks.Runner
	h      handles
	cli    *cli.App

	wg       sync.WaitGroup
	mu       sync.Mutex
	closers  []func(context.Context) error
	shutdown sync.Once
}

// NewApp opens local storage and builds every component. Nothing touches
// the network until Run.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer, logOut io.Writer) (*App, error) {
	logger := logging.New(c.LogLevel, logOut)

	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	db, err := localdb.Open(ctx, c.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("local database init error: %w", err)
	}
	meta := metadata.NewSQLiteRepository(db)

	a := &App{
		config: c,
		logger: logger,
		db:     db,
		notes:  notify.NewChanSink(64),
		h:      newHandles(),
	}
	sink := notify.Multi{a.notes, notify.LogSink{Logger: logger.With("component", "notify")}}
	a.runner = tasks.NewRunner(sink, logger, c.TaskTimeout)

	reader := bufio.NewReader(in)
	auth := identity.NewService(a.h.identities, identity.Options{
		Secret:           []byte(c.SessionSecret),
		SessionTTL:       c.SessionTTL,
		RecentLogin:      c.RecentLoginWindow,
		FederatedSecrets: c.FederatedSecrets(),
		Challenger:       cli.NewPromptChallenger(reader, out),
		Sender:           identity.LogSender{Logger: logger.With("component", "mail")},
	}, logger.With("component", "identity"))

	feeds := feed.NewManager(a.h.messages, a.h.users, feed.Options{
		Recheck:    c.FeedRecheckInterval,
		RetryDelay: c.FeedRetryDelay,
	}, logger)

	scheduler := cleanup.NewScheduler(marker.NewStore(meta), a.h.stale, a.runner, cleanup.Options{
		Interval:    c.CleanupInterval,
		Concurrency: c.CleanupConcurrency,
	}, logger)

	limits := attachments.Limits{MaxImageBytes: c.MaxImageBytes, MaxVideoBytes: c.MaxVideoBytes}
	pipeline := attachments.NewPipeline(a.h.objects, a.h.appender, a.runner, limits, logger)

	a.cli = cli.NewApp(cli.Deps{
		Session:  services.NewSessionService(auth, a.h.profiles, meta, a.runner, c.Avatars, logger),
		Chat:     services.NewChatService(a.h.chat, a.h.profiles, a.runner),
		Feed:     feeds,
		Uploads:  pipeline,
		Limits:   limits,
		Cleanup:  scheduler,
		Auth:     auth,
		Profiles: a.h.deletions,
		Notes:    a.notes,
		Format:   projector.Format{Layout: c.TimeLayout, Location: loc},
		Logger:   logger,
	}, reader, out)

	return a, nil
}

func (a *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		select {
		case <-sigs:
		case <-ctx.Done():
			signal.Stop(sigs)
			return
		}
		// The REPL may be blocked reading stdin, so shut down from here.
		cancelFunc()
		a.Close()
		exitFn(0)
	}()
}

// Run connects the backend in the background and runs the REPL until the
// user exits or a termination signal arrives.
func (a *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.logger.Info(ctx, "starting gophchat", "change_source", a.config.ChangeSource, "object_store", a.config.ObjectStore)
	a.initSignalHandler(ctx, cancelFunc)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.connect(ctx)
	}()

	a.cli.Run(ctx)
	cancelFunc()
	a.Close()
}

// Close signs out, waits for background work and releases every resource.
func (a *App) Close() {
	a.shutdown.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()

		a.cli.Close(ctx)
		a.wg.Wait()
		a.runner.Wait()

		a.mu.Lock()
		closers := a.closers
		a.closers = nil
		a.mu.Unlock()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				a.logger.Warn(ctx, "close failed", "error", err)
			}
		}
		if err := a.db.Close(); err != nil {
			a.logger.Warn(ctx, "close local database failed", "error", err)
		}
	})
}

func (a *App) shutdownTimeout() time.Duration {
	if a.config.TaskTimeout > 0 {
		return a.config.TaskTimeout
	}
	return 10 * time.Second
}

func (a *App) addCloser(fn func(context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

// connect retries with exponential backoff until the backend is reachable or
// ctx ends. Only the first failure is shown to the user.
func (a *App) connect(ctx context.Context) {
	delay := time.Second
	for attempt := 1; ; attempt++ {
		err := a.connectOnce(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn(ctx, "backend connection failed", "attempt", attempt, "retry_in", delay, "error", err)
		if attempt == 1 {
			a.notes.Notify(ctx, notify.FromError("Connect", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(2*delay, maxConnectBackoff)
	}
}

func (a *App) connectOnce(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()

	client, err := documents.Connect(cctx, a.config.MongoURI, a.config.MongoDatabase)
	if err != nil {
		return err
	}

	var changes documents.ChangeFeed
	switch a.config.ChangeSource {
	case config.ChangeSourceRedis:
		rf, err := signals.Connect(cctx, a.config.RedisURL, a.logger)
		if err != nil {
			_ = client.Close(context.Background())
			return err
		}
		a.addCloser(func(context.Context) error { return rf.Close() })
		changes = rf
	default:
		changes = documents.NewStreamFeed(client.Database(), a.logger)
	}
	a.addCloser(client.Close)

	if err := client.EnsureIndexes(cctx); err != nil {
		a.logger.Warn(ctx, "failed to ensure indexes", "error", err)
	}

	msgs := documents.NewMessagesStore(client.Messages(), changes, a.logger)
	users := documents.NewUsersStore(client.Users(), changes, a.logger)

	a.h.identities.Set(documents.NewIdentitiesStore(client.Identities()))
	a.h.messages.Set(msgs)
	a.h.stale.Set(msgs)
	a.h.appender.Set(msgs)
	a.h.chat.Set(msgs)
	a.h.users.Set(users)
	a.h.profiles.Set(users)
	a.h.deletions.Set(users)
	a.logger.Info(ctx, "backend connected", "database", a.config.MongoDatabase)

	objects, err := newObjectStore(cctx, a.config)
	if err != nil {
		// Chat works without attachments; uploads keep reporting not ready.
		a.logger.Error(ctx, "object store unavailable", "store", a.config.ObjectStore, "error", err)
		a.notes.Notify(ctx, notify.FromError("Attachments", err))
		return nil
	}
	a.h.objects.Set(objects)
	return nil
}

func newObjectStore(ctx context.Context, c *config.Config) (attachments.ObjectStore, error) {
	switch c.ObjectStore {
	case config.ObjectStoreS3:
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:        c.S3.Region,
			Bucket:        c.S3.Bucket,
			Endpoint:      c.S3.Endpoint,
			AccessKey:     c.S3.AccessKey,
			SecretKey:     c.S3.SecretKey,
			PublicBaseURL: c.S3.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ObjectStoreCloudinary:
		s, err := storage.NewCloudinaryStore(storage.CloudinaryConfig{
			CloudName: c.Cloudinary.CloudName,
			APIKey:    c.Cloudinary.APIKey,
			APISecret: c.Cloudinary.APISecret,
			Folder:    c.Cloudinary.Folder,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown object store %q", c.ObjectStore)
	}
}
