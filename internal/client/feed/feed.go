// Package feed keeps live queries open against the document store: the
// bounded message window and the users directory. Each subscription delivers
// a sequence of snapshots until it is unsubscribed.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/retention"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

type Status int

const (
	// StatusNotReady means the backend handle is not available yet.
	StatusNotReady Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotReady:
		return "not ready"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is one delivery of a live query. Items is only meaningful when
// Status is StatusReady; an empty Items then means an empty room. Since is
// the window start for message snapshots and zero for users.
type Snapshot[E any] struct {
	Status Status
	Items  []E
	Since  time.Time
	Err    error
}

type MessageSource interface {
	FindSince(ctx context.Context, w retention.Window) ([]models.Message, error)
	Watch(ctx context.Context) (<-chan struct{}, error)
}

type UserSource interface {
	FindAll(ctx context.Context) ([]models.User, error)
	Watch(ctx context.Context) (<-chan struct{}, error)
}

var errStreamClosed = errors.New("change stream closed")

type Options struct {
	// Recheck is how often the message window is compared with the current
	// boundary. When the boundary day moves the query is re-created.
	Recheck time.Duration
	// RetryDelay is the pause before reopening a failed query.
	RetryDelay time.Duration
	Now        func() time.Time
}

type Manager struct {
	messages *backend.Handle[MessageSource]
	users    *backend.Handle[UserSource]
	recheck  time.Duration
	retry    time.Duration
	now      func() time.Time
	logger   logging.Logger
}

func NewManager(messages *backend.Handle[MessageSource], users *backend.Handle[UserSource], opts Options, logger logging.Logger) *Manager {
	if opts.Recheck <= 0 {
		opts.Recheck = time.Minute
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		messages: messages,
		users:    users,
		recheck:  opts.Recheck,
		retry:    opts.RetryDelay,
		now:      opts.Now,
		logger:   logger.With("component", "feed"),
	}
}

// Messages opens the live message window: timestamp >= Boundary(now),
// in the order the store returns. Records that fail validation are dropped.
func (m *Manager) Messages(ctx context.Context) *Subscription[models.Message] {
	q := &query[models.Message]{
		name:    "messages",
		ready:   m.messages.Done(),
		bounded: true,
		open: func() (watchFetch[models.Message], error) {
			src, err := m.messages.Get()
			if err != nil {
				return watchFetch[models.Message]{}, err
			}
			return watchFetch[models.Message]{
				watch: src.Watch,
				fetch: func(ctx context.Context, w retention.Window) ([]models.Message, error) {
					msgs, err := src.FindSince(ctx, w)
					if err != nil {
						return nil, err
					}
					return m.keepValid(ctx, w, msgs), nil
				},
			}, nil
		},
	}
	return start(ctx, m, q)
}

// Users opens the live users directory.
func (m *Manager) Users(ctx context.Context) *Subscription[models.User] {
	q := &query[models.User]{
		name:  "users",
		ready: m.users.Done(),
		open: func() (watchFetch[models.User], error) {
			src, err := m.users.Get()
			if err != nil {
				return watchFetch[models.User]{}, err
			}
			return watchFetch[models.User]{
				watch: src.Watch,
				fetch: func(ctx context.Context, _ retention.Window) ([]models.User, error) {
					return src.FindAll(ctx)
				},
			}, nil
		},
	}
	return start(ctx, m, q)
}

func (m *Manager) keepValid(ctx context.Context, w retention.Window, msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			m.logger.Warn(ctx, "skipping malformed message", "id", msg.ID, "error", err)
			continue
		}
		if !w.Contains(msg.Timestamp) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

type watchFetch[E any] struct {
	watch func(ctx context.Context) (<-chan struct{}, error)
	fetch func(ctx context.Context, w retention.Window) ([]E, error)
}

type query[E any] struct {
	name    string
	ready   <-chan struct{}
	bounded bool
	open    func() (watchFetch[E], error)
}

// Subscription is a live query. Updates yields snapshots, latest wins: a
// slow reader only ever sees the newest one. The channel is closed after
// Unsubscribe or when the parent context ends.
type Subscription[E any] struct {
	updates chan Snapshot[E]
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (s *Subscription[E]) Updates() <-chan Snapshot[E] {
	return s.updates
}

// Unsubscribe stops the query and waits for it to shut down.
func (s *Subscription[E]) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}

func (s *Subscription[E]) push(snap Snapshot[E]) {
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

func start[E any](ctx context.Context, m *Manager, q *query[E]) *Subscription[E] {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription[E]{
		updates: make(chan Snapshot[E], 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		defer close(sub.updates)
		run(ctx, m, sub, q)
	}()
	return sub
}

func run[E any](ctx context.Context, m *Manager, sub *Subscription[E], q *query[E]) {
	log := m.logger.With("query", q.name)
	for {
		wf, err := q.open()
		if err != nil {
			sub.push(Snapshot[E]{Status: StatusNotReady, Err: err})
			select {
			case <-ctx.Done():
				return
			case <-q.ready:
			}
			continue
		}

		sub.push(Snapshot[E]{Status: StatusLoading})
		err = session(ctx, m, sub, q, wf)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			log.Info(ctx, "retention boundary moved, re-creating query")
			continue
		}

		log.Warn(ctx, "live query failed", "error", err)
		sub.push(Snapshot[E]{Status: StatusFailed, Err: err})
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.retry):
		}
	}
}

// session runs one live query until it fails, the context ends, or (for the
// bounded message query) the boundary day moves, in which case it returns nil.
func session[E any](ctx context.Context, m *Manager, sub *Subscription[E], q *query[E], wf watchFetch[E]) error {
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var w retention.Window
	if q.bounded {
		w = retention.FeedWindow(m.now())
	}

	// Watch before the first fetch so no change between the two is lost.
	changes, err := wf.watch(qctx)
	if err != nil {
		return err
	}
	deliver := func() error {
		items, err := wf.fetch(qctx, w)
		if err != nil {
			return err
		}
		sub.push(Snapshot[E]{Status: StatusReady, Items: items, Since: w.Since})
		m.logger.Debug(qctx, "snapshot delivered", "query", q.name, "count", len(items))
		return nil
	}
	if err := deliver(); err != nil {
		return err
	}

	var tick <-chan time.Time
	if q.bounded {
		t := time.NewTicker(m.recheck)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return errStreamClosed
			}
			if err := deliver(); err != nil {
				return err
			}
		case <-tick:
			if !w.SameDay(retention.FeedWindow(m.now())) {
				return nil
			}
		}
	}
}
