// Package cleanup deletes the signed-in user's own messages that fell out of
// the retention window. It is best-effort housekeeping: every failure is
// logged and absorbed, nothing is returned to the chat flow.
package cleanup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/retention"
	"github.com/dmitrijs2005/gophchat/internal/client/tasks"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"golang.org/x/sync/errgroup"
)

type MarkerStore interface {
	LastCleanup(ctx context.Context) (time.Time, bool, error)
	SetLastCleanup(ctx context.Context, at time.Time) error
}

type MessageStore interface {
	FindStale(ctx context.Context, q retention.Stale) ([]models.Message, error)
	DeleteOwned(ctx context.Context, id, authorID string) error
}

// Report describes one pass. Skipped passes touch nothing but the marker read.
type Report struct {
	Skipped       bool
	Reason        string
	Matched       int
	Deleted       int
	Failed        int
	MarkerWritten bool
}

type Options struct {
	// Interval is the minimum time between passes on this device.
	Interval    time.Duration
	Concurrency int
	Now         func() time.Time
}

type Scheduler struct {
	marker      MarkerStore
	messages    *backend.Handle[MessageStore]
	runner      *tasks.Runner
	interval    time.Duration
	concurrency int
	now         func() time.Time
	logger      logging.Logger

	mu      sync.Mutex
	started map[string]bool
}

func NewScheduler(marker MarkerStore, messages *backend.Handle[MessageStore], runner *tasks.Runner, opts Options, logger logging.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		marker:      marker,
		messages:    messages,
		runner:      runner,
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
		now:         opts.Now,
		logger:      logger.With("component", "cleanup"),
		started:     make(map[string]bool),
	}
}

// Start runs a pass for userID in the background, once per scheduler
// lifetime for each user. It returns false when the pass was already started.
func (s *Scheduler) Start(ctx context.Context, userID string) bool {
	s.mu.Lock()
	if s.started[userID] {
		s.mu.Unlock()
		return false
	}
	s.started[userID] = true
	s.mu.Unlock()

	s.runner.Quiet(ctx, "retention cleanup", func(ctx context.Context) error {
		rep := s.Run(ctx, userID)
		s.logger.Info(ctx, "cleanup pass finished",
			"user", userID, "skipped", rep.Skipped, "reason", rep.Reason,
			"matched", rep.Matched, "deleted", rep.Deleted, "failed", rep.Failed)
		return nil
	})
	return true
}

// Run performs one pass synchronously.
func (s *Scheduler) Run(ctx context.Context, userID string) Report {
	log := s.logger.With("user", userID)
	if userID == "" {
		return Report{Skipped: true, Reason: "no user"}
	}
	now := s.now()

	last, ok, err := s.marker.LastCleanup(ctx)
	if err != nil {
		log.Warn(ctx, "failed to read cleanup marker", "error", err)
		return Report{Skipped: true, Reason: "marker unreadable"}
	}
	if ok && last.After(now) {
		// clock moved back; the marker cannot be trusted
		log.Warn(ctx, "cleanup marker is in the future, ignoring it", "last", last)
		ok = false
	}
	if ok && now.Sub(last) < s.interval {
		log.Debug(ctx, "cleanup ran recently", "last", last)
		return Report{Skipped: true, Reason: "ran recently"}
	}

	store, err := s.messages.Get()
	if err != nil {
		log.Warn(ctx, "message store not ready", "error", err)
		return Report{Skipped: true, Reason: "not ready"}
	}

	q := retention.StaleFor(userID, now)
	stale, err := store.FindStale(ctx, q)
	if err != nil {
		log.Warn(ctx, "stale message query failed", "error", err)
		return Report{Skipped: true, Reason: "query failed"}
	}

	rep := Report{Matched: len(stale)}
	var deleted, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, m := range stale {
		if !q.Matches(m) {
			log.Warn(ctx, "store returned a message outside the stale set", "id", m.ID, "author", m.AuthorID)
			failed.Add(1)
			continue
		}
		g.Go(func() error {
			err := store.DeleteOwned(ctx, m.ID, userID)
			switch {
			case err == nil, errors.Is(err, common.ErrNotFound):
				deleted.Add(1)
			default:
				failed.Add(1)
				log.Warn(ctx, "failed to delete stale message", "id", m.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	rep.Deleted = int(deleted.Load())
	rep.Failed = int(failed.Load())

	if err := s.marker.SetLastCleanup(ctx, now); err != nil {
		log.Warn(ctx, "failed to write cleanup marker", "error", err)
	} else {
		rep.MarkerWritten = true
	}
	return rep
}
