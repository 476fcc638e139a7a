// Package notify is the user-facing notification channel. Components report
// failures of asynchronous work here instead of dropping them; the CLI drains
// the channel between prompts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type Notification struct {
	Level   Level
	Title   string
	Message string
	Kind    common.Kind
	// RetryAfter is set for rate-limit failures.
	RetryAfter time.Duration
}

func (n Notification) String() string {
	s := n.Title
	if n.Message != "" {
		s += ": " + n.Message
	}
	if n.RetryAfter > 0 {
		s += fmt.Sprintf(" (retry in %s)", n.RetryAfter.Round(time.Second))
	}
	return s
}

type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// retryAfterer is implemented by errors that carry a cooldown hint.
type retryAfterer interface {
	RetryAfterHint() time.Duration
}

// FromError builds an error notification for a failed action. The message is
// chosen by error kind; the raw error is not shown to the user.
func FromError(title string, err error) Notification {
	kind := common.KindOf(err)
	n := Notification{Level: LevelError, Title: title, Kind: kind, Message: Describe(kind)}

	var ra retryAfterer
	if errors.As(err, &ra) {
		n.RetryAfter = ra.RetryAfterHint()
	}
	if kind == common.KindValidation {
		n.Level = LevelWarn
		n.Message = err.Error()
	}
	return n
}

// Describe is the user-facing text for a kind.
func Describe(kind common.Kind) string {
	switch kind {
	case common.KindNotReady:
		return "still connecting, try again in a moment"
	case common.KindValidation:
		return "the input is not valid"
	case common.KindUnauthorized:
		return "please verify your account or sign in again"
	case common.KindRequiresReauth:
		return "please confirm your identity and try again"
	case common.KindQuotaExceeded:
		return "storage quota exceeded, try again later"
	case common.KindTooManyRequests:
		return "too many attempts, wait a little before trying again"
	case common.KindNetwork:
		return "network problem, check your connection and retry"
	case common.KindNotFound:
		return "the item no longer exists"
	default:
		return "something went wrong"
	}
}

// LogSink writes notifications to a logger.
type LogSink struct {
	Logger logging.Logger
}

func (s LogSink) Notify(ctx context.Context, n Notification) {
	args := []any{"title", n.Title, "kind", n.Kind.String()}
	switch n.Level {
	case LevelError:
		s.Logger.Error(ctx, n.Message, args...)
	case LevelWarn:
		s.Logger.Warn(ctx, n.Message, args...)
	default:
		s.Logger.Info(ctx, n.Message, args...)
	}
}

// ChanSink buffers notifications for a consumer. When the buffer is full the
// oldest entry is dropped so producers never block.
type ChanSink struct {
	ch chan Notification
}

func NewChanSink(size int) *ChanSink {
	if size < 1 {
		size = 1
	}
	return &ChanSink{ch: make(chan Notification, size)}
}

func (s *ChanSink) Notify(_ context.Context, n Notification) {
	for {
		select {
		case s.ch <- n:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *ChanSink) C() <-chan Notification {
	return s.ch
}

// Drain returns everything buffered so far without blocking.
func (s *ChanSink) Drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-s.ch:
			out = append(out, n)
		default:
			return out
		}
	}
}

// Multi fans a notification out to several sinks.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		s.Notify(ctx, n)
	}
}
