// Package retention computes the retention boundary shared by the message
// feed and the cleanup pass, and the query predicates built from it.
//
// The feed shows messages with timestamp >= Boundary(now); cleanup deletes the
// caller's own messages with timestamp < Boundary(now). Both sides must call
// the same function, otherwise a message could be visible and deletable at the
// same time.
package retention

import (
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
)

// Months is the retention period in calendar months.
const Months = 6

// Boundary returns now minus Months calendar months. The day of month is
// clamped to the length of the target month, so Aug 31 maps to Feb 28 (or 29),
// never to early March. Clock time and location are preserved.
func Boundary(now time.Time) time.Time {
	y, m, d := now.Date()
	hh, mm, ss := now.Clock()
	loc := now.Location()

	first := time.Date(y, m-Months, 1, 0, 0, 0, 0, loc)
	if last := daysIn(first.Year(), first.Month(), loc); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, now.Nanosecond(), loc)
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

// Window selects the visible feed: timestamp >= Since, ascending.
type Window struct {
	Since time.Time
}

// FeedWindow is the window for the feed at now.
func FeedWindow(now time.Time) Window {
	return Window{Since: Boundary(now)}
}

func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Since)
}

// SameDay reports whether two windows start on the same calendar day.
// The feed re-creates its live query when this becomes false.
func (w Window) SameDay(o Window) bool {
	y1, m1, d1 := w.Since.Date()
	y2, m2, d2 := o.Since.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Stale selects the messages a cleanup pass may delete:
// authorId == AuthorID AND timestamp < Before.
type Stale struct {
	AuthorID string
	Before   time.Time
}

// StaleFor is the stale selector for userID at now.
func StaleFor(userID string, now time.Time) Stale {
	return Stale{AuthorID: userID, Before: Boundary(now)}
}

func (s Stale) Matches(m models.Message) bool {
	return m.IsOwnedBy(s.AuthorID) && m.Timestamp.Before(s.Before)
}
