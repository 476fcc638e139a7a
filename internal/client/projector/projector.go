// Package projector turns the message feed and the users directory into
// render-ready rows. It is a pure function of its inputs.
package projector

import (
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
)

const (
	DefaultLayout   = "15:04"
	DefaultFallback = "Unknown user"
)

type Format struct {
	Layout   string
	Location *time.Location
	// FallbackName is shown for authors missing from the directory.
	FallbackName string
}

// Item is one rendered message. ShowAuthor is false when the previous message
// has the same author, so the name and avatar are drawn once per run.
type Item struct {
	MessageID  string
	AuthorID   string
	AuthorName string
	AvatarURL  string
	Online     bool
	KnownUser  bool
	ShowAuthor bool
	IsOwn      bool
	Text       string
	Media      *models.Media
	Time       string
}

// Project builds the rows for messages in the given order.
func Project(messages []models.Message, users []models.User, currentUserID string, f Format) []Item {
	if f.Layout == "" {
		f.Layout = DefaultLayout
	}
	if f.Location == nil {
		f.Location = time.Local
	}
	if f.FallbackName == "" {
		f.FallbackName = DefaultFallback
	}

	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	items := make([]Item, 0, len(messages))
	for i, m := range messages {
		u, known := byID[m.AuthorID]
		it := Item{
			MessageID:  m.ID,
			AuthorID:   m.AuthorID,
			AuthorName: f.FallbackName,
			KnownUser:  known,
			ShowAuthor: i == 0 || messages[i-1].AuthorID != m.AuthorID,
			IsOwn:      m.IsOwnedBy(currentUserID),
			Text:       m.Text,
			Media:      m.Media,
		}
		if known {
			it.AuthorName = u.DisplayName(f.FallbackName)
			it.AvatarURL = u.AvatarURL
			it.Online = u.Online
		}
		if !m.Timestamp.IsZero() {
			it.Time = m.Timestamp.In(f.Location).Format(f.Layout)
		}
		items = append(items, it)
	}
	return items
}
