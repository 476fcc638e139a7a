package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
)

// MediaKind is the attachment class chosen in the picker.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Valid reports whether k is one of the known kinds.
func (k MediaKind) Valid() bool {
	return k == MediaImage || k == MediaVideo
}

// MIMEPrefix is the content type prefix accepted for the kind.
func (k MediaKind) MIMEPrefix() string {
	return string(k) + "/"
}

// Media references an uploaded object. Hint is a short display label derived
// from the original file name.
type Media struct {
	Kind MediaKind
	URL  string
	Hint string
}

// Message is one entry of the room. Timestamp is assigned by the backend at
// write time; the client never sets it.
type Message struct {
	ID        string
	AuthorID  string
	Text      string
	Timestamp time.Time
	Media     *Media
}

var ErrEmptyMessage = fmt.Errorf("%w: message has neither text nor media", common.ErrValidation)

// Validate checks the record invariants: an author, and text or media present.
func (m Message) Validate() error {
	if m.AuthorID == "" {
		return fmt.Errorf("%w: message without author", common.ErrValidation)
	}
	if m.Media == nil {
		if strings.TrimSpace(m.Text) == "" {
			return ErrEmptyMessage
		}
		return nil
	}
	if !m.Media.Kind.Valid() {
		return fmt.Errorf("%w: unknown media kind %q", common.ErrValidation, m.Media.Kind)
	}
	if m.Media.URL == "" {
		return fmt.Errorf("%w: media without url", common.ErrValidation)
	}
	return nil
}

// IsOwnedBy reports whether userID authored m.
func (m Message) IsOwnedBy(userID string) bool {
	return userID != "" && m.AuthorID == userID
}
