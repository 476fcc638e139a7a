package documents

import (
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
)

// Field names are shared by filters and documents.
const (
	fieldID        = "_id"
	fieldAuthorID  = "author_id"
	fieldTimestamp = "timestamp"
	fieldAvatar    = "avatar"
	fieldOnline    = "online"
	fieldEmail     = "email"
)

type mediaDoc struct {
	Kind string `bson:"kind"`
	URL  string `bson:"url"`
	Hint string `bson:"hint,omitempty"`
}

type messageDoc struct {
	ID        string    `bson:"_id"`
	AuthorID  string    `bson:"author_id"`
	Text      string    `bson:"text,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
	Media     *mediaDoc `bson:"media,omitempty"`
}

func (d messageDoc) toModel() models.Message {
	m := models.Message{
		ID:        d.ID,
		AuthorID:  d.AuthorID,
		Text:      d.Text,
		Timestamp: d.Timestamp,
	}
	if d.Media != nil && d.Media.URL != "" {
		m.Media = &models.Media{Kind: models.MediaKind(d.Media.Kind), URL: d.Media.URL, Hint: d.Media.Hint}
	}
	return m
}

// Missing fields decode to zero values, which is the normalisation the feed
// expects: no name, no avatar, offline.
type userDoc struct {
	ID        string `bson:"_id"`
	Name      string `bson:"name,omitempty"`
	AvatarURL string `bson:"avatar,omitempty"`
	Online    bool   `bson:"online"`
	Email     string `bson:"email,omitempty"`
}

func (d userDoc) toModel() models.User {
	return models.User{ID: d.ID, Name: d.Name, AvatarURL: d.AvatarURL, Online: d.Online, Email: d.Email}
}

type identityDoc struct {
	ID                string    `bson:"_id"`
	Email             string    `bson:"email"`
	PasswordHash      string    `bson:"password_hash,omitempty"`
	Provider          string    `bson:"provider"`
	FederatedProvider string    `bson:"federated_provider,omitempty"`
	Subject           string    `bson:"subject,omitempty"`
	EmailVerified     bool      `bson:"email_verified"`
	CreatedAt         time.Time `bson:"created_at"`
}

func identityDocFrom(r identity.Record) identityDoc {
	return identityDoc{
		ID:                r.ID,
		Email:             r.Email,
		PasswordHash:      r.PasswordHash,
		Provider:          string(r.Provider),
		FederatedProvider: r.FederatedProvider,
		Subject:           r.Subject,
		EmailVerified:     r.EmailVerified,
		CreatedAt:         r.CreatedAt,
	}
}

func (d identityDoc) toRecord() identity.Record {
	return identity.Record{
		ID:                d.ID,
		Email:             d.Email,
		PasswordHash:      d.PasswordHash,
		Provider:          identity.ProviderKind(d.Provider),
		FederatedProvider: d.FederatedProvider,
		Subject:           d.Subject,
		EmailVerified:     d.EmailVerified,
		CreatedAt:         d.CreatedAt,
	}
}
