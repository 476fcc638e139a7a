package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/tasks"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

var ErrInvalidAvatarURL = fmt.Errorf("%w: avatar must be an http(s) url", common.ErrValidation)

// ChatService sends text messages and changes the caller's avatar. Both are
// non-blocking writes: the call returns once the input is validated and the
// write is issued, failures are reported on the notification sink.
type ChatService interface {
	SendText(ctx context.Context, sess *identity.Session, text string) error
	ChangeAvatar(ctx context.Context, sess *identity.Session, avatarURL string) error
}

type MessageAppender interface {
	Append(ctx context.Context, m models.Message) (models.Message, error)
}

type chatService struct {
	messages *backend.Handle[MessageAppender]
	profiles *backend.Handle[ProfileStore]
	runner   *tasks.Runner
}

func NewChatService(messages *backend.Handle[MessageAppender], profiles *backend.Handle[ProfileStore], runner *tasks.Runner) ChatService {
	return &chatService{messages: messages, profiles: profiles, runner: runner}
}

func (c *chatService) SendText(ctx context.Context, sess *identity.Session, text string) error {
	if !sess.Active() {
		return identity.ErrSignedOut
	}
	m := models.Message{AuthorID: sess.UserID, Text: strings.TrimSpace(text)}
	if err := m.Validate(); err != nil {
		return err
	}
	app, err := c.messages.Get()
	if err != nil {
		return err
	}
	c.runner.Go(ctx, "Send message", func(ctx context.Context) error {
		_, err := app.Append(ctx, m)
		return err
	})
	return nil
}

// ChangeAvatar only ever updates the caller's own profile.
func (c *chatService) ChangeAvatar(ctx context.Context, sess *identity.Session, avatarURL string) error {
	if !sess.Active() {
		return identity.ErrSignedOut
	}
	u, err := url.ParseRequestURI(strings.TrimSpace(avatarURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAvatarURL
	}
	p, err := c.profiles.Get()
	if err != nil {
		return err
	}
	userID, link := sess.UserID, u.String()
	c.runner.Go(ctx, "Change avatar", func(ctx context.Context) error {
		return p.UpdateAvatar(ctx, userID, link)
	})
	return nil
}
