// Package attachments sends image and video attachments: validate, upload to
// the object store, then append a message that references the uploaded URL.
// A message is only written after the upload succeeded.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dmitrijs2005/gophchat/internal/client/backend"
	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/tasks"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/google/uuid"
)

var (
	ErrBusy                = fmt.Errorf("%w: an upload is already in progress", common.ErrValidation)
	ErrUploadUnauthorized  = fmt.Errorf("%w: upload not authorized, verify your account", common.ErrUnauthorized)
	ErrUploadQuotaExceeded = fmt.Errorf("%w: upload quota exceeded", common.ErrQuotaExceeded)
	ErrUploadTimeout       = fmt.Errorf("%w: upload timed out", common.ErrNetwork)
	ErrUploadFailed        = errors.New("upload failed")
)

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type Appender interface {
	Append(ctx context.Context, m models.Message) (models.Message, error)
}

// File is a picked file. Body is read once during upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Pipeline struct {
	store    *backend.Handle[ObjectStore]
	messages *backend.Handle[Appender]
	runner   *tasks.Runner
	limits   Limits
	newID    func() string
	logger   logging.Logger
	busy     atomic.Bool
}

func NewPipeline(store *backend.Handle[ObjectStore], messages *backend.Handle[Appender], runner *tasks.Runner, limits Limits, logger logging.Logger) *Pipeline {
	if limits.MaxImageBytes <= 0 {
		limits.MaxImageBytes = DefaultLimits.MaxImageBytes
	}
	if limits.MaxVideoBytes <= 0 {
		limits.MaxVideoBytes = DefaultLimits.MaxVideoBytes
	}
	return &Pipeline{
		store:    store,
		messages: messages,
		runner:   runner,
		limits:   limits,
		newID:    uuid.NewString,
		logger:   logger.With("component", "attachments"),
	}
}

// Busy reports whether an upload is in flight.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// ObjectKey is the storage path for an upload by userID: unique per call
// even for identical file names.
func ObjectKey(userID, id, fileName string) string {
	return path.Join("users", userID, id+strings.ToLower(filepath.Ext(fileName)))
}

// Send validates and uploads f, then appends the media message without
// waiting for the store to confirm it. Cancelling ctx does not abort an
// upload that has started. Append failures are reported on the
// runner's sink. Send returns ErrBusy while another upload is running.
func (p *Pipeline) Send(ctx context.Context, userID string, f File, kind models.MediaKind) (models.UploadJob, error) {
	job, err := Validate(f, kind, p.limits)
	if err != nil {
		return job, err
	}
	if userID == "" {
		return job, ErrUploadUnauthorized
	}
	if !p.busy.CompareAndSwap(false, true) {
		return job, ErrBusy
	}
	defer p.busy.Store(false)

	store, err := p.store.Get()
	if err != nil {
		return job, err
	}
	appender, err := p.messages.Get()
	if err != nil {
		return job, err
	}

	key := ObjectKey(userID, p.newID(), f.Name)
	url, err := p.put(ctx, store, key, f, job.ContentType)
	if err != nil {
		p.logger.Error(ctx, "upload failed", "key", key, "error", err)
		return job, classifyUpload(err)
	}
	p.logger.Info(ctx, "upload stored", "key", key, "size", f.Size)

	msg := models.Message{
		AuthorID: userID,
		Media:    &models.Media{Kind: kind, URL: url, Hint: Hint(f.Name, kind)},
	}
	p.runner.Go(ctx, "Send attachment", func(ctx context.Context) error {
		_, err := appender.Append(ctx, msg)
		return err
	})
	return job, nil
}

// put runs the upload detached from ctx cancellation; a started upload is
// only bounded by the runner's task timeout.
func (p *Pipeline) put(ctx context.Context, store ObjectStore, key string, f File, contentType string) (string, error) {
	uctx := context.WithoutCancel(ctx)
	if d := p.runner.Timeout(); d > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(uctx, d)
		defer cancel()
	}
	return store.Put(uctx, key, f.Body, f.Size, contentType)
}

func classifyUpload(err error) error {
	switch common.KindOf(err) {
	case common.KindUnauthorized, common.KindRequiresReauth:
		return fmt.Errorf("%w: %v", ErrUploadUnauthorized, err)
	case common.KindQuotaExceeded, common.KindTooManyRequests:
		return fmt.Errorf("%w: %v", ErrUploadQuotaExceeded, err)
	case common.KindNetwork:
		return fmt.Errorf("%w: %v", ErrUploadTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
}
