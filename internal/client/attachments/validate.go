package attachments

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

var (
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", common.ErrValidation)
	ErrFileTooLarge      = fmt.Errorf("%w: file too large", common.ErrValidation)
)

type Limits struct {
	MaxImageBytes int64
	MaxVideoBytes int64
}

var DefaultLimits = Limits{
	MaxImageBytes: 5 << 20,
	MaxVideoBytes: 25 << 20,
}

func (l Limits) max(kind models.MediaKind) int64 {
	if kind == models.MediaVideo {
		return l.MaxVideoBytes
	}
	return l.MaxImageBytes
}

// contentType returns the declared type without parameters, falling back to
// the file extension.
func contentType(f File) string {
	ct := f.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name)))
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Validate checks f against the picker kind. It does no I/O.
func Validate(f File, kind models.MediaKind, limits Limits) (models.UploadJob, error) {
	ct := contentType(f)
	job := models.UploadJob{
		FileName:    f.Name,
		ContentType: ct,
		Kind:        kind,
		SizeBytes:   f.Size,
	}

	switch {
	case !kind.Valid() || !strings.HasPrefix(ct, kind.MIMEPrefix()):
		job.Err = fmt.Errorf("%w: %q is not an %s", ErrUnsupportedFormat, ct, kind)
	case f.Size > limits.max(kind):
		job.Err = fmt.Errorf("%w: %d bytes, limit for %s is %d", ErrFileTooLarge, f.Size, kind, limits.max(kind))
	}
	job.Valid = job.Err == nil
	return job, job.Err
}

// Hint is a short display label taken from the file name: at most two words
// of the base name.
func Hint(name string, kind models.MediaKind) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	words := strings.FieldsFunc(strings.ToLower(base), func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	if len(words) > 2 {
		words = words[:2]
	}
	if len(words) == 0 || base == "." {
		return string(kind)
	}
	return strings.Join(words, " ")
}
