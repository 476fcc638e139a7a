package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type CloudinaryStore struct {
	api    cloudinaryAPI
	folder string
}

func NewCloudinaryStore(c CloudinaryConfig) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(c.CloudName, c.APIKey, c.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &CloudinaryStore{api: &cld.Upload, folder: c.Folder}, nil
}

// Put uploads body. Cloudinary derives the format from the content, so the
// public id is the key without its extension.
func (s *CloudinaryStore) Put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) (string, error) {
	res, err := s.api.Upload(ctx, body, uploader.UploadParams{
		PublicID:     strings.TrimSuffix(key, path.Ext(key)),
		Folder:       s.folder,
		ResourceType: resourceType(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, classifyCloudinary(err.Error(), err))
	}
	if res.Error.Message != "" {
		msg := res.Error.Message
		return "", fmt.Errorf("upload %s: %w", key, classifyCloudinary(msg, errors.New(msg)))
	}
	if res.SecureURL == "" {
		return "", fmt.Errorf("upload %s: empty url in response", key)
	}
	return res.SecureURL, nil
}

func resourceType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "auto"
	}
}

func classifyCloudinary(msg string, err error) error {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "api_key"), strings.Contains(m, "signature"), strings.Contains(m, "unauthorized"):
		return fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	case strings.Contains(m, "rate limit"):
		return fmt.Errorf("%w: %w", common.ErrTooManyRequests, err)
	case strings.Contains(m, "quota"), strings.Contains(m, "limit exceeded"), strings.Contains(m, "file size too large"):
		return fmt.Errorf("%w: %w", common.ErrQuotaExceeded, err)
	}
	if common.KindOf(err) == common.KindNetwork {
		return fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	return err
}
